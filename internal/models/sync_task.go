package models

import "time"

// SyncTask is a queued ledger synchronization job for one booking.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	BookingID   string     `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
	// SyncStatusSuperseded marks an upsert replaced by a newer one for the
	// same booking before the worker reached it.
	SyncStatusSuperseded = "superseded"
)

// Ledger task types.
const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)
