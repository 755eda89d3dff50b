package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask stores a ledger job in the outbox so it survives a restart
// of the worker. A new upsert supersedes the queued upserts of the same
// booking; the worker writes the latest row either way.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if task.TaskType == models.SyncTaskUpsert && task.Status == models.SyncStatusPending {
			_, err := tx.ExecContext(ctx,
				`UPDATE sync_queue SET status = ?, processed_at = ?
                 WHERE booking_id = ? AND task_type = ? AND status IN (?, ?)`,
				models.SyncStatusSuperseded, now,
				task.BookingID, models.SyncTaskUpsert, models.SyncStatusPending, models.SyncStatusRetry,
			)
			if err != nil {
				return fmt.Errorf("supersede sync tasks for %s: %w", task.BookingID, err)
			}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
		)
		if err != nil {
			return fmt.Errorf("insert sync task: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sync task id: %w", err)
		}
		task.ID = id
		task.CreatedAt = now
		return nil
	})
}

// GetPendingSyncTasks returns up to limit tasks that are due, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue
         WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.SyncStatusPending, models.SyncStatusRetry, time.Now().UTC(), limit)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC, id DESC`,
		models.SyncStatusFailed)
}

// RequeueFailedSyncTasks moves dead-lettered tasks back to pending with a
// fresh retry budget.
func (db *DB) RequeueFailedSyncTasks(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, retry_count = 0, next_retry_at = NULL, processed_at = NULL WHERE status = ?`,
		models.SyncStatusPending, models.SyncStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("requeue failed sync tasks: %w", err)
	}
	return res.RowsAffected()
}

// PurgeSyncTasks deletes finished tasks processed before the cutoff.
// Failed tasks are kept for inspection.
func (db *DB) PurgeSyncTasks(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status IN (?, ?) AND processed_at IS NOT NULL AND processed_at < ?`,
		models.SyncStatusCompleted, models.SyncStatusSuperseded, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sync tasks: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}

	var (
		query string
		args  []any
	)
	switch status {
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`
		args = []any{status, lastErr, time.Now().UTC(), id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update sync task %d: %w", id, err)
	}
	return nil
}
