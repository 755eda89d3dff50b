package database

import (
	"context"
	"testing"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  "upsert",
		BookingID: "b-100",
		Payload:   `{"test": true}`,
	}

	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "b-100", tasks[0].BookingID)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 0)

	errMsg := "some error"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "test", BookingID: "b-101", Status: models.SyncStatusFailed, LastError: &errMsg}))
	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "some error", *failed[0].LastError)

	task2 := &models.SyncTask{TaskType: "retry_test", BookingID: "b-102"}
	require.NoError(t, db.CreateSyncTask(ctx, task2))

	nextRetry := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "temporary error", &nextRetry))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.NotEqual(t, task2.ID, task.ID, "task with future retry should not be pending")
	}

	pastRetry := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "temporary error", &pastRetry))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, task := range tasks {
		if task.ID == task2.ID {
			found = true
			assert.Equal(t, 2, task.RetryCount)
		}
	}
	assert.True(t, found)
}

func TestSyncQueueSupersedesQueuedUpserts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-1", Payload: `{"id":"b-1","status":"confirmed"}`}
	other := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-2", Payload: `{"id":"b-2"}`}
	second := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-1", Payload: `{"id":"b-1","status":"assigned"}`}
	require.NoError(t, db.CreateSyncTask(ctx, first))
	require.NoError(t, db.CreateSyncTask(ctx, other))
	require.NoError(t, db.CreateSyncTask(ctx, second))

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, other.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	var status string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT status FROM sync_queue WHERE id = ?`, first.ID).Scan(&status))
	assert.Equal(t, models.SyncStatusSuperseded, status)
}

func TestSyncQueueRequeueAndPurge(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	failed := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-1", Payload: "{}"}
	done := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-2", Payload: "{}"}
	require.NoError(t, db.CreateSyncTask(ctx, failed))
	require.NoError(t, db.CreateSyncTask(ctx, done))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, failed.ID, models.SyncStatusFailed, "sheet gone", nil))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, done.ID, models.SyncStatusCompleted, "", nil))

	n, err := db.RequeueFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, failed.ID, tasks[0].ID)
	assert.Zero(t, tasks[0].RetryCount)

	n, err = db.PurgeSyncTasks(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count))
	assert.Equal(t, 1, count)
}
