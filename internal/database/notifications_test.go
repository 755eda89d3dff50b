package database

import (
	"context"
	"testing"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &models.Notification{UserID: "uid-1", Title: "Booking received", Message: "We got it", CreatedAt: base}
	second := &models.Notification{UserID: "uid-1", Title: "Technician assigned", Message: "Ravi", Severity: models.SeveritySuccess, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.CreateNotification(ctx, first))
	require.NoError(t, db.CreateNotification(ctx, second))
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{UserID: "uid-2", Title: "x", Message: "y"}))
	assert.Equal(t, models.SeverityInfo, first.Severity)

	list, err := db.ListNotifications(ctx, "uid-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[0].Read)

	limited, err := db.ListNotifications(ctx, "uid-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, db.MarkNotificationRead(ctx, "uid-1", first.ID))
	assert.ErrorIs(t, db.MarkNotificationRead(ctx, "uid-2", second.ID), domain.ErrRecordNotFound)

	list, err = db.ListNotifications(ctx, "uid-1", 10)
	require.NoError(t, err)
	assert.True(t, list[1].Read)
	assert.False(t, list[0].Read)
}
