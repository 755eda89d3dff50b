package service

import (
	"context"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/database"
	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserService(t *testing.T) (*UserService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserService(db, db, &logger), db
}

func TestUserService_Profile(t *testing.T) {
	s, db := setupUserService(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "u1", Name: "Asha", Email: "asha@example.com"}))
	actor := models.Actor{UserID: "u1", Role: models.RoleCustomer}

	user, err := s.GetProfile(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)

	updated, err := s.UpdateProfile(ctx, actor, ProfileUpdate{Phone: "+91999", FCMToken: "fcm-1"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", updated.Name)
	assert.Equal(t, "+91999", updated.Phone)
	assert.Equal(t, "fcm-1", updated.FCMToken)
	assert.Equal(t, "asha@example.com", updated.Email)

	_, err = s.GetProfile(ctx, models.Actor{UserID: "nobody"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = s.GetProfile(ctx, models.Actor{})
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
}

func TestUserService_Notifications(t *testing.T) {
	s, db := setupUserService(t)
	ctx := context.Background()

	n := &models.Notification{UserID: "u1", Title: "Booking received", Message: "ok"}
	require.NoError(t, db.CreateNotification(ctx, n))
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{UserID: "u2", Title: "other"}))

	actor := models.Actor{UserID: "u1"}
	list, err := s.ListNotifications(ctx, actor, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	err = s.MarkNotificationRead(ctx, models.Actor{UserID: "u2"}, n.ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	require.NoError(t, s.MarkNotificationRead(ctx, actor, n.ID))
	list, err = s.ListNotifications(ctx, actor, 10)
	require.NoError(t, err)
	assert.True(t, list[0].Read)
}

func TestUserService_EnsureAdmins(t *testing.T) {
	s, db := setupUserService(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "existing", Name: "Ops"}))

	require.NoError(t, s.EnsureAdmins(ctx, []string{"existing", "fresh", " "}))

	admins, err := db.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	ids := []string{admins[0].ID, admins[1].ID}
	assert.ElementsMatch(t, []string{"existing", "fresh"}, ids)
	assert.Equal(t, "Ops", admins[0].Name+admins[1].Name)
}
