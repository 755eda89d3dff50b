package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/database"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"firebase.google.com/go/v4/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFCM struct {
	mu   sync.Mutex
	sent []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", nil
}

type fakeBot struct {
	mu    sync.Mutex
	chats []int64
	err   error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.chats = append(f.chats, msg.ChatID)
	}
	return tgbotapi.Message{}, nil
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "cust-1", FCMToken: "device-1"}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "admin-1", TelegramChatID: 777}))
	require.NoError(t, db.UpdateUserRole(ctx, "admin-1", models.RoleAdmin))
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "admin-2"}))
	require.NoError(t, db.UpdateUserRole(ctx, "admin-2", models.RoleAdmin))
	return db
}

func TestNotify(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	logger := zerolog.Nop()
	fcm := &fakeFCM{}
	bot := &fakeBot{}

	d := NewDispatcher(db, db, &logger,
		WithPush(NewPushChannel(fcm)),
		WithTelegram(NewTelegramChannel(bot, []int64{-100}, &logger)))

	require.NoError(t, d.Notify(ctx, "cust-1", "Booking confirmed", "See you soon", models.SeveritySuccess, "/bookings/b1"))

	inbox, err := db.ListNotifications(ctx, "cust-1", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Booking confirmed", inbox[0].Title)

	require.Len(t, fcm.sent, 1)
	assert.Equal(t, "device-1", fcm.sent[0].Token)
	assert.Equal(t, "/bookings/b1", fcm.sent[0].Data["link"])
	assert.Empty(t, bot.chats)
}

func TestNotifyAdmins(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	logger := zerolog.Nop()
	bot := &fakeBot{}

	d := NewDispatcher(db, db, &logger, WithTelegram(NewTelegramChannel(bot, []int64{-100}, &logger)))
	require.NoError(t, d.NotifyAdmins(ctx, "New booking", "AC Repair", models.SeverityInfo, ""))

	for _, id := range []string{"admin-1", "admin-2"} {
		inbox, err := db.ListNotifications(ctx, id, 10)
		require.NoError(t, err)
		assert.Len(t, inbox, 1, id)
	}
	assert.ElementsMatch(t, []int64{777, -100}, bot.chats)
}

func TestNotifyChannelFailuresAreSwallowed(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	d := NewDispatcher(db, db, &logger,
		WithPush(NewPushChannel(&fakeFCM{err: errors.New("unregistered")})),
		WithTelegram(NewTelegramChannel(&fakeBot{err: errors.New("blocked")}, []int64{-100}, &logger)))

	assert.NoError(t, d.Notify(ctx, "cust-1", "t", "m", models.SeverityInfo, ""))
	assert.NoError(t, d.NotifyAdmins(ctx, "t", "m", models.SeverityInfo, ""))

	// unknown profiles still get an inbox entry
	assert.NoError(t, d.Notify(ctx, "ghost", "t", "m", models.SeverityInfo, ""))
	inbox, err := db.ListNotifications(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	assert.Error(t, d.Notify(ctx, "", "t", "m", models.SeverityInfo, ""))
}

func TestNotifyStoreFailure(t *testing.T) {
	db := setupDB(t)
	logger := zerolog.Nop()
	d := NewDispatcher(db, db, &logger)
	require.NoError(t, db.Close())

	assert.Error(t, d.Notify(context.Background(), "cust-1", "t", "m", models.SeverityInfo, ""))
}

func TestFormatMessage(t *testing.T) {
	text := formatMessage("Job_assigned", "Ravi", models.SeverityWarning)
	assert.Contains(t, text, "⚠️")
	assert.Contains(t, text, `Job\_assigned`)
}
