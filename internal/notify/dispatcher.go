// Package notify delivers user-facing notifications. Every notification is
// stored in the inbox first; push and chat delivery are attempted afterwards
// and only logged when they fail.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/logging"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
)

type Dispatcher struct {
	store    domain.NotificationStore
	profiles domain.ProfileStore
	push     *PushChannel
	telegram *TelegramChannel
	logger   *zerolog.Logger
}

type Option func(*Dispatcher)

func WithPush(p *PushChannel) Option {
	return func(d *Dispatcher) { d.push = p }
}

func WithTelegram(t *TelegramChannel) Option {
	return func(d *Dispatcher) { d.telegram = t }
}

func NewDispatcher(store domain.NotificationStore, profiles domain.ProfileStore, logger *zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		profiles: profiles,
		logger:   logging.Component(logger, "notify"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify stores a notification for userID and fans it out to the user's
// devices. Only a failure to store it is returned.
func (d *Dispatcher) Notify(ctx context.Context, userID, title, message string, severity models.Severity, link string) error {
	if userID == "" {
		return fmt.Errorf("notify: empty user id")
	}
	n := &models.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Severity: severity,
		Link:     link,
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		metrics.IncNotification("inbox", "error")
		return fmt.Errorf("store notification for %s: %w", userID, err)
	}
	metrics.IncNotification("inbox", "stored")

	if d.push == nil && d.telegram == nil {
		return nil
	}

	user, err := d.profiles.GetUser(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("Skipping device delivery, profile unavailable")
		return nil
	}
	d.deliver(ctx, user, n)
	return nil
}

// NotifyAdmins notifies every admin profile and posts to the configured
// admin chats.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, title, message string, severity models.Severity, link string) error {
	admins, err := d.profiles.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	var errs []error
	for _, admin := range admins {
		if err := d.Notify(ctx, admin.ID, title, message, severity, link); err != nil {
			errs = append(errs, err)
		}
	}

	if d.telegram != nil {
		d.telegram.Broadcast(title, message, severity)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, user *models.User, n *models.Notification) {
	if d.push != nil && user.FCMToken != "" {
		if err := d.push.Send(ctx, user.FCMToken, n); err != nil {
			d.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Push delivery failed")
		}
	}
	if d.telegram != nil && user.TelegramChatID != 0 {
		if err := d.telegram.Send(user.TelegramChatID, n.Title, n.Message, n.Severity); err != nil {
			d.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Telegram delivery failed")
		}
	}
}
