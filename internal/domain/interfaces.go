package domain

import (
	"context"
	"errors"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Store-level sentinels shared by every persistence backend.
var (
	ErrRecordNotFound         = errors.New("record not found")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrDuplicate              = errors.New("record already exists")
)

// CheckFunc inspects the current booking inside a transaction; a non-nil
// error aborts the update and is returned unchanged.
type CheckFunc func(b *models.Booking) error

// MutateFunc applies changes to the booking inside the same transaction.
type MutateFunc func(b *models.Booking) error

type UpdateOptions struct {
	CreditTechnicianID string
}

type UpdateOption func(*UpdateOptions)

// WithTechnicianCredit increments the technician's completed job counter in
// the same transaction as the booking update.
func WithTechnicianCredit(technicianID string) UpdateOption {
	return func(o *UpdateOptions) {
		o.CreditTechnicianID = technicianID
	}
}

func ApplyUpdateOptions(opts ...UpdateOption) UpdateOptions {
	var o UpdateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]*models.Booking, error)
	ListOpenJobs(ctx context.Context, category string) ([]*models.Booking, error)
	ListAll(ctx context.Context) ([]*models.Booking, error)
	TransactionalUpdate(ctx context.Context, id string, check CheckFunc, mutate MutateFunc, opts ...UpdateOption) (*models.Booking, error)
}

type ProfileStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	UpdateUserRole(ctx context.Context, id string, role models.Role) error
	ListAdmins(ctx context.Context) ([]*models.User, error)
	GetTechnician(ctx context.Context, id string) (*models.Technician, error)
	GetTechnicianByUserID(ctx context.Context, userID string) (*models.Technician, error)
	CreateTechnician(ctx context.Context, tech *models.Technician) error
	UpdateTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) error
	ListTechnicians(ctx context.Context) ([]*models.Technician, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// Notifier is the best-effort side channel invoked after transitions.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, severity models.Severity, link string) error
	NotifyAdmins(ctx context.Context, title, message string, severity models.Severity, link string) error
}

type Catalog interface {
	Lookup(serviceID string) (*models.Service, bool)
	Services() []*models.Service
}

// TokenVerifier resolves a bearer token to the identity-provider uid and
// the instant the token stops being valid. A zero expiry means the provider
// does not report one.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uid string, expires time.Time, err error)
}

type SessionRepository interface {
	GetIdentity(ctx context.Context, key string) (string, error)
	SetIdentity(ctx context.Context, key, uid string, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
