package api

import (
	"context"
	"errors"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/export"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
	"github.com/njrgourav11/service-buddy-sub000/internal/service"

	"github.com/rs/zerolog"
)

// Result is the uniform envelope every entry point returns. Errors never
// cross the boundary; they are flattened into Error, Kind and Code.
type Result struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    domain.Kind `json:"kind,omitempty"`
	Code    string      `json:"code,omitempty"`
	Field   string      `json:"field,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func failure(err error) Result {
	r := Result{Success: false, Error: err.Error(), Kind: domain.KindOf(err), Code: domain.CodeOf(err)}
	var de *domain.Error
	if errors.As(err, &de) {
		r.Field = de.Field
		if de.Kind == domain.KindUpstream {
			// internal causes stay in the logs
			r.Error = de.Message
		}
	}
	return r
}

// ActorResolver turns a bearer token into the calling actor.
type ActorResolver interface {
	Authenticate(ctx context.Context, token string) (models.Actor, error)
}

type Endpoints struct {
	auth        ActorResolver
	bookings    *service.BookingService
	technicians *service.TechnicianService
	users       *service.UserService
	catalog     domain.Catalog
	logger      zerolog.Logger
}

func NewEndpoints(
	auth ActorResolver,
	bookings *service.BookingService,
	technicians *service.TechnicianService,
	users *service.UserService,
	catalog domain.Catalog,
	logger *zerolog.Logger,
) *Endpoints {
	e := &Endpoints{
		auth:        auth,
		bookings:    bookings,
		technicians: technicians,
		users:       users,
		catalog:     catalog,
		logger:      zerolog.Nop(),
	}
	if logger != nil {
		e.logger = logger.With().Str("component", "endpoints").Logger()
	}
	return e
}

func (e *Endpoints) call(ctx context.Context, op, token string, fn func(actor models.Actor) (any, error)) Result {
	actor, err := e.auth.Authenticate(ctx, token)
	if err != nil {
		return e.fail(op, err)
	}
	data, err := fn(actor)
	if err != nil {
		return e.fail(op, err)
	}
	return ok(data)
}

func (e *Endpoints) fail(op string, err error) Result {
	ev := e.logger.Debug()
	if domain.KindOf(err) == domain.KindUpstream {
		ev = e.logger.Error()
	}
	ev.Err(err).Str("op", op).Msg("Request failed")
	return failure(err)
}

// BookingCreated is the payload of CreateBooking.
type BookingCreated struct {
	BookingID string          `json:"booking_id"`
	Booking   *models.Booking `json:"booking"`
}

func (e *Endpoints) CreateBooking(ctx context.Context, token string, draft models.BookingDraft) Result {
	return e.call(ctx, "create_booking", token, func(actor models.Actor) (any, error) {
		b, err := e.bookings.Create(ctx, actor, draft)
		if err != nil {
			return nil, err
		}
		return BookingCreated{BookingID: b.ID, Booking: b}, nil
	})
}

func (e *Endpoints) GetBooking(ctx context.Context, token, bookingID string) Result {
	return e.call(ctx, "get_booking", token, func(actor models.Actor) (any, error) {
		return e.bookings.GetBooking(ctx, actor, bookingID)
	})
}

func (e *Endpoints) ListUserBookings(ctx context.Context, token string) Result {
	return e.call(ctx, "list_user_bookings", token, func(actor models.Actor) (any, error) {
		return e.bookings.ListUserBookings(ctx, actor)
	})
}

func (e *Endpoints) ListAllBookings(ctx context.Context, token string) Result {
	return e.call(ctx, "list_all_bookings", token, func(actor models.Actor) (any, error) {
		return e.bookings.ListAllBookings(ctx, actor)
	})
}

// AcceptJob is the technician claim.
func (e *Endpoints) AcceptJob(ctx context.Context, token, bookingID string) Result {
	r := e.call(ctx, "accept_job", token, func(actor models.Actor) (any, error) {
		return e.bookings.ClaimJob(ctx, actor, bookingID)
	})
	if r.Success {
		r.Message = "Job accepted"
	}
	return r
}

func (e *Endpoints) AssignTechnician(ctx context.Context, token, bookingID, technicianID string) Result {
	return e.call(ctx, "assign_technician", token, func(actor models.Actor) (any, error) {
		return e.bookings.AssignTechnician(ctx, actor, bookingID, technicianID)
	})
}

func (e *Endpoints) ApproveTechnician(ctx context.Context, token, technicianID string, status models.TechnicianStatus) Result {
	return e.call(ctx, "approve_technician", token, func(actor models.Actor) (any, error) {
		return e.technicians.ApproveTechnician(ctx, actor, technicianID, status)
	})
}

func (e *Endpoints) ConfirmPayment(ctx context.Context, token, bookingID, method, reference string) Result {
	return e.call(ctx, "confirm_payment", token, func(actor models.Actor) (any, error) {
		return e.bookings.ConfirmPayment(ctx, actor, bookingID, method, reference)
	})
}

func (e *Endpoints) VerifyPayment(ctx context.Context, token, bookingID string) Result {
	return e.call(ctx, "verify_payment", token, func(actor models.Actor) (any, error) {
		return e.bookings.VerifyPayment(ctx, actor, bookingID)
	})
}

func (e *Endpoints) StartService(ctx context.Context, token, bookingID string) Result {
	return e.call(ctx, "start_service", token, func(actor models.Actor) (any, error) {
		return e.bookings.StartService(ctx, actor, bookingID)
	})
}

func (e *Endpoints) CompleteJob(ctx context.Context, token, bookingID string) Result {
	return e.call(ctx, "complete_job", token, func(actor models.Actor) (any, error) {
		return e.bookings.CompleteJob(ctx, actor, bookingID)
	})
}

func (e *Endpoints) CancelBooking(ctx context.Context, token, bookingID, reason string) Result {
	return e.call(ctx, "cancel_booking", token, func(actor models.Actor) (any, error) {
		return e.bookings.CancelBooking(ctx, actor, bookingID, reason)
	})
}

func (e *Endpoints) RescheduleBooking(ctx context.Context, token, bookingID, date, slot string) Result {
	return e.call(ctx, "reschedule_booking", token, func(actor models.Actor) (any, error) {
		return e.bookings.RescheduleBooking(ctx, actor, bookingID, date, slot)
	})
}

func (e *Endpoints) ListOpenJobs(ctx context.Context, token, category string) Result {
	return e.call(ctx, "list_open_jobs", token, func(actor models.Actor) (any, error) {
		return e.bookings.ListOpenJobs(ctx, actor, category)
	})
}

func (e *Endpoints) ListTechnicianJobs(ctx context.Context, token string) Result {
	return e.call(ctx, "list_technician_jobs", token, func(actor models.Actor) (any, error) {
		return e.bookings.ListTechnicianJobs(ctx, actor)
	})
}

func (e *Endpoints) ApplyTechnician(ctx context.Context, token, name, phone, category string) Result {
	return e.call(ctx, "apply_technician", token, func(actor models.Actor) (any, error) {
		return e.technicians.Apply(ctx, actor, name, phone, category)
	})
}

func (e *Endpoints) ListTechnicians(ctx context.Context, token string) Result {
	return e.call(ctx, "list_technicians", token, func(actor models.Actor) (any, error) {
		return e.technicians.ListTechnicians(ctx, actor)
	})
}

func (e *Endpoints) GetStats(ctx context.Context, token string) Result {
	return e.call(ctx, "get_stats", token, func(actor models.Actor) (any, error) {
		return e.bookings.Stats(ctx, actor)
	})
}

func (e *Endpoints) GetProfile(ctx context.Context, token string) Result {
	return e.call(ctx, "get_profile", token, func(actor models.Actor) (any, error) {
		return e.users.GetProfile(ctx, actor)
	})
}

func (e *Endpoints) UpdateProfile(ctx context.Context, token string, upd service.ProfileUpdate) Result {
	return e.call(ctx, "update_profile", token, func(actor models.Actor) (any, error) {
		return e.users.UpdateProfile(ctx, actor, upd)
	})
}

func (e *Endpoints) ListNotifications(ctx context.Context, token string, limit int) Result {
	return e.call(ctx, "list_notifications", token, func(actor models.Actor) (any, error) {
		return e.users.ListNotifications(ctx, actor, limit)
	})
}

func (e *Endpoints) MarkNotificationRead(ctx context.Context, token, notificationID string) Result {
	return e.call(ctx, "mark_notification_read", token, func(actor models.Actor) (any, error) {
		return nil, e.users.MarkNotificationRead(ctx, actor, notificationID)
	})
}

// ListServices is public; the catalog needs no token.
func (e *Endpoints) ListServices() Result {
	return ok(e.catalog.Services())
}

// ExportBookings renders every booking into an xlsx workbook for admins.
func (e *Endpoints) ExportBookings(ctx context.Context, token string) ([]byte, Result) {
	var data []byte
	r := e.call(ctx, "export_bookings", token, func(actor models.Actor) (any, error) {
		bookings, err := e.bookings.ListAllBookings(ctx, actor)
		if err != nil {
			return nil, err
		}
		stats, err := e.bookings.Stats(ctx, actor)
		if err != nil {
			return nil, err
		}
		data, err = export.Bytes(bookings, stats)
		if err != nil {
			return nil, domain.Upstream("render export", err)
		}
		return nil, nil
	})
	return data, r
}
