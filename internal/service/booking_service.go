package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/events"
	"github.com/njrgourav11/service-buddy-sub000/internal/lifecycle"
	"github.com/njrgourav11/service-buddy-sub000/internal/metrics"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
)

// Policy holds the tunable booking rules.
type Policy struct {
	DeferredPaymentMethods []string
	ClaimRateLimit         int
	ClaimRateWindow        time.Duration
}

func (p Policy) isDeferred(method string) bool {
	for _, m := range p.DeferredPaymentMethods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

type BookingService struct {
	store    domain.BookingStore
	profiles domain.ProfileStore
	catalog  domain.Catalog
	notifier domain.Notifier
	eventBus domain.EventPublisher
	sessions domain.SessionRepository
	policy   Policy
	logger   *zerolog.Logger
	now      func() time.Time
}

type BookingOption func(*BookingService)

func WithNotifier(n domain.Notifier) BookingOption {
	return func(s *BookingService) { s.notifier = n }
}

func WithEventPublisher(p domain.EventPublisher) BookingOption {
	return func(s *BookingService) { s.eventBus = p }
}

// WithClaimLimiter rate limits claim attempts per technician.
func WithClaimLimiter(sessions domain.SessionRepository) BookingOption {
	return func(s *BookingService) { s.sessions = sessions }
}

func NewBookingService(
	store domain.BookingStore,
	profiles domain.ProfileStore,
	catalog domain.Catalog,
	policy Policy,
	logger *zerolog.Logger,
	opts ...BookingOption,
) *BookingService {
	if len(policy.DeferredPaymentMethods) == 0 {
		policy.DeferredPaymentMethods = []string{models.PaymentMethodCash, models.PaymentMethodPayLater}
	}
	if policy.ClaimRateLimit <= 0 {
		policy.ClaimRateLimit = models.ClaimRateLimit
	}
	if policy.ClaimRateWindow <= 0 {
		policy.ClaimRateWindow = models.ClaimRateWindow * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &BookingService{
		store:    store,
		profiles: profiles,
		catalog:  catalog,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireSignedIn(actor models.Actor) error {
	if actor.UserID == "" {
		return domain.Unauthorized("sign in required")
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return domain.Unauthorized("admin role required")
	}
	return nil
}

func validateSlot(date, slot string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return domain.Validation("scheduled_date", "must be a date in YYYY-MM-DD format")
	}
	if _, err := time.Parse(models.TimeLayout, slot); err != nil {
		return domain.Validation("scheduled_time", "must be a time in HH:MM format")
	}
	return nil
}

func validateDraft(d models.BookingDraft) error {
	required := []struct {
		field string
		value string
	}{
		{"service_id", d.ServiceID},
		{"package_tier", d.PackageTier},
		{"scheduled_date", d.ScheduledDate},
		{"scheduled_time", d.ScheduledTime},
		{"address", d.Address},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Validation(r.field, "is required")
		}
	}
	return validateSlot(strings.TrimSpace(d.ScheduledDate), strings.TrimSpace(d.ScheduledTime))
}

// Create validates the draft, prices it from the catalog and stores a new
// booking awaiting payment.
func (s *BookingService) Create(ctx context.Context, actor models.Actor, draft models.BookingDraft) (*models.Booking, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	svc, ok := s.catalog.Lookup(draft.ServiceID)
	if !ok {
		return nil, domain.NotFound("service", draft.ServiceID)
	}
	pkg, ok := svc.Package(draft.PackageTier)
	if !ok {
		return nil, domain.Validation("package_tier", fmt.Sprintf("%q is not offered for %s", draft.PackageTier, svc.Name))
	}

	booking := &models.Booking{
		CustomerID:    actor.UserID,
		CustomerName:  actor.Name,
		CustomerPhone: actor.Phone,
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		Category:      svc.Category,
		PackageTier:   strings.ToLower(pkg.Tier),
		Amount:        pkg.Price,
		ScheduledDate: strings.TrimSpace(draft.ScheduledDate),
		ScheduledTime: strings.TrimSpace(draft.ScheduledTime),
		Address:       strings.TrimSpace(draft.Address),
		Notes:         strings.TrimSpace(draft.Notes),
		Status:        models.StatusPendingPayment,
		PaymentStatus: models.PaymentUnpaid,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, domain.Upstream("create booking", err)
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("customer_id", booking.CustomerID).Str("service_id", booking.ServiceID).Msg("Booking created")
	metrics.IncTransition(string(booking.Status))

	s.notify(ctx, booking.CustomerID, "Booking received",
		fmt.Sprintf("Your %s (%s) booking for %s %s is awaiting payment.", booking.ServiceName, booking.PackageTier, booking.ScheduledDate, booking.ScheduledTime),
		models.SeverityInfo, bookingLink(booking.ID))
	s.notifyAdmins(ctx, "New booking",
		fmt.Sprintf("%s booked %s for %s %s.", displayName(booking.CustomerName, booking.CustomerID), booking.ServiceName, booking.ScheduledDate, booking.ScheduledTime),
		models.SeverityInfo, bookingLink(booking.ID))
	s.publishEvent(events.EventBookingCreated, booking, actor)

	return booking, nil
}

// ConfirmPayment records the payment outcome and confirms the booking.
// Deferred methods leave the payment pending verification by an admin.
func (s *BookingService) ConfirmPayment(ctx context.Context, actor models.Actor, bookingID, method, reference string) (*models.Booking, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return nil, domain.Validation("payment_method", "is required")
	}
	deferred := s.policy.isDeferred(method)

	booking, err := s.update(ctx, "confirm payment", bookingID,
		lifecycle.CheckConfirmPayment(actor),
		lifecycle.ApplyPayment(method, reference, deferred, s.now()))
	if err != nil {
		return nil, err
	}

	if deferred {
		s.notify(ctx, booking.CustomerID, "Booking confirmed",
			fmt.Sprintf("Your %s booking is confirmed. Payment by %s will be collected and verified.", booking.ServiceName, method),
			models.SeveritySuccess, bookingLink(booking.ID))
		s.notifyAdmins(ctx, "Payment to verify",
			fmt.Sprintf("Booking %s was confirmed with %s payment of %.2f.", booking.ID, method, booking.Amount),
			models.SeverityWarning, bookingLink(booking.ID))
	} else {
		s.notify(ctx, booking.CustomerID, "Payment received",
			fmt.Sprintf("We received %.2f for your %s booking. It is now confirmed.", booking.Amount, booking.ServiceName),
			models.SeveritySuccess, bookingLink(booking.ID))
	}
	s.publishEvent(events.EventBookingConfirmed, booking, actor)
	return booking, nil
}

// VerifyPayment marks a deferred payment as collected.
func (s *BookingService) VerifyPayment(ctx context.Context, actor models.Actor, bookingID string) (*models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	booking, err := s.update(ctx, "verify payment", bookingID,
		lifecycle.CheckVerifyPayment,
		lifecycle.ApplyPaymentVerified(s.now()))
	if err != nil {
		return nil, err
	}

	s.notify(ctx, booking.CustomerID, "Payment verified",
		fmt.Sprintf("Your payment for %s has been verified.", booking.ServiceName),
		models.SeveritySuccess, bookingLink(booking.ID))
	s.publishEvent(events.EventPaymentVerified, booking, actor)
	return booking, nil
}

// ClaimJob lets an approved technician take an open job. Exactly one of any
// number of concurrent claims on the same booking succeeds; the rest fail
// with domain.ErrAlreadyAssigned.
func (s *BookingService) ClaimJob(ctx context.Context, actor models.Actor, bookingID string) (*models.Booking, error) {
	tech := actor.Technician
	if !tech.IsApproved() {
		metrics.IncClaim("rejected")
		return nil, domain.ErrNotApproved
	}

	if s.sessions != nil {
		allowed, err := s.sessions.CheckRateLimit(ctx, "claim:"+tech.ID, s.policy.ClaimRateLimit, s.policy.ClaimRateWindow)
		if err != nil {
			s.logger.Warn().Err(err).Str("technician_id", tech.ID).Msg("Claim rate limit check failed")
		} else if !allowed {
			metrics.IncClaim("rejected")
			return nil, domain.RateLimited("too many claim attempts, try again shortly")
		}
	}

	booking, err := s.assign(ctx, "claim job", bookingID, tech)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyAssigned):
			metrics.IncClaim("already_assigned")
		case domain.KindOf(err) == domain.KindUpstream:
			metrics.IncClaim("error")
		default:
			metrics.IncClaim("rejected")
		}
		return nil, err
	}
	metrics.IncClaim("won")

	s.logger.Info().Str("booking_id", booking.ID).Str("technician_id", tech.ID).Msg("Job claimed")
	s.afterAssignment(ctx, booking, tech, actor)
	return booking, nil
}

// AssignTechnician binds a technician chosen by an admin. It goes through the
// same guarded update as ClaimJob.
func (s *BookingService) AssignTechnician(ctx context.Context, actor models.Actor, bookingID, technicianID string) (*models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(technicianID) == "" {
		return nil, domain.Validation("technician_id", "is required")
	}

	tech, err := s.profiles.GetTechnician(ctx, technicianID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("technician", technicianID)
	}
	if err != nil {
		return nil, domain.Upstream("load technician", err)
	}

	booking, err := s.assign(ctx, "assign technician", bookingID, tech)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("technician_id", tech.ID).Str("admin_id", actor.UserID).Msg("Technician assigned by admin")
	s.afterAssignment(ctx, booking, tech, actor)
	return booking, nil
}

func (s *BookingService) assign(ctx context.Context, op, bookingID string, tech *models.Technician) (*models.Booking, error) {
	booking, err := s.update(ctx, op, bookingID, lifecycle.CheckClaim, lifecycle.ApplyAssignment(tech, s.now()))
	if err == nil || !errors.Is(err, domain.ErrConflict) || domain.CodeOf(err) == domain.CodeAlreadyAssigned {
		return booking, err
	}
	// a lost version race means somebody else wrote first; report who won
	if fresh, getErr := s.store.GetBooking(ctx, bookingID); getErr == nil && fresh.IsAssigned() {
		return nil, domain.ErrAlreadyAssigned
	}
	return nil, err
}

func (s *BookingService) afterAssignment(ctx context.Context, booking *models.Booking, tech *models.Technician, actor models.Actor) {
	s.notify(ctx, booking.CustomerID, "Technician assigned",
		fmt.Sprintf("%s will handle your %s on %s at %s.", displayName(tech.Name, "A technician"), booking.ServiceName, booking.ScheduledDate, booking.ScheduledTime),
		models.SeveritySuccess, bookingLink(booking.ID))
	s.notify(ctx, tech.UserID, "New job",
		fmt.Sprintf("%s at %s on %s %s.", booking.ServiceName, booking.Address, booking.ScheduledDate, booking.ScheduledTime),
		models.SeverityInfo, jobLink(booking.ID))
	s.publishEvent(events.EventBookingAssigned, booking, actor)
}

// StartService moves an assigned job to in_progress. Only the assigned
// technician may start it.
func (s *BookingService) StartService(ctx context.Context, actor models.Actor, bookingID string) (*models.Booking, error) {
	booking, err := s.update(ctx, "start service", bookingID,
		lifecycle.CheckStart(actor),
		lifecycle.ApplyStatus(models.StatusInProgress, s.now()))
	if err != nil {
		return nil, err
	}

	s.notify(ctx, booking.CustomerID, "Service started",
		fmt.Sprintf("%s has started working on your %s.", displayName(booking.TechnicianName, "Your technician"), booking.ServiceName),
		models.SeverityInfo, bookingLink(booking.ID))
	s.publishEvent(events.EventBookingStarted, booking, actor)
	return booking, nil
}

// CompleteJob finishes a job and credits the technician's completed job
// counter in the same store transaction.
func (s *BookingService) CompleteJob(ctx context.Context, actor models.Actor, bookingID string) (*models.Booking, error) {
	current, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError("load booking", bookingID, err)
	}

	expectedTech := current.TechnicianID
	check := func(b *models.Booking) error {
		if err := lifecycle.CheckComplete(actor)(b); err != nil {
			return err
		}
		if b.TechnicianID != expectedTech {
			return domain.Conflict(fmt.Sprintf("booking %s was reassigned, reload and retry", b.ID))
		}
		return nil
	}

	var opts []domain.UpdateOption
	if expectedTech != "" {
		opts = append(opts, domain.WithTechnicianCredit(expectedTech))
	}

	booking, err := s.update(ctx, "complete job", bookingID, check, lifecycle.ApplyStatus(models.StatusCompleted, s.now()), opts...)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, booking.CustomerID, "Service completed",
		fmt.Sprintf("Your %s is complete. Thank you for booking with us!", booking.ServiceName),
		models.SeveritySuccess, bookingLink(booking.ID))
	s.publishEvent(events.EventBookingCompleted, booking, actor)
	return booking, nil
}

// CancelBooking cancels a booking and releases any assigned technician.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, bookingID, reason string) (*models.Booking, error) {
	// The technician is read inside the transaction so a claim committed just
	// before the cancel is still told about it.
	var releasedTech string
	check := lifecycle.CheckCancel(actor)
	booking, err := s.update(ctx, "cancel booking", bookingID,
		func(b *models.Booking) error {
			releasedTech = b.TechnicianID
			return check(b)
		},
		lifecycle.ApplyCancel(s.now()))
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Your %s booking for %s %s was cancelled.", booking.ServiceName, booking.ScheduledDate, booking.ScheduledTime)
	if reason = strings.TrimSpace(reason); reason != "" {
		message += " Reason: " + reason
	}
	s.notify(ctx, booking.CustomerID, "Booking cancelled", message, models.SeverityWarning, bookingLink(booking.ID))
	if releasedTech != "" {
		if tech, err := s.profiles.GetTechnician(ctx, releasedTech); err == nil {
			s.notify(ctx, tech.UserID, "Job cancelled",
				fmt.Sprintf("The %s job on %s %s was cancelled.", booking.ServiceName, booking.ScheduledDate, booking.ScheduledTime),
				models.SeverityWarning, jobLink(booking.ID))
		} else {
			s.logger.Warn().Err(err).Str("technician_id", releasedTech).Msg("Could not resolve released technician")
		}
	}
	s.notifyAdmins(ctx, "Booking cancelled",
		fmt.Sprintf("Booking %s (%s) was cancelled by %s.", booking.ID, booking.ServiceName, actor.Role),
		models.SeverityWarning, bookingLink(booking.ID))
	s.publishEvent(events.EventBookingCancelled, booking, actor)
	return booking, nil
}

// RescheduleBooking moves the slot of a booking whose work has not started.
func (s *BookingService) RescheduleBooking(ctx context.Context, actor models.Actor, bookingID, date, slot string) (*models.Booking, error) {
	date, slot = strings.TrimSpace(date), strings.TrimSpace(slot)
	if date == "" {
		return nil, domain.Validation("scheduled_date", "is required")
	}
	if slot == "" {
		return nil, domain.Validation("scheduled_time", "is required")
	}
	if err := validateSlot(date, slot); err != nil {
		return nil, err
	}

	booking, err := s.update(ctx, "reschedule booking", bookingID,
		lifecycle.CheckReschedule(actor),
		lifecycle.ApplyReschedule(date, slot, s.now()))
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Your %s is now scheduled for %s at %s.", booking.ServiceName, date, slot)
	s.notify(ctx, booking.CustomerID, "Booking rescheduled", text, models.SeverityInfo, bookingLink(booking.ID))
	if booking.TechnicianID != "" {
		if tech, err := s.profiles.GetTechnician(ctx, booking.TechnicianID); err == nil {
			s.notify(ctx, tech.UserID, "Job rescheduled",
				fmt.Sprintf("%s at %s moved to %s %s.", booking.ServiceName, booking.Address, date, slot),
				models.SeverityInfo, jobLink(booking.ID))
		}
	}
	s.publishEvent(events.EventBookingRescheduled, booking, actor)
	return booking, nil
}

// GetBooking returns a booking to its customer or an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, bookingID string) (*models.Booking, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError("get booking", bookingID, err)
	}
	if !actor.IsAdmin() && booking.CustomerID != actor.UserID {
		return nil, domain.Unauthorized("only the booking owner or an admin may view this booking")
	}
	return booking, nil
}

// ListUserBookings returns the caller's bookings, newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, actor models.Actor) ([]*models.Booking, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	list, err := s.store.ListByCustomer(ctx, actor.UserID)
	if err != nil {
		return nil, domain.Upstream("list bookings", err)
	}
	return list, nil
}

func (s *BookingService) ListAllBookings(ctx context.Context, actor models.Actor) ([]*models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, domain.Upstream("list all bookings", err)
	}
	return list, nil
}

// ListOpenJobs shows claimable jobs to approved technicians and admins.
func (s *BookingService) ListOpenJobs(ctx context.Context, actor models.Actor, category string) ([]*models.Booking, error) {
	if !actor.IsAdmin() && !actor.Technician.IsApproved() {
		return nil, domain.ErrNotApproved
	}
	list, err := s.store.ListOpenJobs(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, domain.Upstream("list open jobs", err)
	}
	return list, nil
}

// ListTechnicianJobs returns the jobs assigned to the calling technician.
func (s *BookingService) ListTechnicianJobs(ctx context.Context, actor models.Actor) ([]*models.Booking, error) {
	techID := actor.TechnicianID()
	if techID == "" {
		return nil, domain.Unauthorized("technician profile required")
	}
	list, err := s.store.ListByTechnician(ctx, techID)
	if err != nil {
		return nil, domain.Upstream("list technician jobs", err)
	}
	return list, nil
}

// update runs a guarded transition and records it.
func (s *BookingService) update(
	ctx context.Context,
	op, bookingID string,
	check domain.CheckFunc,
	mutate domain.MutateFunc,
	opts ...domain.UpdateOption,
) (*models.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, domain.Validation("booking_id", "is required")
	}
	var from models.BookingStatus
	wrapped := func(b *models.Booking) error {
		from = b.Status
		return check(b)
	}

	booking, err := s.store.TransactionalUpdate(ctx, bookingID, wrapped, mutate, opts...)
	if err != nil {
		mapped := storeError(op, bookingID, err)
		if domain.KindOf(mapped) == domain.KindUpstream {
			s.logger.Error().Err(err).Str("booking_id", bookingID).Str("op", op).Msg("Booking update failed")
		}
		return nil, mapped
	}

	if booking.Status != from {
		metrics.IncTransition(string(booking.Status))
		s.logger.Info().Str("booking_id", booking.ID).Str("from", string(from)).Str("to", string(booking.Status)).Str("op", op).Msg("Booking transition")
	}
	return booking, nil
}

func (s *BookingService) notify(ctx context.Context, userID, title, message string, severity models.Severity, link string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, userID, title, message, severity, link); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("title", title).Msg("Notification failed")
	}
}

func (s *BookingService) notifyAdmins(ctx context.Context, title, message string, severity models.Severity, link string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmins(ctx, title, message, severity, link); err != nil {
		s.logger.Warn().Err(err).Str("title", title).Msg("Admin notification failed")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actor models.Actor) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		Booking:   booking,
		ChangedBy: actor.UserID,
		Role:      actor.Role,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func bookingLink(id string) string {
	return "/bookings/" + id
}

func jobLink(id string) string {
	return "/technician/jobs/" + id
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
