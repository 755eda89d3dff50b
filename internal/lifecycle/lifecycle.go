// Package lifecycle holds the booking state graph and the pure checks and
// mutations applied by each transition. Nothing here touches storage; the
// service layer runs these functions inside a store transaction.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
)

var transitions = map[models.BookingStatus][]models.BookingStatus{
	models.StatusPendingPayment: {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:      {models.StatusAssigned, models.StatusCancelled},
	models.StatusAssigned:       {models.StatusInProgress, models.StatusCancelled, models.StatusCompleted},
	models.StatusInProgress:     {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:      nil,
	models.StatusCancelled:      nil,
}

// Next lists the statuses reachable from s in one step.
func Next(s models.BookingStatus) []models.BookingStatus {
	return append([]models.BookingStatus(nil), transitions[s]...)
}

func Valid(s models.BookingStatus) bool {
	_, ok := transitions[s]
	return ok
}

func IsTerminal(s models.BookingStatus) bool {
	return s == models.StatusCompleted || s == models.StatusCancelled
}

func CanTransition(from, to models.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ensureTransition(b *models.Booking, to models.BookingStatus) error {
	if IsTerminal(b.Status) {
		return domain.Conflict(fmt.Sprintf("booking %s is %s and cannot change", b.ID, b.Status))
	}
	if !CanTransition(b.Status, to) {
		return domain.Conflict(fmt.Sprintf("booking %s cannot move from %s to %s", b.ID, b.Status, to))
	}
	return nil
}

func ensureOwnerOrAdmin(b *models.Booking, actor models.Actor) error {
	if actor.IsAdmin() || (actor.UserID != "" && actor.UserID == b.CustomerID) {
		return nil
	}
	return domain.Unauthorized("only the booking owner or an admin may do this")
}

func ensureAssignedTechnician(b *models.Booking, actor models.Actor) error {
	techID := actor.TechnicianID()
	if techID == "" || techID != b.TechnicianID {
		return domain.Unauthorized("only the assigned technician may do this")
	}
	return nil
}

// CheckConfirmPayment guards pending_payment -> confirmed.
func CheckConfirmPayment(actor models.Actor) domain.CheckFunc {
	return func(b *models.Booking) error {
		if err := ensureTransition(b, models.StatusConfirmed); err != nil {
			return err
		}
		return ensureOwnerOrAdmin(b, actor)
	}
}

// CheckVerifyPayment guards an admin marking a deferred payment as collected.
// It is the one check that accepts a terminal booking: cash is often
// collected on completion, so a completed booking may still move its
// payment status to paid. Status, technician and amount stay untouched.
func CheckVerifyPayment(b *models.Booking) error {
	if b.Status == models.StatusCancelled {
		return domain.Conflict(fmt.Sprintf("booking %s is cancelled", b.ID))
	}
	if b.PaymentStatus != models.PaymentPendingVerification {
		return domain.Conflict(fmt.Sprintf("booking %s payment is %s, not pending verification", b.ID, b.PaymentStatus))
	}
	return nil
}

// CheckClaim guards confirmed -> assigned. An existing technician is the
// authoritative signal and wins over whatever the status says.
func CheckClaim(b *models.Booking) error {
	if b.IsAssigned() {
		return domain.ErrAlreadyAssigned
	}
	if b.Status != models.StatusConfirmed {
		return domain.Conflict(fmt.Sprintf("booking %s is %s, not open for assignment", b.ID, b.Status))
	}
	return nil
}

// CheckStart guards assigned -> in_progress.
func CheckStart(actor models.Actor) domain.CheckFunc {
	return func(b *models.Booking) error {
		if err := ensureTransition(b, models.StatusInProgress); err != nil {
			return err
		}
		return ensureAssignedTechnician(b, actor)
	}
}

// CheckComplete guards in_progress -> completed for the assigned technician
// or an admin, and assigned -> completed for admins only.
func CheckComplete(actor models.Actor) domain.CheckFunc {
	return func(b *models.Booking) error {
		if err := ensureTransition(b, models.StatusCompleted); err != nil {
			return err
		}
		if actor.IsAdmin() {
			return nil
		}
		if err := ensureAssignedTechnician(b, actor); err != nil {
			return err
		}
		if b.Status != models.StatusInProgress {
			return domain.Conflict(fmt.Sprintf("booking %s has not started", b.ID))
		}
		return nil
	}
}

// CheckCancel guards -> cancelled. Customers may cancel before work starts;
// admins may also cancel a job in progress.
func CheckCancel(actor models.Actor) domain.CheckFunc {
	return func(b *models.Booking) error {
		if err := ensureTransition(b, models.StatusCancelled); err != nil {
			return err
		}
		if err := ensureOwnerOrAdmin(b, actor); err != nil {
			return err
		}
		if b.Status == models.StatusInProgress && !actor.IsAdmin() {
			return domain.Unauthorized("a job in progress can only be cancelled by an admin")
		}
		return nil
	}
}

// CheckReschedule allows moving the slot of a booking whose work has not
// started.
func CheckReschedule(actor models.Actor) domain.CheckFunc {
	return func(b *models.Booking) error {
		if IsTerminal(b.Status) {
			return domain.Conflict(fmt.Sprintf("booking %s is %s and cannot change", b.ID, b.Status))
		}
		if b.Status == models.StatusInProgress {
			return domain.Conflict(fmt.Sprintf("booking %s is already in progress", b.ID))
		}
		return ensureOwnerOrAdmin(b, actor)
	}
}

// ApplyPayment records the payment and confirms the booking.
func ApplyPayment(method, reference string, deferred bool, now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.PaymentMethod = strings.ToLower(strings.TrimSpace(method))
		b.PaymentReference = strings.TrimSpace(reference)
		if deferred {
			b.PaymentStatus = models.PaymentPendingVerification
		} else {
			b.PaymentStatus = models.PaymentPaid
		}
		b.Status = models.StatusConfirmed
		b.UpdatedAt = now
		return nil
	}
}

func ApplyPaymentVerified(now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.PaymentStatus = models.PaymentPaid
		b.UpdatedAt = now
		return nil
	}
}

// ApplyAssignment binds the technician and moves the booking to assigned.
func ApplyAssignment(tech *models.Technician, now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.TechnicianID = tech.ID
		b.TechnicianName = tech.Name
		b.TechnicianPhone = tech.Phone
		b.Status = models.StatusAssigned
		b.UpdatedAt = now
		return nil
	}
}

func ApplyStatus(to models.BookingStatus, now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.Status = to
		b.UpdatedAt = now
		return nil
	}
}

func ApplyCancel(now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.Status = models.StatusCancelled
		b.ClearTechnician()
		b.UpdatedAt = now
		return nil
	}
}

func ApplyReschedule(date, slot string, now time.Time) domain.MutateFunc {
	return func(b *models.Booking) error {
		b.ScheduledDate = date
		b.ScheduledTime = slot
		b.UpdatedAt = now
		return nil
	}
}
