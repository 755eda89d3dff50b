package service

import (
	"context"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"
)

// Stats aggregates bookings and technicians for the admin dashboard.
// Revenue counts completed bookings whose payment has been collected.
func (s *BookingService) Stats(ctx context.Context, actor models.Actor) (*models.BookingStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	bookings, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, domain.Upstream("list bookings", err)
	}
	techs, err := s.profiles.ListTechnicians(ctx)
	if err != nil {
		return nil, domain.Upstream("list technicians", err)
	}

	return computeStats(bookings, techs), nil
}

func computeStats(bookings []*models.Booking, techs []*models.Technician) *models.BookingStats {
	stats := &models.BookingStats{
		Total:    len(bookings),
		ByStatus: make(map[models.BookingStatus]int, len(models.AllStatuses)),
	}
	for _, st := range models.AllStatuses {
		stats.ByStatus[st] = 0
	}

	for _, b := range bookings {
		stats.ByStatus[b.Status]++
		if b.PaymentStatus == models.PaymentPendingVerification && b.Status != models.StatusCancelled {
			stats.PendingVerification++
		}
		if b.Status == models.StatusCompleted && b.PaymentStatus == models.PaymentPaid {
			stats.Revenue += b.Amount
		}
	}

	for _, t := range techs {
		switch t.Status {
		case models.TechnicianPending:
			stats.PendingTechnicians++
		case models.TechnicianApproved:
			stats.ApprovedTechnicians++
		}
		stats.CompletedJobsRecorded += int(t.CompletedJobs)
	}
	return stats
}
