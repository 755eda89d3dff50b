package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
)

// TechnicianService handles technician onboarding and approval.
type TechnicianService struct {
	profiles domain.ProfileStore
	notifier domain.Notifier
	logger   *zerolog.Logger
}

func NewTechnicianService(profiles domain.ProfileStore, notifier domain.Notifier, logger *zerolog.Logger) *TechnicianService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TechnicianService{profiles: profiles, notifier: notifier, logger: logger}
}

// Apply registers the caller as a technician awaiting approval.
func (s *TechnicianService) Apply(ctx context.Context, actor models.Actor, name, phone, category string) (*models.Technician, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	name, phone, category = strings.TrimSpace(name), strings.TrimSpace(phone), strings.TrimSpace(category)
	if name == "" {
		return nil, domain.Validation("name", "is required")
	}
	if phone == "" {
		return nil, domain.Validation("phone", "is required")
	}
	if category == "" {
		return nil, domain.Validation("category", "is required")
	}

	tech := &models.Technician{
		UserID:   actor.UserID,
		Name:     name,
		Phone:    phone,
		Category: category,
		Status:   models.TechnicianPending,
	}
	if err := s.profiles.CreateTechnician(ctx, tech); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Conflict("a technician application already exists for this account")
		}
		return nil, domain.Upstream("create technician", err)
	}

	s.logger.Info().Str("technician_id", tech.ID).Str("user_id", actor.UserID).Str("category", category).Msg("Technician application received")
	if s.notifier != nil {
		if err := s.notifier.NotifyAdmins(ctx, "Technician application",
			fmt.Sprintf("%s applied as a %s technician.", name, category),
			models.SeverityInfo, "/admin/technicians/"+tech.ID); err != nil {
			s.logger.Warn().Err(err).Msg("Admin notification failed")
		}
	}
	return tech, nil
}

// ApproveTechnician sets the technician's status. Approval also grants the
// technician role to the applicant's account.
func (s *TechnicianService) ApproveTechnician(ctx context.Context, actor models.Actor, technicianID string, status models.TechnicianStatus) (*models.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(technicianID) == "" {
		return nil, domain.Validation("technician_id", "is required")
	}
	if status == "" {
		status = models.TechnicianApproved
	}
	if status != models.TechnicianApproved && status != models.TechnicianRejected {
		return nil, domain.Validation("status", "must be approved or rejected")
	}

	if err := s.profiles.UpdateTechnicianStatus(ctx, technicianID, status); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NotFound("technician", technicianID)
		}
		return nil, domain.Upstream("update technician", err)
	}
	tech, err := s.profiles.GetTechnician(ctx, technicianID)
	if err != nil {
		return nil, domain.Upstream("load technician", err)
	}

	if status == models.TechnicianApproved {
		user, err := s.profiles.GetUser(ctx, tech.UserID)
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			s.logger.Warn().Str("user_id", tech.UserID).Msg("Approved technician has no user profile")
		case err != nil:
			return nil, domain.Upstream("load user", err)
		case !user.IsAdmin():
			if err := s.profiles.UpdateUserRole(ctx, tech.UserID, models.RoleTechnician); err != nil {
				return nil, domain.Upstream("update role", err)
			}
		}
	}

	s.logger.Info().Str("technician_id", tech.ID).Str("status", string(status)).Str("admin_id", actor.UserID).Msg("Technician status updated")
	if s.notifier != nil {
		title, message, severity := "Application approved", "You can now claim open jobs.", models.SeveritySuccess
		if status == models.TechnicianRejected {
			title, message, severity = "Application rejected", "Your technician application was not approved.", models.SeverityWarning
		}
		if err := s.notifier.Notify(ctx, tech.UserID, title, message, severity, "/technician"); err != nil {
			s.logger.Warn().Err(err).Str("user_id", tech.UserID).Msg("Notification failed")
		}
	}
	return tech, nil
}

func (s *TechnicianService) ListTechnicians(ctx context.Context, actor models.Actor) ([]*models.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.profiles.ListTechnicians(ctx)
	if err != nil {
		return nil, domain.Upstream("list technicians", err)
	}
	return list, nil
}
