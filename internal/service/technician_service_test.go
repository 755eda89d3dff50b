package service

import (
	"context"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTechnicianOnboarding(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	applicant := h.stranger

	_, err := h.techs.Apply(ctx, applicant, "Vikram", "", "plumbing")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	tech, err := h.techs.Apply(ctx, applicant, " Vikram ", "+91200", "plumbing")
	require.NoError(t, err)
	assert.Equal(t, models.TechnicianPending, tech.Status)
	assert.Equal(t, "Vikram", tech.Name)
	assert.Contains(t, h.notifier.adminTitles(), "Technician application")

	_, err = h.techs.Apply(ctx, applicant, "Vikram", "+91200", "plumbing")
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	t.Run("PendingCannotClaim", func(t *testing.T) {
		b := h.confirmedBooking(t)
		actor := models.Actor{UserID: applicant.UserID, Role: models.RoleCustomer, Technician: tech}
		_, err := h.svc.ClaimJob(ctx, actor, b.ID)
		assert.ErrorIs(t, err, domain.ErrNotApproved)
	})

	t.Run("AdminOnly", func(t *testing.T) {
		_, err := h.techs.ApproveTechnician(ctx, h.tech1, tech.ID, models.TechnicianApproved)
		assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		_, err := h.techs.ApproveTechnician(ctx, h.admin, tech.ID, models.TechnicianPending)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("UnknownTechnician", func(t *testing.T) {
		_, err := h.techs.ApproveTechnician(ctx, h.admin, "ghost", models.TechnicianApproved)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("ApprovalPromotesRole", func(t *testing.T) {
		approved, err := h.techs.ApproveTechnician(ctx, h.admin, tech.ID, "")
		require.NoError(t, err)
		assert.Equal(t, models.TechnicianApproved, approved.Status)

		user, err := h.db.GetUser(ctx, applicant.UserID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleTechnician, user.Role)
		assert.Contains(t, h.notifier.titlesFor(applicant.UserID), "Application approved")

		b := h.confirmedBooking(t)
		actor := models.Actor{UserID: applicant.UserID, Role: models.RoleTechnician, Technician: approved}
		claimed, err := h.svc.ClaimJob(ctx, actor, b.ID)
		require.NoError(t, err)
		assert.Equal(t, tech.ID, claimed.TechnicianID)
	})

	t.Run("AdminKeepsRole", func(t *testing.T) {
		adminTech, err := h.techs.Apply(ctx, h.admin, "Ops", "+91300", "appliance")
		require.NoError(t, err)
		_, err = h.techs.ApproveTechnician(ctx, h.admin, adminTech.ID, models.TechnicianApproved)
		require.NoError(t, err)

		user, err := h.db.GetUser(ctx, h.admin.UserID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
	})

	t.Run("List", func(t *testing.T) {
		list, err := h.techs.ListTechnicians(ctx, h.admin)
		require.NoError(t, err)
		assert.Len(t, list, 5)
	})
}
