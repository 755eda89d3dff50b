package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServicePackage(t *testing.T) {
	svc := &Service{
		ID:   "ac-repair",
		Name: "AC Repair",
		Packages: []ServicePackage{
			{Tier: "basic", Price: 299},
			{Tier: "standard", Price: 499},
		},
	}

	t.Run("CaseInsensitive", func(t *testing.T) {
		p, ok := svc.Package(" Standard ")
		assert.True(t, ok)
		assert.Equal(t, 499.0, p.Price)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, ok := svc.Package("premium")
		assert.False(t, ok)
	})
}

func TestBookingHelpers(t *testing.T) {
	b := &Booking{ID: "b1", TechnicianID: "t1", TechnicianName: "Tech", TechnicianPhone: "+100"}
	assert.True(t, b.IsAssigned())

	c := b.Clone()
	c.ClearTechnician()
	assert.False(t, c.IsAssigned())
	assert.Empty(t, c.TechnicianName)
	assert.Empty(t, c.TechnicianPhone)
	assert.True(t, b.IsAssigned(), "clone must not alias the original")

	var nilBooking *Booking
	assert.Nil(t, nilBooking.Clone())
}

func TestActor(t *testing.T) {
	admin := Actor{UserID: "u1", Role: RoleAdmin}
	assert.True(t, admin.IsAdmin())
	assert.Empty(t, admin.TechnicianID())

	tech := Actor{UserID: "u2", Role: RoleTechnician, Technician: &Technician{ID: "t2", Status: TechnicianApproved}}
	assert.False(t, tech.IsAdmin())
	assert.Equal(t, "t2", tech.TechnicianID())
	assert.True(t, tech.Technician.IsApproved())

	var missing *Technician
	assert.False(t, missing.IsApproved())
}
