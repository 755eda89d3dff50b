package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
services:
  - id: ac-repair
    name: AC Repair
    category: appliance
    is_active: true
    packages:
      - tier: basic
        price: 499
        duration_minutes: 60
      - tier: premium
        price: 999
        duration_minutes: 120
  - id: deep-clean
    name: Deep Cleaning
    category: cleaning
    is_active: false
    packages:
      - tier: basic
        price: 1499
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	svc, ok := c.Lookup("ac-repair")
	require.True(t, ok)
	pkg, ok := svc.Package("Premium")
	require.True(t, ok)
	assert.Equal(t, 999.0, pkg.Price)
	assert.Equal(t, 120, pkg.Duration)

	_, ok = c.Lookup("deep-clean")
	assert.False(t, ok, "inactive services are not bookable")
	_, ok = c.Lookup("nope")
	assert.False(t, ok)

	services := c.Services()
	require.Len(t, services, 1)
	assert.Equal(t, "ac-repair", services[0].ID)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: [::"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	pkg := []models.ServicePackage{{Tier: "basic", Price: 100}}

	tests := []struct {
		name     string
		services []*models.Service
	}{
		{"empty", nil},
		{"no id", []*models.Service{{Name: "x", Packages: pkg}}},
		{"no name", []*models.Service{{ID: "a", Packages: pkg}}},
		{"no packages", []*models.Service{{ID: "a", Name: "A"}}},
		{"zero price", []*models.Service{{ID: "a", Name: "A", Packages: []models.ServicePackage{{Tier: "basic"}}}}},
		{"duplicate tier", []*models.Service{{ID: "a", Name: "A", Packages: []models.ServicePackage{{Tier: "basic", Price: 1}, {Tier: "Basic", Price: 2}}}}},
		{"duplicate id", []*models.Service{{ID: "a", Name: "A", Packages: pkg}, {ID: "a", Name: "B", Packages: pkg}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.services)
			assert.Error(t, err)
		})
	}
}
