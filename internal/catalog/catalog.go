// Package catalog loads the bookable services and their priced packages.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"gopkg.in/yaml.v2"
)

type file struct {
	Services []*models.Service `yaml:"services"`
}

// Catalog is an immutable, validated set of services keyed by id.
type Catalog struct {
	byID  map[string]*models.Service
	order []*models.Service
}

// Load reads and validates a catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Services)
}

// New validates services and builds a Catalog. Inactive services are kept
// but never returned by Lookup.
func New(services []*models.Service) (*Catalog, error) {
	if len(services) == 0 {
		return nil, errors.New("catalog has no services")
	}
	c := &Catalog{byID: make(map[string]*models.Service, len(services))}
	for _, s := range services {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate service id %q", s.ID)
		}
		c.byID[s.ID] = s
		c.order = append(c.order, s)
	}
	sort.SliceStable(c.order, func(i, j int) bool { return c.order[i].Name < c.order[j].Name })
	return c, nil
}

func validate(s *models.Service) error {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return errors.New("service with empty id")
	}
	if s.Name == "" {
		return fmt.Errorf("service %q has no name", s.ID)
	}
	if len(s.Packages) == 0 {
		return fmt.Errorf("service %q has no packages", s.ID)
	}
	tiers := make(map[string]bool)
	for _, p := range s.Packages {
		tier := strings.ToLower(strings.TrimSpace(p.Tier))
		if tier == "" {
			return fmt.Errorf("service %q has a package without tier", s.ID)
		}
		if p.Price <= 0 {
			return fmt.Errorf("service %q package %q has non-positive price", s.ID, p.Tier)
		}
		if tiers[tier] {
			return fmt.Errorf("service %q has duplicate tier %q", s.ID, p.Tier)
		}
		tiers[tier] = true
	}
	return nil
}

// Lookup returns an active service by id.
func (c *Catalog) Lookup(serviceID string) (*models.Service, bool) {
	s, ok := c.byID[strings.TrimSpace(serviceID)]
	if !ok || !s.IsActive {
		return nil, false
	}
	return s, true
}

// Services lists active services sorted by name.
func (c *Catalog) Services() []*models.Service {
	out := make([]*models.Service, 0, len(c.order))
	for _, s := range c.order {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}
