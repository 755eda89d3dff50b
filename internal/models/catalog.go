package models

import "strings"

// Service is a catalog entry customers can book.
type Service struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Category    string           `yaml:"category" json:"category"`
	Description string           `yaml:"description" json:"description,omitempty"`
	Packages    []ServicePackage `yaml:"packages" json:"packages"`
	IsActive    bool             `yaml:"is_active" json:"is_active"`
}

type ServicePackage struct {
	Tier     string  `yaml:"tier" json:"tier"`
	Price    float64 `yaml:"price" json:"price"`
	Duration int     `yaml:"duration_minutes" json:"duration_minutes"`
}

// Package finds a package by tier, case-insensitively.
func (s *Service) Package(tier string) (ServicePackage, bool) {
	tier = strings.TrimSpace(tier)
	for _, p := range s.Packages {
		if strings.EqualFold(p.Tier, tier) {
			return p, true
		}
	}
	return ServicePackage{}, false
}
