package models

import (
	"github.com/google/uuid"
)

// Package tiers.
const (
	PackageTypeStarter      = "starter"
	PackageTypeProfessional = "professional"
	PackageTypeEnterprise   = "enterprise"
)

// Package is a purchasable task package. The starter package price is the
// reference amount for referral bonus calculation.
type Package struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	TasksPerMonth int       `json:"tasks_per_month"`
	Features      []string  `json:"features"`
	IsPopular     bool      `json:"is_popular"`
}
