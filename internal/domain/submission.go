package domain

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied when the form leaves a field blank.
const (
	DefaultBusinessName = "Your Business"
	DefaultTaxPercent   = "7"
	DefaultCurrency     = "USD"
)

// Submission is the structured business profile extracted from an Event.
type Submission struct {
	BusinessName string
	Address      string
	CityStateZip string
	Phone        string
	Email        string
	TaxPercent   string
	Currency     string
	LogoURL      string
	BrandID      string
}

// Customer is the persisted record of a customer's branding profile.
type Customer struct {
	ID           uuid.UUID
	Email        string
	BusinessName string
	BrandID      string
	LogoURL      string
	Address      string
	CityStateZip string
	Phone        string
	SubmittedAt  time.Time
	EmailSent    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
