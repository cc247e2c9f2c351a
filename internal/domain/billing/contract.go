package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantCategory distinguishes individuals from companies; only companies are subject to withholding tax
type TenantCategory string

const (
	TenantCategoryIndividual TenantCategory = "INDIVIDUAL"
	TenantCategoryCompany    TenantCategory = "COMPANY"
)

// IsValid checks if the category is valid
func (c TenantCategory) IsValid() bool {
	return c == TenantCategoryIndividual || c == TenantCategoryCompany
}

// String returns the string representation
func (c TenantCategory) String() string {
	return string(c)
}

// ContractTerms are a tenant's commercial terms for a unit.
// They are owned by the contract/tenant store and are read-only to billing.
type ContractTerms struct {
	ProjectID             uuid.UUID
	TenantID              uuid.UUID
	UnitID                uuid.UUID
	BaseRent              decimal.Decimal
	CommonFee             *decimal.Decimal
	DiscountPercent       decimal.Decimal
	DiscountAmount        decimal.Decimal
	WithholdingTaxPercent decimal.Decimal
	Category              TenantCategory
	StartDate             time.Time
	EndDate               *time.Time
}

// IsActiveOn reports whether the contract covers the given date (inclusive on both ends)
func (c ContractTerms) IsActiveOn(date time.Time) bool {
	day := truncateDay(date)
	if day.Before(truncateDay(c.StartDate)) {
		return false
	}
	if c.EndDate != nil && day.After(truncateDay(*c.EndDate)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UtilityType identifies the metered utility
type UtilityType string

const (
	UtilityElectricity UtilityType = "ELECTRICITY"
	UtilityWater       UtilityType = "WATER"
)

// IsValid checks if the utility type is valid
func (u UtilityType) IsValid() bool {
	return u == UtilityElectricity || u == UtilityWater
}

// MeterReading is a recorded utility usage row for a unit and period.
// Amount is computed by the meter store when the reading is recorded; billing trusts it as stored.
type MeterReading struct {
	ID        uuid.UUID
	UnitID    uuid.UUID
	Type      UtilityType
	Period    BillingPeriod
	Previous  decimal.Decimal
	Current   decimal.Decimal
	Usage     decimal.Decimal
	Rate      decimal.Decimal
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// ContractTermsReader resolves the active commercial terms for a tenant in a unit
type ContractTermsReader interface {
	// FindActiveTerms returns the terms active on the given date, or nil when none exist
	FindActiveTerms(ctx context.Context, projectID, tenantID, unitID uuid.UUID, on time.Time) (*ContractTerms, error)
}

// MeterReadingReader reads previously recorded utility usage
type MeterReadingReader interface {
	FindByUnitAndPeriod(ctx context.Context, projectID, unitID uuid.UUID, period BillingPeriod) ([]MeterReading, error)
}
