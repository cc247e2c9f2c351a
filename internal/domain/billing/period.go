package billing

import (
	"fmt"
	"time"

	"github.com/rentalops/backend/internal/domain/shared"
)

// BillingPeriod is the calendar month an invoice bills for.
// It is distinct from the invoice's due date and creation date.
type BillingPeriod struct {
	Year  int
	Month time.Month
}

const billingPeriodLayout = "2006-01"

// ParseBillingPeriod parses a period in YYYY-MM form
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	t, err := time.Parse(billingPeriodLayout, s)
	if err != nil {
		return BillingPeriod{}, shared.NewValidationError(shared.CodeInvalidPeriod,
			fmt.Sprintf("billing period %q must be in YYYY-MM format", s))
	}
	return BillingPeriod{Year: t.Year(), Month: t.Month()}, nil
}

// MustParseBillingPeriod parses a period and panics on malformed input. Intended for tests and constants.
func MustParseBillingPeriod(s string) BillingPeriod {
	p, err := ParseBillingPeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the billing period containing t
func PeriodOf(t time.Time) BillingPeriod {
	return BillingPeriod{Year: t.Year(), Month: t.Month()}
}

// String formats the period as YYYY-MM
func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset
func (p BillingPeriod) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start returns the first instant of the period in UTC
func (p BillingPeriod) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following month
func (p BillingPeriod) Next() BillingPeriod {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Compare returns -1, 0 or 1 depending on whether p is before, equal to or after other
func (p BillingPeriod) Compare(other BillingPeriod) int {
	switch {
	case p.Year < other.Year, p.Year == other.Year && p.Month < other.Month:
		return -1
	case p == other:
		return 0
	default:
		return 1
	}
}

// Before reports whether p is strictly before other
func (p BillingPeriod) Before(other BillingPeriod) bool {
	return p.Compare(other) < 0
}
