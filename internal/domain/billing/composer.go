package billing

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItemKind classifies a line item
type LineItemKind string

const (
	LineItemRent        LineItemKind = "RENT"
	LineItemCommonFee   LineItemKind = "COMMON_FEE"
	LineItemElectricity LineItemKind = "ELECTRICITY"
	LineItemWater       LineItemKind = "WATER"
)

// LineItem is one billed amount on an invoice
type LineItem struct {
	ID          uuid.UUID
	Kind        LineItemKind
	Description string
	Amount      decimal.Decimal
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
	Usage       *decimal.Decimal
	Rate        *decimal.Decimal
	SortOrder   int
}

// Composition is the output of composing an invoice: its line items and monetary totals
type Composition struct {
	LineItems      []LineItem
	Subtotal       decimal.Decimal
	WithholdingTax decimal.Decimal
	TotalAmount    decimal.Decimal
}

// RentAmount applies both rent discounts to the base rent.
// Each discount is taken from the original base rent; they do not compound.
func RentAmount(terms ContractTerms) decimal.Decimal {
	percentOff := terms.BaseRent.Mul(terms.DiscountPercent).Div(hundred)
	return terms.BaseRent.Sub(terms.DiscountAmount).Sub(percentOff).Round(2)
}

// WithholdingTax returns the tax withheld on subtotal. Only company tenants are withheld.
func WithholdingTax(subtotal decimal.Decimal, terms ContractTerms) decimal.Decimal {
	if terms.Category != TenantCategoryCompany {
		return decimal.Zero
	}
	return subtotal.Mul(terms.WithholdingTaxPercent).Div(hundred).Round(2)
}

// Compose builds line items and totals for an invoice of the given type.
//
// Utility lines use each reading's stored amount. Readings for other periods are ignored, and
// a utility with no reading for the period simply produces no line.
func Compose(terms ContractTerms, readings []MeterReading, invoiceType InvoiceType, period BillingPeriod) Composition {
	var items []LineItem

	if invoiceType.IncludesRent() {
		rent := RentAmount(terms)
		base := terms.BaseRent
		items = append(items, LineItem{
			ID:          uuid.New(),
			Kind:        LineItemRent,
			Description: fmt.Sprintf("Rent %s", period),
			Amount:      rent,
			UnitPrice:   &base,
		})
		if terms.CommonFee != nil && terms.CommonFee.IsPositive() {
			fee := terms.CommonFee.Round(2)
			items = append(items, LineItem{
				ID:          uuid.New(),
				Kind:        LineItemCommonFee,
				Description: fmt.Sprintf("Common area fee %s", period),
				Amount:      fee,
			})
		}
	}

	if invoiceType.IncludesUtility() {
		for _, r := range sortedReadings(readings, period) {
			usage, rate := r.Usage, r.Rate
			items = append(items, LineItem{
				ID:   uuid.New(),
				Kind: utilityLineKind(r.Type),
				Description: fmt.Sprintf("%s %s (%s - %s)",
					utilityLabel(r.Type), period, r.Previous.String(), r.Current.String()),
				Amount:    r.Amount.Round(2),
				Quantity:  &usage,
				UnitPrice: &rate,
				Usage:     &usage,
				Rate:      &rate,
			})
		}
	}

	subtotal := decimal.Zero
	for i := range items {
		items[i].SortOrder = i + 1
		subtotal = subtotal.Add(items[i].Amount)
	}
	wht := WithholdingTax(subtotal, terms)

	return Composition{
		LineItems:      items,
		Subtotal:       subtotal,
		WithholdingTax: wht,
		TotalAmount:    subtotal.Sub(wht),
	}
}

// sortedReadings keeps readings for the period and orders them electricity first, then by creation time
func sortedReadings(readings []MeterReading, period BillingPeriod) []MeterReading {
	out := make([]MeterReading, 0, len(readings))
	for _, r := range readings {
		if r.Period == period && r.Type.IsValid() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == UtilityElectricity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func utilityLineKind(t UtilityType) LineItemKind {
	if t == UtilityWater {
		return LineItemWater
	}
	return LineItemElectricity
}

func utilityLabel(t UtilityType) string {
	if t == UtilityWater {
		return "Water"
	}
	return "Electricity"
}
