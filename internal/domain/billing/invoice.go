package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type name used in events
const AggregateTypeInvoice = "Invoice"

// InvoiceType selects which charges an invoice carries
type InvoiceType string

const (
	InvoiceTypeRent     InvoiceType = "RENT"
	InvoiceTypeUtility  InvoiceType = "UTILITY"
	InvoiceTypeCombined InvoiceType = "COMBINED"
)

// IsValid checks if the invoice type is valid
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeRent, InvoiceTypeUtility, InvoiceTypeCombined:
		return true
	}
	return false
}

// IncludesRent reports whether rent (and common fee) lines are billed
func (t InvoiceType) IncludesRent() bool {
	return t == InvoiceTypeRent || t == InvoiceTypeCombined
}

// IncludesUtility reports whether metered utility lines are billed
func (t InvoiceType) IncludesUtility() bool {
	return t == InvoiceTypeUtility || t == InvoiceTypeCombined
}

// InvoiceStatus represents the collection status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is valid
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s InvoiceStatus) String() string {
	return string(s)
}

// DeriveStatus maps a paid amount against a total to PAID, PARTIAL or PENDING
func DeriveStatus(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// NextStatus derives the status an invoice moves to after its paid amount changes.
// CANCELLED is terminal. OVERDUE is set by an external schedule and is kept until the invoice is fully paid.
func NextStatus(current InvoiceStatus, paid, total decimal.Decimal) InvoiceStatus {
	if current == InvoiceStatusCancelled {
		return InvoiceStatusCancelled
	}
	derived := DeriveStatus(paid, total)
	if current == InvoiceStatusOverdue && derived != InvoiceStatusPaid {
		return InvoiceStatusOverdue
	}
	return derived
}

// Invoice is the billing aggregate for one tenant, unit and billing period
type Invoice struct {
	shared.ProjectAggregateRoot
	InvoiceNumber         string
	TenantID              uuid.UUID
	UnitID                uuid.UUID
	Type                  InvoiceType
	BillingPeriod         BillingPeriod
	DueDate               time.Time
	TenantCategory        TenantCategory
	WithholdingTaxPercent decimal.Decimal
	LineItems             []LineItem
	Subtotal              decimal.Decimal
	WithholdingTax        decimal.Decimal
	TotalAmount           decimal.Decimal
	PaidAmount            decimal.Decimal
	Status                InvoiceStatus
	Notes                 string
}

// NewInvoiceParams groups the inputs for a freshly composed invoice
type NewInvoiceParams struct {
	ProjectID     uuid.UUID
	InvoiceNumber string
	Terms         ContractTerms
	Type          InvoiceType
	BillingPeriod BillingPeriod
	DueDate       time.Time
	Notes         string
	Composition   Composition
}

// NewInvoice creates a PENDING invoice from a composition
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.ProjectID == uuid.Nil {
		return nil, shared.NewValidationError("", "Project ID cannot be empty")
	}
	if p.InvoiceNumber == "" {
		return nil, shared.NewValidationError("", "Invoice number cannot be empty")
	}
	if p.Terms.TenantID == uuid.Nil || p.Terms.UnitID == uuid.Nil {
		return nil, shared.NewValidationError("", "Tenant and unit are required")
	}
	if !p.Type.IsValid() {
		return nil, shared.NewValidationError("INVALID_TYPE", "Invalid invoice type")
	}
	if p.BillingPeriod.IsZero() {
		return nil, shared.NewValidationError(shared.CodeInvalidPeriod, "Billing period is required")
	}
	if p.DueDate.IsZero() {
		return nil, shared.NewValidationError("", "Due date is required")
	}

	inv := &Invoice{
		ProjectAggregateRoot:  shared.NewProjectAggregateRoot(p.ProjectID),
		InvoiceNumber:         p.InvoiceNumber,
		TenantID:              p.Terms.TenantID,
		UnitID:                p.Terms.UnitID,
		Type:                  p.Type,
		BillingPeriod:         p.BillingPeriod,
		DueDate:               p.DueDate,
		TenantCategory:        p.Terms.Category,
		WithholdingTaxPercent: p.Terms.WithholdingTaxPercent,
		PaidAmount:            decimal.Zero,
		Status:                InvoiceStatusPending,
		Notes:                 p.Notes,
	}
	inv.applyComposition(p.Composition)

	inv.AddDomainEvent(NewInvoiceComposedEvent(inv))
	return inv, nil
}

// Recomposition carries the optional edits that trigger a rebuild of the line items
type Recomposition struct {
	Type          *InvoiceType
	BillingPeriod *BillingPeriod
	DueDate       *time.Time
	Notes         *string
}

// Target returns the invoice type and period the composition should be built for after applying r
func (i *Invoice) Target(r Recomposition) (InvoiceType, BillingPeriod) {
	t, p := i.Type, i.BillingPeriod
	if r.Type != nil {
		t = *r.Type
	}
	if r.BillingPeriod != nil {
		p = *r.BillingPeriod
	}
	return t, p
}

// Recompose applies the edits and replaces every line item with the new composition.
// Paid amount and status are not touched here; the caller reconciles afterwards because the total may have moved.
func (i *Invoice) Recompose(r Recomposition, terms ContractTerms, comp Composition) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot recompose a cancelled invoice")
	}
	if r.Type != nil && !r.Type.IsValid() {
		return shared.NewValidationError("INVALID_TYPE", "Invalid invoice type")
	}
	if r.DueDate != nil && r.DueDate.IsZero() {
		return shared.NewValidationError("", "Due date cannot be empty")
	}

	i.Type, i.BillingPeriod = i.Target(r)
	if r.DueDate != nil {
		i.DueDate = *r.DueDate
	}
	if r.Notes != nil {
		i.Notes = *r.Notes
	}
	i.TenantCategory = terms.Category
	i.WithholdingTaxPercent = terms.WithholdingTaxPercent
	i.applyComposition(comp)

	i.Touch()
	i.IncrementVersion()
	i.AddDomainEvent(NewInvoiceRecomposedEvent(i))
	return nil
}

func (i *Invoice) applyComposition(comp Composition) {
	items := make([]LineItem, len(comp.LineItems))
	copy(items, comp.LineItems)
	i.LineItems = items
	i.Subtotal = comp.Subtotal
	i.WithholdingTax = comp.WithholdingTax
	i.TotalAmount = comp.TotalAmount
}

// ApplyReconciliation stores the derived paid amount and status.
// It returns false and leaves the invoice untouched when nothing changed, which keeps reconciliation idempotent.
func (i *Invoice) ApplyReconciliation(paid decimal.Decimal, status InvoiceStatus) bool {
	if i.PaidAmount.Equal(paid) && i.Status == status {
		return false
	}
	old := i.Status
	i.PaidAmount = paid
	i.Status = status
	i.Touch()
	i.IncrementVersion()
	i.AddDomainEvent(NewInvoiceReconciledEvent(i, old))
	return true
}

// AcceptsPayments reports whether new payments may be recorded against the invoice
func (i *Invoice) AcceptsPayments() bool {
	return i.Status != InvoiceStatusCancelled
}

// Cancel voids an invoice that has collected nothing
func (i *Invoice) Cancel(reason string) error {
	if i.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Invoice is already cancelled")
	}
	if i.PaidAmount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot cancel an invoice with verified payments")
	}
	old := i.Status
	i.Status = InvoiceStatusCancelled
	if reason != "" {
		i.Notes = reason
	}
	i.Touch()
	i.IncrementVersion()
	i.AddDomainEvent(NewInvoiceReconciledEvent(i, old))
	return nil
}

// OutstandingAmount returns what is still owed, never negative
func (i *Invoice) OutstandingAmount() decimal.Decimal {
	out := i.TotalAmount.Sub(i.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
