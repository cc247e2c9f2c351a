package billing

import (
	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants for invoices
const (
	EventTypeInvoiceComposed   = "InvoiceComposed"
	EventTypeInvoiceRecomposed = "InvoiceRecomposed"
	EventTypeInvoiceReconciled = "InvoiceReconciled"
)

// InvoiceComposedEvent is raised when a new invoice is created from contract terms and readings
type InvoiceComposedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	UnitID        uuid.UUID       `json:"unit_id"`
	InvoiceType   InvoiceType     `json:"invoice_type"`
	BillingPeriod string          `json:"billing_period"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LineItemCount int             `json:"line_item_count"`
}

// NewInvoiceComposedEvent creates a new InvoiceComposedEvent
func NewInvoiceComposedEvent(inv *Invoice) *InvoiceComposedEvent {
	return &InvoiceComposedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceComposed, AggregateTypeInvoice, inv.ID, inv.ProjectID),
		InvoiceNumber:   inv.InvoiceNumber,
		TenantID:        inv.TenantID,
		UnitID:          inv.UnitID,
		InvoiceType:     inv.Type,
		BillingPeriod:   inv.BillingPeriod.String(),
		TotalAmount:     inv.TotalAmount,
		LineItemCount:   len(inv.LineItems),
	}
}

// InvoiceRecomposedEvent is raised when an invoice's line items are rebuilt
type InvoiceRecomposedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceType   InvoiceType     `json:"invoice_type"`
	BillingPeriod string          `json:"billing_period"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LineItemCount int             `json:"line_item_count"`
}

// NewInvoiceRecomposedEvent creates a new InvoiceRecomposedEvent
func NewInvoiceRecomposedEvent(inv *Invoice) *InvoiceRecomposedEvent {
	return &InvoiceRecomposedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceRecomposed, AggregateTypeInvoice, inv.ID, inv.ProjectID),
		InvoiceNumber:   inv.InvoiceNumber,
		InvoiceType:     inv.Type,
		BillingPeriod:   inv.BillingPeriod.String(),
		TotalAmount:     inv.TotalAmount,
		LineItemCount:   len(inv.LineItems),
	}
}

// InvoiceReconciledEvent is raised whenever an invoice's derived collection state changes
type InvoiceReconciledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	BillingPeriod string          `json:"billing_period"`
	OldStatus     InvoiceStatus   `json:"old_status"`
	NewStatus     InvoiceStatus   `json:"new_status"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewInvoiceReconciledEvent creates a new InvoiceReconciledEvent
func NewInvoiceReconciledEvent(inv *Invoice, oldStatus InvoiceStatus) *InvoiceReconciledEvent {
	return &InvoiceReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceReconciled, AggregateTypeInvoice, inv.ID, inv.ProjectID),
		InvoiceNumber:   inv.InvoiceNumber,
		BillingPeriod:   inv.BillingPeriod.String(),
		OldStatus:       oldStatus,
		NewStatus:       inv.Status,
		PaidAmount:      inv.PaidAmount,
		TotalAmount:     inv.TotalAmount,
	}
}
