package payment

import (
	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants for payments
const (
	EventTypePaymentRecorded = "PaymentRecorded"
	EventTypePaymentVerified = "PaymentVerified"
	EventTypePaymentRejected = "PaymentRejected"
	EventTypePaymentDeleted  = "PaymentDeleted"
	EventTypeSlipAttached    = "SlipAttached"
)

// PaymentRecordedEvent is raised when a payment is recorded against an invoice
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"method"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.ProjectID),
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// PaymentVerifiedEvent is raised when a payment review completes, approved or not
type PaymentVerifiedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID          `json:"invoice_id"`
	Amount    decimal.Decimal    `json:"amount"`
	Status    VerificationStatus `json:"status"`
}

// NewPaymentVerifiedEvent creates the event for the payment's review outcome
func NewPaymentVerifiedEvent(p *Payment) *PaymentVerifiedEvent {
	eventType := EventTypePaymentVerified
	if p.Status == StatusRejected {
		eventType = EventTypePaymentRejected
	}
	return &PaymentVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePayment, p.ID, p.ProjectID),
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		Status:          p.Status,
	}
}

// PaymentDeletedEvent is raised when a payment and its slips are removed
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	SlipKeys  []string        `json:"slip_keys"`
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(p *Payment) *PaymentDeletedEvent {
	keys := make([]string, 0, len(p.Slips))
	for _, s := range p.Slips {
		keys = append(keys, s.ImageKey)
	}
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, AggregateTypePayment, p.ID, p.ProjectID),
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		SlipKeys:        keys,
	}
}

// SlipAttachedEvent is raised when evidence is appended to a payment
type SlipAttachedEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID  `json:"invoice_id"`
	SlipID    uuid.UUID  `json:"slip_id"`
	Source    SlipSource `json:"source"`
}

// NewSlipAttachedEvent creates a new SlipAttachedEvent
func NewSlipAttachedEvent(p *Payment, s Slip) *SlipAttachedEvent {
	return &SlipAttachedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSlipAttached, AggregateTypePayment, p.ID, p.ProjectID),
		InvoiceID:       p.InvoiceID,
		SlipID:          s.ID,
		Source:          s.Source,
	}
}
