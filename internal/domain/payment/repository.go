package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines persistence operations for payments and their slips.
// Find methods return (nil, nil) when the payment does not exist in the project.
type PaymentRepository interface {
	// FindByID loads a payment with its slips
	FindByID(ctx context.Context, projectID, id uuid.UUID) (*Payment, error)
	// FindByInvoice loads every payment on an invoice, slips included, oldest first
	FindByInvoice(ctx context.Context, projectID, invoiceID uuid.UUID) ([]Payment, error)
	// Save inserts or updates the payment row; slips are written through AddSlip
	Save(ctx context.Context, payment *Payment) error
	// AddSlip persists one slip of an existing payment
	AddSlip(ctx context.Context, slip *Slip) error
	// Delete removes the payment and, by cascade, its slips
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

// ReceiptRepository defines persistence operations for receipts
type ReceiptRepository interface {
	// FindByInvoice returns the invoice's receipt, or nil when it has none
	FindByInvoice(ctx context.Context, projectID, invoiceID uuid.UUID) (*Receipt, error)
	Save(ctx context.Context, receipt *Receipt) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}
