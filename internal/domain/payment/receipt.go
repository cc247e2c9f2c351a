package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt is the settlement record of a PAID invoice. Its lifecycle is driven solely by reconciliation.
type Receipt struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	InvoiceID     uuid.UUID
	ReceiptNumber string
	Amount        decimal.Decimal
	IssuedAt      time.Time
	UpdatedAt     time.Time
}

// NewReceipt issues a receipt for the collected amount
func NewReceipt(projectID, invoiceID uuid.UUID, invoiceNumber string, amount decimal.Decimal) *Receipt {
	now := time.Now()
	return &Receipt{
		ID:            uuid.New(),
		ProjectID:     projectID,
		InvoiceID:     invoiceID,
		ReceiptNumber: ReceiptNumberFor(invoiceNumber),
		Amount:        amount,
		IssuedAt:      now,
		UpdatedAt:     now,
	}
}

// ReceiptNumberFor derives the receipt number from the invoice it settles.
// There is at most one receipt per invoice, so the invoice number is already unique.
func ReceiptNumberFor(invoiceNumber string) string {
	return fmt.Sprintf("RC-%s", invoiceNumber)
}
