package payment

import (
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// ReceiptAction is the change reconciliation makes to an invoice's receipt
type ReceiptAction int

const (
	ReceiptNone ReceiptAction = iota
	ReceiptCreate
	ReceiptUpdate
	ReceiptDelete
)

// String returns a readable name for logs and span attributes
func (a ReceiptAction) String() string {
	switch a {
	case ReceiptCreate:
		return "create"
	case ReceiptUpdate:
		return "update"
	case ReceiptDelete:
		return "delete"
	default:
		return "none"
	}
}

// ReconcileResult is the derived state of an invoice given its current payments
type ReconcileResult struct {
	PaidAmount    decimal.Decimal
	Status        billing.InvoiceStatus
	ReceiptAction ReceiptAction
	// ReceiptAmount is the amount the receipt must carry when the action is create or update
	ReceiptAmount decimal.Decimal
	VerifiedCount int
}

// SumVerified totals the amounts of verified payments
func SumVerified(payments []Payment) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for i := range payments {
		if payments[i].IsVerified() {
			total = total.Add(payments[i].Amount)
			count++
		}
	}
	return total, count
}

// Reconcile derives paid amount, status and the receipt change for an invoice.
//
// A receipt exists only while the invoice is PAID and always records the full paid amount,
// including any overpayment. Running Reconcile on its own output yields ReceiptNone.
func Reconcile(invoice *billing.Invoice, payments []Payment, existing *Receipt) ReconcileResult {
	paid, count := SumVerified(payments)
	status := billing.NextStatus(invoice.Status, paid, invoice.TotalAmount)

	result := ReconcileResult{
		PaidAmount:    paid,
		Status:        status,
		ReceiptAction: ReceiptNone,
		VerifiedCount: count,
	}

	switch {
	case status != billing.InvoiceStatusPaid && existing != nil:
		result.ReceiptAction = ReceiptDelete
	case status == billing.InvoiceStatusPaid && existing == nil:
		result.ReceiptAction = ReceiptCreate
		result.ReceiptAmount = paid
	case status == billing.InvoiceStatusPaid && !existing.Amount.Equal(paid):
		result.ReceiptAction = ReceiptUpdate
		result.ReceiptAmount = paid
	}
	return result
}
