package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(t *testing.T, total string) *billing.Invoice {
	t.Helper()
	terms := billing.ContractTerms{
		ProjectID: uuid.New(),
		TenantID:  uuid.New(),
		UnitID:    uuid.New(),
		BaseRent:  dec(total),
		Category:  billing.TenantCategoryIndividual,
	}
	period := billing.MustParseBillingPeriod("2024-03")
	inv, err := billing.NewInvoice(billing.NewInvoiceParams{
		ProjectID:     terms.ProjectID,
		InvoiceNumber: "INV-202403-0001",
		Terms:         terms,
		Type:          billing.InvoiceTypeRent,
		BillingPeriod: period,
		DueDate:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Composition:   billing.Compose(terms, nil, billing.InvoiceTypeRent, period),
	})
	require.NoError(t, err)
	return inv
}

func payments(t *testing.T, inv *billing.Invoice, specs ...pay) []Payment {
	t.Helper()
	out := make([]Payment, 0, len(specs))
	for _, s := range specs {
		p, err := NewPayment(NewPaymentParams{
			ProjectID: inv.ProjectID,
			InvoiceID: inv.ID,
			Amount:    dec(s.amount),
			Method:    MethodCash,
		})
		require.NoError(t, err)
		p.Status = s.status
		out = append(out, *p)
	}
	return out
}

type pay struct {
	amount string
	status VerificationStatus
}

// apply mimics what the reconciliation service persists
func apply(inv *billing.Invoice, r ReconcileResult, existing *Receipt) *Receipt {
	inv.ApplyReconciliation(r.PaidAmount, r.Status)
	switch r.ReceiptAction {
	case ReceiptCreate:
		return NewReceipt(inv.ProjectID, inv.ID, inv.InvoiceNumber, r.ReceiptAmount)
	case ReceiptUpdate:
		existing.Amount = r.ReceiptAmount
		return existing
	case ReceiptDelete:
		return nil
	}
	return existing
}

func TestReconcile_VerifiedFullPaymentIssuesReceipt(t *testing.T) {
	inv := newInvoice(t, "8550")
	ps := payments(t, inv, pay{"8550", StatusVerified})

	r := Reconcile(inv, ps, nil)

	assert.True(t, r.PaidAmount.Equal(dec("8550")))
	assert.Equal(t, billing.InvoiceStatusPaid, r.Status)
	assert.Equal(t, ReceiptCreate, r.ReceiptAction)
	assert.True(t, r.ReceiptAmount.Equal(dec("8550")))
}

func TestReconcile_RejectionRevokesReceipt(t *testing.T) {
	inv := newInvoice(t, "8550")
	ps := payments(t, inv, pay{"8550", StatusVerified})
	receipt := apply(inv, Reconcile(inv, ps, nil), nil)
	require.NotNil(t, receipt)

	ps[0].Status = StatusRejected
	r := Reconcile(inv, ps, receipt)

	assert.True(t, r.PaidAmount.IsZero())
	assert.Equal(t, billing.InvoiceStatusPending, r.Status)
	assert.Equal(t, ReceiptDelete, r.ReceiptAction)
}

func TestReconcile_OverpaymentKeepsFullAmountOnReceipt(t *testing.T) {
	inv := newInvoice(t, "8550")
	ps := payments(t, inv, pay{"5000", StatusVerified}, pay{"5000", StatusVerified})

	r := Reconcile(inv, ps, nil)

	assert.True(t, r.PaidAmount.Equal(dec("10000")))
	assert.Equal(t, billing.InvoiceStatusPaid, r.Status)
	assert.Equal(t, ReceiptCreate, r.ReceiptAction)
	assert.True(t, r.ReceiptAmount.Equal(dec("10000")))
	assert.Equal(t, 2, r.VerifiedCount)
}

func TestReconcile_ReceiptTracksPaidAmount(t *testing.T) {
	inv := newInvoice(t, "8550")
	ps := payments(t, inv, pay{"8550", StatusVerified})
	receipt := apply(inv, Reconcile(inv, ps, nil), nil)

	ps = append(ps, payments(t, inv, pay{"100", StatusVerified})...)
	r := Reconcile(inv, ps, receipt)

	assert.Equal(t, ReceiptUpdate, r.ReceiptAction)
	assert.True(t, r.ReceiptAmount.Equal(dec("8650")))
}

func TestReconcile_PendingAndRejectedDoNotCount(t *testing.T) {
	inv := newInvoice(t, "1000")
	ps := payments(t, inv,
		pay{"300", StatusVerified},
		pay{"500", StatusPending},
		pay{"900", StatusRejected},
	)

	r := Reconcile(inv, ps, nil)

	assert.True(t, r.PaidAmount.Equal(dec("300")))
	assert.Equal(t, billing.InvoiceStatusPartial, r.Status)
	assert.Equal(t, ReceiptNone, r.ReceiptAction)
}

func TestReconcile_Idempotent(t *testing.T) {
	cases := map[string][]pay{
		"no payments": nil,
		"partial":     {{"100", StatusVerified}},
		"paid":        {{"1000", StatusVerified}},
		"overpaid":    {{"700", StatusVerified}, {"700", StatusVerified}},
	}

	for name, specs := range cases {
		t.Run(name, func(t *testing.T) {
			inv := newInvoice(t, "1000")
			ps := payments(t, inv, specs...)

			receipt := apply(inv, Reconcile(inv, ps, nil), nil)
			version := inv.Version

			second := Reconcile(inv, ps, receipt)
			assert.Equal(t, ReceiptNone, second.ReceiptAction)
			assert.False(t, inv.ApplyReconciliation(second.PaidAmount, second.Status))
			assert.Equal(t, version, inv.Version)

			// Receipt exists iff PAID
			assert.Equal(t, inv.Status == billing.InvoiceStatusPaid, receipt != nil)
			sum, _ := SumVerified(ps)
			assert.True(t, inv.PaidAmount.Equal(sum))
		})
	}
}

func TestReconcile_CancelledInvoiceNeverIssuesReceipt(t *testing.T) {
	inv := newInvoice(t, "1000")
	require.NoError(t, inv.Cancel(""))
	ps := payments(t, inv, pay{"1000", StatusVerified})

	r := Reconcile(inv, ps, nil)

	assert.Equal(t, billing.InvoiceStatusCancelled, r.Status)
	assert.Equal(t, ReceiptNone, r.ReceiptAction)
	assert.True(t, r.PaidAmount.Equal(decimal.NewFromInt(1000)))
}

func TestReceiptNumberFor(t *testing.T) {
	assert.Equal(t, "RC-INV-202403-0001", ReceiptNumberFor("INV-202403-0001"))
	assert.Equal(t, "update", ReceiptUpdate.String())
}
