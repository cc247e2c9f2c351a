package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T) *Invoice {
	t.Helper()
	terms := companyTerms()
	period := MustParseBillingPeriod("2024-03")
	inv, err := NewInvoice(NewInvoiceParams{
		ProjectID:     terms.ProjectID,
		InvoiceNumber: "INV-202403-0001",
		Terms:         terms,
		Type:          InvoiceTypeRent,
		BillingPeriod: period,
		DueDate:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Composition:   Compose(terms, nil, InvoiceTypeRent, period),
	})
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	inv := newTestInvoice(t)

	assert.Equal(t, InvoiceStatusPending, inv.Status)
	assert.True(t, inv.PaidAmount.IsZero())
	assert.True(t, inv.TotalAmount.Equal(dec("8550")))
	assert.Equal(t, 1, inv.Version)
	require.Len(t, inv.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeInvoiceComposed, inv.GetDomainEvents()[0].EventType())
}

func TestNewInvoice_Validation(t *testing.T) {
	terms := companyTerms()
	base := NewInvoiceParams{
		ProjectID:     terms.ProjectID,
		InvoiceNumber: "INV-1",
		Terms:         terms,
		Type:          InvoiceTypeRent,
		BillingPeriod: MustParseBillingPeriod("2024-03"),
		DueDate:       time.Now(),
	}

	tests := []struct {
		name   string
		mutate func(p *NewInvoiceParams)
		code   string
	}{
		{"missing project", func(p *NewInvoiceParams) { p.ProjectID = uuid.Nil }, shared.CodeValidation},
		{"missing number", func(p *NewInvoiceParams) { p.InvoiceNumber = "" }, shared.CodeValidation},
		{"bad type", func(p *NewInvoiceParams) { p.Type = "WEEKLY" }, "INVALID_TYPE"},
		{"missing period", func(p *NewInvoiceParams) { p.BillingPeriod = BillingPeriod{} }, shared.CodeInvalidPeriod},
		{"missing due date", func(p *NewInvoiceParams) { p.DueDate = time.Time{} }, shared.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewInvoice(p)
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ErrorCode(err))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	total := dec("8550")
	tests := []struct {
		paid string
		want InvoiceStatus
	}{
		{"0", InvoiceStatusPending},
		{"1", InvoiceStatusPartial},
		{"8549.99", InvoiceStatusPartial},
		{"8550", InvoiceStatusPaid},
		{"10000", InvoiceStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.paid, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(dec(tt.paid), total))
		})
	}

	// A zero-total invoice is settled with nothing paid
	assert.Equal(t, InvoiceStatusPaid, DeriveStatus(decimal.Zero, decimal.Zero))
}

func TestNextStatus(t *testing.T) {
	total := dec("100")
	assert.Equal(t, InvoiceStatusCancelled, NextStatus(InvoiceStatusCancelled, dec("100"), total))
	assert.Equal(t, InvoiceStatusOverdue, NextStatus(InvoiceStatusOverdue, dec("50"), total))
	assert.Equal(t, InvoiceStatusOverdue, NextStatus(InvoiceStatusOverdue, decimal.Zero, total))
	assert.Equal(t, InvoiceStatusPaid, NextStatus(InvoiceStatusOverdue, dec("100"), total))
	assert.Equal(t, InvoiceStatusPending, NextStatus(InvoiceStatusPaid, decimal.Zero, total))
	assert.Equal(t, InvoiceStatusPartial, NextStatus(InvoiceStatusPaid, dec("10"), total))
}

func TestInvoice_ApplyReconciliation_Idempotent(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ClearDomainEvents()

	changed := inv.ApplyReconciliation(dec("8550"), InvoiceStatusPaid)
	assert.True(t, changed)
	assert.Equal(t, 2, inv.Version)
	require.Len(t, inv.GetDomainEvents(), 1)
	evt := inv.GetDomainEvents()[0].(*InvoiceReconciledEvent)
	assert.Equal(t, InvoiceStatusPending, evt.OldStatus)
	assert.Equal(t, InvoiceStatusPaid, evt.NewStatus)

	changed = inv.ApplyReconciliation(dec("8550.00"), InvoiceStatusPaid)
	assert.False(t, changed)
	assert.Equal(t, 2, inv.Version)
	assert.Len(t, inv.GetDomainEvents(), 1)
}

func TestInvoice_Recompose_ReplacesLineItems(t *testing.T) {
	inv := newTestInvoice(t)
	oldItemID := inv.LineItems[0].ID

	terms := companyTerms()
	terms.TenantID, terms.UnitID = inv.TenantID, inv.UnitID
	terms.CommonFee = decPtr("1000")
	newType := InvoiceTypeCombined
	notes := "rebilled"
	change := Recomposition{Type: &newType, Notes: &notes}

	typ, period := inv.Target(change)
	require.Equal(t, InvoiceTypeCombined, typ)
	comp := Compose(terms, nil, typ, period)

	require.NoError(t, inv.Recompose(change, terms, comp))

	assert.Equal(t, InvoiceTypeCombined, inv.Type)
	assert.Equal(t, "rebilled", inv.Notes)
	require.Len(t, inv.LineItems, 2)
	assert.NotEqual(t, oldItemID, inv.LineItems[0].ID)
	assert.True(t, inv.TotalAmount.Equal(dec("9500")))
	assert.Equal(t, 2, inv.Version)
}

func TestInvoice_Recompose_RejectsCancelled(t *testing.T) {
	inv := newTestInvoice(t)
	require.NoError(t, inv.Cancel("duplicate bill"))

	err := inv.Recompose(Recomposition{}, companyTerms(), Composition{})
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
}

func TestInvoice_Cancel(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ApplyReconciliation(dec("100"), InvoiceStatusPartial)

	err := inv.Cancel("")
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	inv.ApplyReconciliation(decimal.Zero, InvoiceStatusPending)
	require.NoError(t, inv.Cancel("tenant moved out"))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	assert.False(t, inv.AcceptsPayments())
	assert.Equal(t, "tenant moved out", inv.Notes)
}

func TestInvoice_OutstandingAmount(t *testing.T) {
	inv := newTestInvoice(t)
	inv.ApplyReconciliation(dec("10000"), InvoiceStatusPaid)
	assert.True(t, inv.OutstandingAmount().IsZero())

	inv.ApplyReconciliation(dec("550"), InvoiceStatusPartial)
	assert.True(t, inv.OutstandingAmount().Equal(dec("8000")))
}
