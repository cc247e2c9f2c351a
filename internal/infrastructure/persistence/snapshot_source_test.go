package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSnapshotSource_CountsVerifiedPaymentsOnly(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	invoices := NewGormInvoiceRepository(db, "")
	payments := NewGormPaymentRepository(db)
	projectID := uuid.New()

	paid := newTestInvoice(t, projectID, "INV-202403-0001", "2024-03")
	paid.ApplyReconciliation(dec("10000"), billing.InvoiceStatusPaid)
	unpaid := newTestInvoice(t, projectID, "INV-202403-0002", "2024-03")
	april := newTestInvoice(t, projectID, "INV-202404-0001", "2024-04")
	for _, inv := range []*billing.Invoice{paid, unpaid, april} {
		require.NoError(t, invoices.Save(ctx, inv))
	}

	for _, amount := range []string{"5000", "5000"} {
		p := newTestPayment(t, projectID, paid.ID, amount)
		require.NoError(t, p.Verify(true))
		require.NoError(t, payments.Save(ctx, p))
	}
	pending := newTestPayment(t, projectID, unpaid.ID, "8550")
	require.NoError(t, payments.Save(ctx, pending))
	rejected := newTestPayment(t, projectID, unpaid.ID, "8550")
	require.NoError(t, rejected.Verify(false))
	require.NoError(t, payments.Save(ctx, rejected))

	march := billing.MustParseBillingPeriod("2024-03")
	snaps, err := NewGormSnapshotSource(db).LoadSnapshots(ctx, report.SnapshotQuery{
		ProjectID:   &projectID,
		StartPeriod: &march,
		EndPeriod:   &march,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byNumber := map[string]report.InvoiceSnapshot{}
	for _, s := range snaps {
		byNumber[s.InvoiceNumber] = s
	}
	assert.Equal(t, 2, byNumber["INV-202403-0001"].VerifiedPaymentCount)
	assert.True(t, byNumber["INV-202403-0001"].PaidAmount.Equal(dec("10000")))
	assert.Equal(t, billing.InvoiceStatusPaid, byNumber["INV-202403-0001"].Status)
	assert.Equal(t, 0, byNumber["INV-202403-0002"].VerifiedPaymentCount)
	assert.Equal(t, "2024-03", byNumber["INV-202403-0002"].Period.String())

	sum := report.Aggregate(snaps)
	require.Len(t, sum.Periods, 1)
	require.Len(t, sum.Periods[0].PotentialDuplicates, 1)
	assert.True(t, sum.Periods[0].PotentialDuplicates[0].OverpaidBy.Equal(dec("1450")))
	require.Len(t, sum.Periods[0].MissingPayments, 1)
	assert.Equal(t, unpaid.ID, sum.Periods[0].MissingPayments[0].InvoiceID)
}

func TestGormSnapshotSource_AllProjects(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	invoices := NewGormInvoiceRepository(db, "")
	require.NoError(t, invoices.Save(ctx, newTestInvoice(t, uuid.New(), "A-1", "2024-01")))
	require.NoError(t, invoices.Save(ctx, newTestInvoice(t, uuid.New(), "B-1", "2024-02")))

	snaps, err := NewGormSnapshotSource(db).LoadSnapshots(ctx, report.SnapshotQuery{})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "2024-01", snaps[0].Period.String())
	assert.Equal(t, "2024-02", snaps[1].Period.String())
}
