package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)
	p := f.record(t, inv, "8550")
	_, err := f.svc.VerifyPayment(context.Background(), f.projectID, p.ID, true)
	require.NoError(t, err)
	before := f.invoice(inv)
	receiptBefore := f.receipt(inv)

	out, err := f.reconciler.Recompute(context.Background(), f.projectID, inv.ID)
	require.NoError(t, err)

	assert.False(t, out.Changed)
	assert.Equal(t, payment.ReceiptNone, out.Result.ReceiptAction)
	after := f.invoice(inv)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.PaidAmount.Equal(after.PaidAmount))
	assert.Equal(t, receiptBefore.ID, f.receipt(inv).ID)
}

func TestRecompute_RepairsDriftedInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)
	p := f.record(t, inv, "8550")
	_, err := f.svc.VerifyPayment(context.Background(), f.projectID, p.ID, true)
	require.NoError(t, err)

	// Simulate a row written by an older process that skipped reconciliation
	drifted := f.invoice(inv)
	drifted.PaidAmount = dec("0")
	drifted.Status = billing.InvoiceStatusPending
	require.NoError(t, f.store.InvoiceRepo().Save(context.Background(), drifted))
	require.NoError(t, f.store.ReceiptRepo().Delete(context.Background(), f.projectID, f.receipt(inv).ID))

	out, err := f.reconciler.Recompute(context.Background(), f.projectID, inv.ID)
	require.NoError(t, err)

	assert.True(t, out.Changed)
	assert.Equal(t, billing.InvoiceStatusPaid, f.invoice(inv).Status)
	require.NotNil(t, f.receipt(inv))
	assert.True(t, f.receipt(inv).Amount.Equal(dec("8550")))
}

func TestRecompute_UnknownInvoice(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Recompute(context.Background(), f.projectID, uuid.New())

	assert.True(t, shared.IsNotFound(err))
}

func TestRecompute_OtherProjectIsNotFound(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)

	_, err := f.reconciler.Recompute(context.Background(), uuid.New(), inv.ID)

	assert.True(t, shared.IsNotFound(err))
}

func TestMutate_RollsBackOnReconcileFailure(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)
	p := f.record(t, inv, "8550")
	f.store.failUpdateCollection = errors.New("disk full")
	published := len(f.publisher.Types())

	_, err := f.svc.VerifyPayment(context.Background(), f.projectID, p.ID, true)

	require.Error(t, err)
	stored, _ := f.store.PaymentRepo().FindByID(context.Background(), f.projectID, p.ID)
	assert.Equal(t, payment.StatusPending, stored.Status, "verification must not survive a failed reconciliation")
	assert.Nil(t, f.receipt(inv))
	assert.Len(t, f.publisher.Types(), published, "nothing is published for a rolled back transaction")
}

func TestMutate_PublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)
	p := f.record(t, inv, "8550")

	_, err := f.svc.VerifyPayment(context.Background(), f.projectID, p.ID, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		payment.EventTypePaymentRecorded,
		payment.EventTypePaymentVerified,
		billing.EventTypeInvoiceReconciled,
	}, f.publisher.Types())
}

func TestMutate_ConcurrentVerificationsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	inv := f.seedInvoice(t)
	const n = 8
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = f.record(t, inv, "1000").ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.VerifyPayment(context.Background(), f.projectID, id, true)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := f.invoice(inv)
	assert.True(t, stored.PaidAmount.Equal(dec("8000")))
	assert.Equal(t, billing.InvoiceStatusPartial, stored.Status)
	assert.Nil(t, f.receipt(inv))
}

func TestRecomputeAll(t *testing.T) {
	f := newFixture(t)
	first := f.seedInvoice(t)
	second := f.seedInvoice(t)
	p := f.record(t, first, "8550")
	_, err := f.svc.VerifyPayment(context.Background(), f.projectID, p.ID, true)
	require.NoError(t, err)

	drifted := f.invoice(second)
	drifted.Status = billing.InvoiceStatusPaid
	require.NoError(t, f.store.InvoiceRepo().Save(context.Background(), drifted))

	report, err := f.reconciler.RecomputeAll(context.Background(), f.projectID, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Changed)
	assert.Empty(t, report.Failed)
	assert.Equal(t, billing.InvoiceStatusPending, f.invoice(second).Status)
}
