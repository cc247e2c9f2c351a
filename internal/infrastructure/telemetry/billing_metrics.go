package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	attrInvoiceType   = attribute.Key("invoice_type")
	attrMethod        = attribute.Key("method")
	attrOutcome       = attribute.Key("outcome")
	attrReceiptAction = attribute.Key("receipt_action")
)

// BillingMetrics records invoice, payment and reconciliation counters
type BillingMetrics struct {
	invoicesComposed   *Counter
	paymentsRecorded   *Counter
	paymentsReviewed   *Counter
	slipUploadFailures *Counter
	receiptChanges     *Counter
	reconcileDuration  *Histogram
}

// NewBillingMetrics registers the billing instruments on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	var errs []error
	counter := func(name, desc string) *Counter {
		c, err := NewCounter(meter, name, desc, "{count}")
		errs = append(errs, err)
		return c
	}
	m := &BillingMetrics{
		invoicesComposed:   counter("billing.invoices.composed", "Invoices composed from contract terms"),
		paymentsRecorded:   counter("billing.payments.recorded", "Payments recorded against invoices"),
		paymentsReviewed:   counter("billing.payments.reviewed", "Payments verified or rejected"),
		slipUploadFailures: counter("billing.slips.upload_failures", "Evidence uploads that failed after the payment was recorded"),
		receiptChanges:     counter("billing.receipts.changes", "Receipts issued, updated or revoked by reconciliation"),
	}
	h, err := NewHistogram(meter, "billing.reconcile.duration", "Time spent reconciling an invoice inside its transaction", "s",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1)
	errs = append(errs, err)
	m.reconcileDuration = h
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// InvoiceComposed counts a composed invoice
func (m *BillingMetrics) InvoiceComposed(ctx context.Context, invoiceType string) {
	m.invoicesComposed.Inc(ctx, attrInvoiceType.String(invoiceType))
}

// PaymentRecorded counts a recorded payment
func (m *BillingMetrics) PaymentRecorded(ctx context.Context, method string) {
	m.paymentsRecorded.Inc(ctx, attrMethod.String(method))
}

// PaymentReviewed counts a verification decision
func (m *BillingMetrics) PaymentReviewed(ctx context.Context, approved bool) {
	outcome := "rejected"
	if approved {
		outcome = "verified"
	}
	m.paymentsReviewed.Inc(ctx, attrOutcome.String(outcome))
}

// SlipUploadFailed counts evidence that could not be stored
func (m *BillingMetrics) SlipUploadFailed(ctx context.Context) {
	m.slipUploadFailures.Inc(ctx)
}

// Reconciled records a reconciliation run and any receipt change it made
func (m *BillingMetrics) Reconciled(ctx context.Context, d time.Duration, receiptAction string) {
	m.reconcileDuration.RecordDuration(ctx, d)
	if receiptAction != "none" {
		m.receiptChanges.Inc(ctx, attrReceiptAction.String(receiptAction))
	}
}
