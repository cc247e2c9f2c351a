// Package payment implements the payment ledger and the reconciliation that keeps each invoice's
// paid amount, status and receipt consistent with its verified payments.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Mutation changes ledger state while the invoice row is locked.
// It returns the domain events of the aggregates it touched; the invoice's own events are collected automatically.
type Mutation func(ctx context.Context, repos TransactionalRepositories, invoice *billing.Invoice) ([]shared.DomainEvent, error)

// Outcome is the committed state of an invoice after a mutation and its reconciliation
type Outcome struct {
	Invoice *billing.Invoice
	// Receipt is the invoice's receipt after reconciliation, nil unless the invoice is PAID
	Receipt *payment.Receipt
	Result  payment.ReconcileResult
	// Changed reports whether reconciliation altered the paid amount or status
	Changed bool
}

// RepairReport summarizes a batch recompute
type RepairReport struct {
	Checked int
	Changed int
	Failed  map[uuid.UUID]error
}

// ReconciliationService derives invoice collection state from verified payments.
// Every recompute runs inside the transaction of the mutation that triggered it.
type ReconciliationService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// ReconciliationServiceConfig holds the dependencies of ReconciliationService
type ReconciliationServiceConfig struct {
	TxScope        TransactionScope
	EventPublisher shared.EventPublisher
	Metrics        Metrics
	Logger         *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationServiceConfig) *ReconciliationService {
	s := &ReconciliationService{
		txScope:        cfg.TxScope,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Recompute re-derives an invoice's paid amount, status and receipt. Running it twice changes nothing the second time.
func (s *ReconciliationService) Recompute(ctx context.Context, projectID, invoiceID uuid.UUID) (*Outcome, error) {
	return s.Mutate(ctx, projectID, invoiceID, nil)
}

// Mutate locks the invoice, applies mutate, reconciles and commits, all in one transaction.
// Events are published only after the commit succeeds.
func (s *ReconciliationService) Mutate(ctx context.Context, projectID, invoiceID uuid.UUID, mutate Mutation) (*Outcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "mutate",
		telemetry.AttrProjectID, projectID,
		telemetry.AttrInvoiceID, invoiceID,
	)
	defer span.End()

	var (
		out     *Outcome
		events  []shared.DomainEvent
		elapsed time.Duration
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events = nil
		inv, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, projectID, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return shared.NewNotFoundError("Invoice")
		}

		if mutate != nil {
			evts, err := mutate(ctx, repos, inv)
			if err != nil {
				return err
			}
			events = append(events, evts...)
		}

		start := time.Now()
		out, err = s.reconcileLocked(ctx, repos, inv)
		elapsed = time.Since(start)
		if err != nil {
			return err
		}
		events = append(events, inv.GetDomainEvents()...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out.Invoice.ClearDomainEvents()
	s.metrics.Reconciled(ctx, elapsed, out.Result.ReceiptAction.String())
	telemetry.SetAttributes(span,
		telemetry.AttrInvoiceStatus, out.Invoice.Status,
		telemetry.AttrReceiptAction, out.Result.ReceiptAction,
	)
	if out.Changed {
		s.logger.Info("Invoice reconciled",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("status", out.Invoice.Status.String()),
			zap.String("paid_amount", out.Invoice.PaidAmount.String()),
			zap.String("receipt_action", out.Result.ReceiptAction.String()),
		)
	}
	s.publish(ctx, events)
	return out, nil
}

// reconcileLocked must run while the invoice row lock is held
func (s *ReconciliationService) reconcileLocked(ctx context.Context, repos TransactionalRepositories, inv *billing.Invoice) (*Outcome, error) {
	payments, err := repos.PaymentRepo().FindByInvoice(ctx, inv.ProjectID, inv.ID)
	if err != nil {
		return nil, err
	}
	receipt, err := repos.ReceiptRepo().FindByInvoice(ctx, inv.ProjectID, inv.ID)
	if err != nil {
		return nil, err
	}

	result := payment.Reconcile(inv, payments, receipt)
	changed := inv.ApplyReconciliation(result.PaidAmount, result.Status)
	if changed {
		if err := repos.InvoiceRepo().UpdateCollection(ctx, inv); err != nil {
			return nil, err
		}
	}

	switch result.ReceiptAction {
	case payment.ReceiptCreate:
		receipt = payment.NewReceipt(inv.ProjectID, inv.ID, inv.InvoiceNumber, result.ReceiptAmount)
		if err := repos.ReceiptRepo().Save(ctx, receipt); err != nil {
			return nil, err
		}
	case payment.ReceiptUpdate:
		receipt.Amount = result.ReceiptAmount
		receipt.UpdatedAt = time.Now()
		if err := repos.ReceiptRepo().Save(ctx, receipt); err != nil {
			return nil, err
		}
	case payment.ReceiptDelete:
		if err := repos.ReceiptRepo().Delete(ctx, inv.ProjectID, receipt.ID); err != nil {
			return nil, err
		}
		receipt = nil
	}

	return &Outcome{Invoice: inv, Receipt: receipt, Result: result, Changed: changed}, nil
}

// RecomputeAll repairs every invoice of a project, optionally limited to one period.
// Each invoice is reconciled in its own transaction; one failure does not stop the batch.
func (s *ReconciliationService) RecomputeAll(ctx context.Context, projectID uuid.UUID, period *billing.BillingPeriod) (*RepairReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "recompute_all", telemetry.AttrProjectID, projectID)
	defer span.End()

	var ids []uuid.UUID
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		ids, err = repos.InvoiceRepo().FindIDs(ctx, projectID, period)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &RepairReport{Failed: map[uuid.UUID]error{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		out, err := s.Recompute(ctx, projectID, id)
		if err != nil {
			s.logger.Warn("Recompute failed", zap.String("invoice_id", id.String()), zap.Error(err))
			report.Failed[id] = err
			continue
		}
		if out.Changed {
			report.Changed++
		}
	}
	telemetry.SetAttributes(span, "checked", report.Checked, "changed", report.Changed, "failed", len(report.Failed))
	return report, nil
}

func (s *ReconciliationService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish events after commit", zap.Int("count", len(events)), zap.Error(err))
	}
}
