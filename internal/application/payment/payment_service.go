package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL bounds how long a channel delivery key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

// RecordPaymentInput is a payment submission from staff or a tenant-facing channel
type RecordPaymentInput struct {
	ProjectID         uuid.UUID
	InvoiceID         uuid.UUID
	Amount            decimal.Decimal
	Method            string
	TransferReference string
	BankName          string
	CheckNumber       string
	PaidAt            *time.Time
	Notes             string
	// Evidence is optional; it is uploaded after the payment commits
	Evidence *SlipImage
	Source   payment.SlipSource
	// IdempotencyKey deduplicates redelivered submissions when set
	IdempotencyKey string
}

// RecordPaymentResult is the outcome of RecordPayment
type RecordPaymentResult struct {
	Payment *payment.Payment
	Slip    *payment.Slip
	// EvidenceError is set when the payment was recorded but its evidence could not be stored
	EvidenceError error
	// Duplicate is true when the idempotency key matched an earlier submission
	Duplicate bool
}

// AttachSlipInput adds evidence to an existing payment
type AttachSlipInput struct {
	ProjectID uuid.UUID
	PaymentID uuid.UUID
	Image     SlipImage
	Source    payment.SlipSource
}

// UpdatePaymentResult carries the corrected payment and the invoice after reconciliation
type UpdatePaymentResult struct {
	Payment *payment.Payment
	Invoice *billing.Invoice
}

// PaymentService is the payment ledger. Mutations that can change an invoice's verified set go through
// the reconciliation service so the invoice is recomputed in the same transaction.
type PaymentService struct {
	reconciler     *ReconciliationService
	paymentRepo    payment.PaymentRepository
	invoiceRepo    billing.InvoiceRepository
	evidence       EvidenceStore
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	maxSlipBytes   int
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// PaymentServiceConfig holds the dependencies of PaymentService
type PaymentServiceConfig struct {
	Reconciler     *ReconciliationService
	PaymentRepo    payment.PaymentRepository
	InvoiceRepo    billing.InvoiceRepository
	Evidence       EvidenceStore
	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration
	// MaxSlipBytes rejects larger uploads before they reach storage; zero disables the check
	MaxSlipBytes   int
	EventPublisher shared.EventPublisher
	Metrics        Metrics
	Logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	s := &PaymentService{
		reconciler:     cfg.Reconciler,
		paymentRepo:    cfg.PaymentRepo,
		invoiceRepo:    cfg.InvoiceRepo,
		evidence:       cfg.Evidence,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		maxSlipBytes:   cfg.MaxSlipBytes,
		eventPublisher: cfg.EventPublisher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
	if s.idempotencyTTL <= 0 {
		s.idempotencyTTL = DefaultIdempotencyTTL
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// RecordPayment creates a PENDING payment on an invoice.
// The payment commits before any evidence upload; an upload failure is reported in the result's
// EvidenceError and never rolls the payment back.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record",
		telemetry.AttrProjectID, in.ProjectID,
		telemetry.AttrInvoiceID, in.InvoiceID,
	)
	defer span.End()

	method, err := payment.ParseMethod(in.Method)
	if err != nil {
		return nil, err
	}
	if in.Evidence != nil {
		if err := s.checkSlip(*in.Evidence, in.Source); err != nil {
			return nil, err
		}
	}

	paymentID := uuid.New()
	idemKey := ""
	if in.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = fmt.Sprintf("payment:%s:%s", in.ProjectID, in.IdempotencyKey)
		existing, reserved, err := s.idempotency.Reserve(ctx, idemKey, paymentID.String(), s.idempotencyTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, shared.NewCollaboratorError("Idempotency store unavailable", err)
		}
		if !reserved {
			return s.duplicate(ctx, in.ProjectID, existing)
		}
	}

	var recorded *payment.Payment
	_, err = s.reconciler.Mutate(ctx, in.ProjectID, in.InvoiceID,
		func(ctx context.Context, repos TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			if !inv.AcceptsPayments() {
				return nil, errNoCollection(inv)
			}
			p, err := payment.NewPayment(payment.NewPaymentParams{
				ID:                paymentID,
				ProjectID:         in.ProjectID,
				InvoiceID:         inv.ID,
				TenantID:          inv.TenantID,
				Amount:            in.Amount,
				Method:            method,
				TransferReference: in.TransferReference,
				BankName:          in.BankName,
				CheckNumber:       in.CheckNumber,
				PaidAt:            in.PaidAt,
				Notes:             in.Notes,
			})
			if err != nil {
				return nil, err
			}
			if err := repos.PaymentRepo().Save(ctx, p); err != nil {
				return nil, err
			}
			recorded = p
			return drainEvents(&p.BaseAggregateRoot), nil
		})
	if err != nil {
		if idemKey != "" {
			if rerr := s.idempotency.Release(ctx, idemKey); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.String("key", idemKey), zap.Error(rerr))
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.PaymentRecorded(ctx, method.String())
	telemetry.SetAttributes(span, telemetry.AttrPaymentID, recorded.ID, telemetry.AttrPaymentMethod, method)
	s.logger.Info("Payment recorded",
		zap.String("payment_id", recorded.ID.String()),
		zap.String("invoice_id", in.InvoiceID.String()),
		zap.String("amount", recorded.Amount.String()),
		zap.String("method", method.String()),
	)

	result := &RecordPaymentResult{Payment: recorded}
	if in.Evidence != nil {
		slip, err := s.attach(ctx, recorded, *in.Evidence, in.Source)
		if err != nil {
			s.metrics.SlipUploadFailed(ctx)
			telemetry.AddEvent(span, "slip_upload_failed")
			s.logger.Warn("Payment recorded without evidence",
				zap.String("payment_id", recorded.ID.String()),
				zap.Error(err),
			)
			result.EvidenceError = asCollaboratorError("Slip upload failed; attach it again later", err)
		}
		result.Slip = slip
	}
	return result, nil
}

func (s *PaymentService) duplicate(ctx context.Context, projectID uuid.UUID, existing string) (*RecordPaymentResult, error) {
	id, err := uuid.Parse(existing)
	if err == nil {
		p, ferr := s.paymentRepo.FindByID(ctx, projectID, id)
		if ferr != nil {
			return nil, ferr
		}
		if p != nil {
			return &RecordPaymentResult{Payment: p, Duplicate: true}, nil
		}
	}
	return nil, shared.NewConflictError(shared.CodeDuplicateRequest, "An identical payment submission is still being processed")
}

// AttachSlip stores an evidence image and links it to the payment. Verification status is unchanged.
func (s *PaymentService) AttachSlip(ctx context.Context, in AttachSlipInput) (*payment.Slip, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "attach_slip", telemetry.AttrPaymentID, in.PaymentID)
	defer span.End()

	if err := s.checkSlip(in.Image, in.Source); err != nil {
		return nil, err
	}
	p, err := s.findPayment(ctx, in.ProjectID, in.PaymentID)
	if err != nil {
		return nil, err
	}
	slip, err := s.attach(ctx, p, in.Image, in.Source)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asCollaboratorError("Slip upload failed", err)
	}
	return slip, nil
}

func (s *PaymentService) checkSlip(img SlipImage, source payment.SlipSource) error {
	if !source.IsValid() {
		return shared.NewValidationError("INVALID_SOURCE", "Invalid slip source: "+string(source))
	}
	if len(img.Data) == 0 {
		return shared.NewValidationError("", "Slip image is empty")
	}
	if s.maxSlipBytes > 0 && len(img.Data) > s.maxSlipBytes {
		return shared.NewValidationError("", fmt.Sprintf("Slip image exceeds %d bytes", s.maxSlipBytes))
	}
	return nil
}

func (s *PaymentService) attach(ctx context.Context, p *payment.Payment, img SlipImage, source payment.SlipSource) (*payment.Slip, error) {
	if s.evidence == nil {
		return nil, shared.NewCollaboratorError("Evidence storage is not configured", nil)
	}
	key, err := s.evidence.StoreSlip(ctx, p.ProjectID, p.ID, img)
	if err != nil {
		return nil, err
	}
	slip, err := p.AttachSlip(key, source)
	if err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	if err := s.paymentRepo.AddSlip(ctx, slip); err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	s.publish(ctx, drainEvents(&p.BaseAggregateRoot))
	return slip, nil
}

func (s *PaymentService) discard(ctx context.Context, keys ...string) {
	if s.evidence == nil || len(keys) == 0 {
		return
	}
	if err := s.evidence.DeleteSlips(ctx, keys); err != nil {
		s.logger.Warn("Failed to delete slip objects", zap.Strings("keys", keys), zap.Error(err))
	}
}

// VerifyPayment accepts or rejects a pending payment and returns the invoice after reconciliation
func (s *PaymentService) VerifyPayment(ctx context.Context, projectID, paymentID uuid.UUID, approved bool) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "verify",
		telemetry.AttrPaymentID, paymentID,
		"approved", approved,
	)
	defer span.End()

	p, err := s.findPayment(ctx, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	out, err := s.reconciler.Mutate(ctx, projectID, p.InvoiceID,
		func(ctx context.Context, repos TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			locked, err := lockedPayment(ctx, repos, projectID, paymentID)
			if err != nil {
				return nil, err
			}
			if approved && !inv.AcceptsPayments() {
				return nil, errNoCollection(inv)
			}
			if err := locked.Verify(approved); err != nil {
				return nil, err
			}
			if err := repos.PaymentRepo().Save(ctx, locked); err != nil {
				return nil, err
			}
			return drainEvents(&locked.BaseAggregateRoot), nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.PaymentReviewed(ctx, approved)
	s.logger.Info("Payment reviewed",
		zap.String("payment_id", paymentID.String()),
		zap.Bool("approved", approved),
		zap.String("invoice_status", out.Invoice.Status.String()),
	)
	return out.Invoice, nil
}

// errNoCollection rejects any change that would add to a cancelled invoice's verified amount
func errNoCollection(inv *billing.Invoice) error {
	return shared.NewDomainError(shared.CodeInvalidState, "Invoice does not accept payments in status "+inv.Status.String())
}

// UpdatePayment corrects a payment's fields and reconciles its invoice in the same transaction
func (s *PaymentService) UpdatePayment(ctx context.Context, projectID, paymentID uuid.UUID, update payment.Update) (*UpdatePaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "update", telemetry.AttrPaymentID, paymentID)
	defer span.End()

	p, err := s.findPayment(ctx, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	var updated *payment.Payment
	out, err := s.reconciler.Mutate(ctx, projectID, p.InvoiceID,
		func(ctx context.Context, repos TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			locked, err := lockedPayment(ctx, repos, projectID, paymentID)
			if err != nil {
				return nil, err
			}
			if locked.RaisesVerified(update) && !inv.AcceptsPayments() {
				return nil, errNoCollection(inv)
			}
			affectsPaid, err := locked.Apply(update)
			if err != nil {
				return nil, err
			}
			if err := repos.PaymentRepo().Save(ctx, locked); err != nil {
				return nil, err
			}
			telemetry.SetAttributes(span, "affects_paid", affectsPaid)
			updated = locked
			return drainEvents(&locked.BaseAggregateRoot), nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &UpdatePaymentResult{Payment: updated, Invoice: out.Invoice}, nil
}

// DeletePayment removes a payment and its slips, then reconciles the invoice.
// It fails with RECEIPT_EXISTS while the invoice holds a receipt.
func (s *PaymentService) DeletePayment(ctx context.Context, projectID, paymentID uuid.UUID) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete", telemetry.AttrPaymentID, paymentID)
	defer span.End()

	p, err := s.findPayment(ctx, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	var slipKeys []string
	out, err := s.reconciler.Mutate(ctx, projectID, p.InvoiceID,
		func(ctx context.Context, repos TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			receipt, err := repos.ReceiptRepo().FindByInvoice(ctx, projectID, inv.ID)
			if err != nil {
				return nil, err
			}
			if receipt != nil {
				return nil, shared.ErrReceiptExists
			}
			locked, err := lockedPayment(ctx, repos, projectID, paymentID)
			if err != nil {
				return nil, err
			}
			locked.MarkDeleted()
			if err := repos.PaymentRepo().Delete(ctx, projectID, paymentID); err != nil {
				return nil, err
			}
			for _, slip := range locked.Slips {
				slipKeys = append(slipKeys, slip.ImageKey)
			}
			return drainEvents(&locked.BaseAggregateRoot), nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.discard(ctx, slipKeys...)
	s.logger.Info("Payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.Int("slips", len(slipKeys)),
	)
	return out.Invoice, nil
}

// GetPayment returns a payment with its slips
func (s *PaymentService) GetPayment(ctx context.Context, projectID, paymentID uuid.UUID) (*payment.Payment, error) {
	return s.findPayment(ctx, projectID, paymentID)
}

// ListPayments returns an invoice's payments, oldest first
func (s *PaymentService) ListPayments(ctx context.Context, projectID, invoiceID uuid.UUID) ([]payment.Payment, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, projectID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, shared.NewNotFoundError("Invoice")
	}
	return s.paymentRepo.FindByInvoice(ctx, projectID, invoiceID)
}

// SlipURL returns a time-limited URL for one of the payment's slips
func (s *PaymentService) SlipURL(ctx context.Context, projectID, paymentID, slipID uuid.UUID) (string, time.Time, error) {
	p, err := s.findPayment(ctx, projectID, paymentID)
	if err != nil {
		return "", time.Time{}, err
	}
	for _, slip := range p.Slips {
		if slip.ID != slipID {
			continue
		}
		if s.evidence == nil {
			return "", time.Time{}, shared.NewCollaboratorError("Evidence storage is not configured", nil)
		}
		url, expires, err := s.evidence.SlipURL(ctx, slip.ImageKey)
		if err != nil {
			return "", time.Time{}, shared.NewCollaboratorError("Could not sign slip URL", err)
		}
		return url, expires, nil
	}
	return "", time.Time{}, shared.NewNotFoundError("Slip")
}

func (s *PaymentService) findPayment(ctx context.Context, projectID, paymentID uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.NewNotFoundError("Payment")
	}
	return p, nil
}

// lockedPayment re-reads the payment inside the transaction, after the invoice lock is held
func lockedPayment(ctx context.Context, repos TransactionalRepositories, projectID, paymentID uuid.UUID) (*payment.Payment, error) {
	p, err := repos.PaymentRepo().FindByID(ctx, projectID, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.NewNotFoundError("Payment")
	}
	return p, nil
}

func (s *PaymentService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish payment events", zap.Error(err))
	}
}

func drainEvents(root *shared.BaseAggregateRoot) []shared.DomainEvent {
	events := root.GetDomainEvents()
	root.ClearDomainEvents()
	return events
}

func asCollaboratorError(msg string, err error) error {
	if shared.ErrorCode(err) != "" {
		return err
	}
	return shared.NewCollaboratorError(msg, err)
}
