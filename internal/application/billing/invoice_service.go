// Package billing orchestrates invoice composition on top of the contract and meter collaborators.
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// numberAttempts bounds retries when a concurrent compose takes the same invoice number
const numberAttempts = 3

// ComposeInput identifies the tenant, unit and period to bill
type ComposeInput struct {
	ProjectID     uuid.UUID
	TenantID      uuid.UUID
	UnitID        uuid.UUID
	Type          billing.InvoiceType
	BillingPeriod billing.BillingPeriod
	DueDate       time.Time
	Notes         string
}

// ListQuery filters and pages invoices of one project
type ListQuery struct {
	shared.Filter
	TenantID      *uuid.UUID
	UnitID        *uuid.UUID
	BillingPeriod *billing.BillingPeriod
	Status        *billing.InvoiceStatus
}

// Metrics receives invoice counters
type Metrics interface {
	InvoiceComposed(ctx context.Context, invoiceType string)
}

type noopMetrics struct{}

func (noopMetrics) InvoiceComposed(context.Context, string) {}

// InvoiceService composes, recomposes and cancels invoices
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	terms          billing.ContractTermsReader
	meters         billing.MeterReadingReader
	reconciler     *paymentapp.ReconciliationService
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// InvoiceServiceConfig holds the dependencies of InvoiceService
type InvoiceServiceConfig struct {
	InvoiceRepo    billing.InvoiceRepository
	Terms          billing.ContractTermsReader
	Meters         billing.MeterReadingReader
	Reconciler     *paymentapp.ReconciliationService
	EventPublisher shared.EventPublisher
	Metrics        Metrics
	Logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	s := &InvoiceService{
		invoiceRepo:    cfg.InvoiceRepo,
		terms:          cfg.Terms,
		meters:         cfg.Meters,
		reconciler:     cfg.Reconciler,
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

// Compose builds and stores a PENDING invoice from the tenant's active terms and the unit's readings for the period
func (s *InvoiceService) Compose(ctx context.Context, in ComposeInput) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "compose",
		telemetry.AttrProjectID, in.ProjectID,
		telemetry.AttrPeriod, in.BillingPeriod,
	)
	defer span.End()

	if !in.Type.IsValid() {
		return nil, shared.NewValidationError("INVALID_TYPE", "Invalid invoice type: "+string(in.Type))
	}
	if in.BillingPeriod.IsZero() {
		return nil, shared.NewValidationError(shared.CodeInvalidPeriod, "Billing period is required")
	}

	terms, err := s.activeTerms(ctx, in.ProjectID, in.TenantID, in.UnitID, in.BillingPeriod)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	readings, err := s.readings(ctx, in.ProjectID, in.UnitID, in.Type, in.BillingPeriod)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	comp := billing.Compose(*terms, readings, in.Type, in.BillingPeriod)

	var inv *billing.Invoice
	for attempt := 1; ; attempt++ {
		number, err := s.invoiceRepo.NextInvoiceNumber(ctx, in.ProjectID, in.BillingPeriod)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		inv, err = billing.NewInvoice(billing.NewInvoiceParams{
			ProjectID:     in.ProjectID,
			InvoiceNumber: number,
			Terms:         *terms,
			Type:          in.Type,
			BillingPeriod: in.BillingPeriod,
			DueDate:       in.DueDate,
			Notes:         in.Notes,
			Composition:   comp,
		})
		if err != nil {
			return nil, err
		}
		err = s.invoiceRepo.Save(ctx, inv)
		if err == nil {
			break
		}
		if !shared.IsConflict(err) || attempt == numberAttempts {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.logger.Debug("Invoice number taken, retrying", zap.String("invoice_number", number))
	}

	events := inv.GetDomainEvents()
	inv.ClearDomainEvents()
	s.publish(ctx, events)
	s.metrics.InvoiceComposed(ctx, string(in.Type))
	telemetry.SetAttributes(span,
		telemetry.AttrInvoiceID, inv.ID,
		telemetry.AttrInvoiceNumber, inv.InvoiceNumber,
	)
	s.logger.Info("Invoice composed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("period", in.BillingPeriod.String()),
		zap.String("total", inv.TotalAmount.String()),
		zap.Int("line_items", len(inv.LineItems)),
	)
	return inv, nil
}

// Recompose applies the edits and rebuilds every line item from current terms and readings.
// The invoice is reconciled in the same transaction because its total may have moved.
func (s *InvoiceService) Recompose(ctx context.Context, projectID, invoiceID uuid.UUID, r billing.Recomposition) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "recompose", telemetry.AttrInvoiceID, invoiceID)
	defer span.End()

	out, err := s.reconciler.Mutate(ctx, projectID, invoiceID,
		func(ctx context.Context, repos paymentapp.TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			invoiceType, period := inv.Target(r)
			if !invoiceType.IsValid() {
				return nil, shared.NewValidationError("INVALID_TYPE", "Invalid invoice type: "+string(invoiceType))
			}
			if period.IsZero() {
				return nil, shared.NewValidationError(shared.CodeInvalidPeriod, "Billing period is required")
			}
			terms, err := s.activeTerms(ctx, projectID, inv.TenantID, inv.UnitID, period)
			if err != nil {
				return nil, err
			}
			readings, err := s.readings(ctx, projectID, inv.UnitID, invoiceType, period)
			if err != nil {
				return nil, err
			}
			if err := inv.Recompose(r, *terms, billing.Compose(*terms, readings, invoiceType, period)); err != nil {
				return nil, err
			}
			if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
				return nil, err
			}
			events := inv.GetDomainEvents()
			inv.ClearDomainEvents()
			return events, nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice recomposed",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("total", out.Invoice.TotalAmount.String()),
		zap.String("status", out.Invoice.Status.String()),
	)
	return out.Invoice, nil
}

// Cancel voids an invoice that has not collected anything
func (s *InvoiceService) Cancel(ctx context.Context, projectID, invoiceID uuid.UUID, reason string) (*billing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel", telemetry.AttrInvoiceID, invoiceID)
	defer span.End()

	out, err := s.reconciler.Mutate(ctx, projectID, invoiceID,
		func(ctx context.Context, repos paymentapp.TransactionalRepositories, inv *billing.Invoice) ([]shared.DomainEvent, error) {
			if err := inv.Cancel(reason); err != nil {
				return nil, err
			}
			if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
				return nil, err
			}
			events := inv.GetDomainEvents()
			inv.ClearDomainEvents()
			return events, nil
		})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("Invoice cancelled", zap.String("invoice_id", invoiceID.String()))
	return out.Invoice, nil
}

// GetByID returns an invoice with its line items
func (s *InvoiceService) GetByID(ctx context.Context, projectID, invoiceID uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, projectID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, shared.NewNotFoundError("Invoice")
	}
	return inv, nil
}

// List returns one page of a project's invoices
func (s *InvoiceService) List(ctx context.Context, projectID uuid.UUID, q ListQuery) (*shared.Paginated[billing.Invoice], error) {
	filter := q.Filter
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if filter.OrderBy == "" {
		filter.OrderBy = shared.DefaultFilter().OrderBy
		filter.OrderDir = shared.DefaultFilter().OrderDir
	}

	items, total, err := s.invoiceRepo.FindAll(ctx, projectID, billing.InvoiceFilter{
		Filter:        filter,
		TenantID:      q.TenantID,
		UnitID:        q.UnitID,
		BillingPeriod: q.BillingPeriod,
		Status:        q.Status,
	})
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// activeTerms resolves the contract covering the period, looked up at its first day and then its last day
// so contracts that start mid-month are still billed.
func (s *InvoiceService) activeTerms(ctx context.Context, projectID, tenantID, unitID uuid.UUID, period billing.BillingPeriod) (*billing.ContractTerms, error) {
	if s.terms == nil {
		return nil, shared.NewCollaboratorError("Contract store is not configured", nil)
	}
	lastDay := period.Next().Start().AddDate(0, 0, -1)
	for _, on := range []time.Time{period.Start(), lastDay} {
		terms, err := s.terms.FindActiveTerms(ctx, projectID, tenantID, unitID, on)
		if err != nil {
			return nil, shared.NewCollaboratorError("Contract lookup failed", err)
		}
		if terms != nil {
			return terms, nil
		}
	}
	return nil, shared.NewNotFoundError("Active contract")
}

// readings returns nothing for rent-only invoices; a missing reading leaves a gap rather than failing
func (s *InvoiceService) readings(ctx context.Context, projectID, unitID uuid.UUID, t billing.InvoiceType, period billing.BillingPeriod) ([]billing.MeterReading, error) {
	if !t.IncludesUtility() || s.meters == nil {
		return nil, nil
	}
	readings, err := s.meters.FindByUnitAndPeriod(ctx, projectID, unitID, period)
	if err != nil {
		return nil, shared.NewCollaboratorError("Meter reading lookup failed", err)
	}
	return readings, nil
}

func (s *InvoiceService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish invoice events", zap.Error(err))
	}
}
