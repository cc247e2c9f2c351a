package report

import (
	"context"
	"fmt"

	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SummaryInvalidationHandler drops cached summaries whenever an invoice's totals, paid amount or status move
type SummaryInvalidationHandler struct {
	cache  SummaryCache
	logger *zap.Logger
}

// NewSummaryInvalidationHandler creates a new handler bound to the summary cache
func NewSummaryInvalidationHandler(cache SummaryCache, logger *zap.Logger) *SummaryInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryInvalidationHandler{cache: cache, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SummaryInvalidationHandler) EventTypes() []string {
	return []string{
		billing.EventTypeInvoiceComposed,
		billing.EventTypeInvoiceRecomposed,
		billing.EventTypeInvoiceReconciled,
	}
}

// Handle bumps the generation of the event's project and of the cross-project scope
func (h *SummaryInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	for _, scope := range []string{event.ProjectID().String(), ScopeAll} {
		if err := h.cache.Bump(ctx, scope); err != nil {
			return fmt.Errorf("bump summary generation %s: %w", scope, err)
		}
	}
	h.logger.Debug("Summary cache invalidated",
		zap.String("event_type", event.EventType()),
		zap.String("project_id", event.ProjectID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*SummaryInvalidationHandler)(nil)
