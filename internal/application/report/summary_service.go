// Package report serves the collection summary, cached per project and invalidated by invoice events.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/report"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Cache scopes. ScopeAll holds summaries that span every project; ScopeEpoch is embedded in every key,
// so bumping it drops all cached summaries at once.
const (
	ScopeAll   = "all"
	ScopeEpoch = "epoch"
)

// DefaultCacheTTL bounds how long a cached summary is served without an invalidating event
const DefaultCacheTTL = 5 * time.Minute

// SummaryQuery selects the invoices to summarize. Empty fields do not filter.
type SummaryQuery struct {
	ProjectID   *uuid.UUID
	StartPeriod string
	EndPeriod   string
}

// SummaryCache stores computed summaries. Keys embed a per-scope generation so a Bump invalidates every
// summary of that scope without enumerating keys.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*report.Summary, bool, error)
	Set(ctx context.Context, key string, summary *report.Summary, ttl time.Duration) error
	Generation(ctx context.Context, scope string) (int64, error)
	Bump(ctx context.Context, scope string) error
}

// SummaryService is the anomaly and summary aggregator's entry point
type SummaryService struct {
	source   report.SnapshotSource
	cache    SummaryCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// SummaryServiceConfig holds the dependencies of SummaryService
type SummaryServiceConfig struct {
	Source report.SnapshotSource
	// Cache is optional; without it every call aggregates from the store
	Cache    SummaryCache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewSummaryService creates a new SummaryService
func NewSummaryService(cfg SummaryServiceConfig) *SummaryService {
	s := &SummaryService{
		source:   cfg.Source,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GetSummary returns per-period collection statistics and anomalies.
// When both bounds are given every period between them is reported, including empty ones.
func (s *SummaryService) GetSummary(ctx context.Context, q SummaryQuery) (*report.Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "summary", "get",
		"start_period", q.StartPeriod,
		"end_period", q.EndPeriod,
	)
	defer span.End()

	query := report.SnapshotQuery{ProjectID: q.ProjectID}
	var window []billing.BillingPeriod
	if q.StartPeriod != "" {
		p, err := billing.ParseBillingPeriod(q.StartPeriod)
		if err != nil {
			return nil, err
		}
		query.StartPeriod = &p
	}
	if q.EndPeriod != "" {
		p, err := billing.ParseBillingPeriod(q.EndPeriod)
		if err != nil {
			return nil, err
		}
		query.EndPeriod = &p
	}
	if query.StartPeriod != nil && query.EndPeriod != nil {
		if query.EndPeriod.Before(*query.StartPeriod) {
			return nil, shared.NewValidationError(shared.CodeInvalidPeriod, "end_period must not be before start_period")
		}
		window = report.PeriodRange(*query.StartPeriod, *query.EndPeriod)
	}

	key := s.cacheKey(ctx, q)
	if key != "" {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Summary cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			telemetry.AddEvent(span, "cache_hit")
			return cached, nil
		}
	}

	snapshots, err := s.source.LoadSnapshots(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load invoice snapshots: %w", err)
	}
	summary := report.Aggregate(snapshots, window...)
	telemetry.SetAttributes(span, "invoice_count", summary.Overall.InvoiceCount, "period_count", summary.Overall.PeriodCount)

	if key != "" {
		if err := s.cache.Set(ctx, key, &summary, s.cacheTTL); err != nil {
			s.logger.Warn("Summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &summary, nil
}

// Invalidate drops the cached summaries of a project and of the cross-project scope, or every cached
// summary when projectID is nil. Status changes made outside the ledger publish no invoice event,
// so the overdue schedule calls this after it runs.
func (s *SummaryService) Invalidate(ctx context.Context, projectID *uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	scopes := []string{ScopeEpoch}
	if projectID != nil {
		scopes = []string{projectID.String(), ScopeAll}
	}
	for _, scope := range scopes {
		if err := s.cache.Bump(ctx, scope); err != nil {
			return fmt.Errorf("bump summary generation %s: %w", scope, err)
		}
	}
	s.logger.Info("Summary cache invalidated", zap.Strings("scopes", scopes))
	return nil
}

// cacheKey returns "" when caching is off or a generation cannot be read
func (s *SummaryService) cacheKey(ctx context.Context, q SummaryQuery) string {
	if s.cache == nil {
		return ""
	}
	scope := ScopeAll
	if q.ProjectID != nil {
		scope = q.ProjectID.String()
	}
	gen, err := s.cache.Generation(ctx, scope)
	if err != nil {
		s.logger.Warn("Summary cache generation unavailable", zap.String("scope", scope), zap.Error(err))
		return ""
	}
	epoch, err := s.cache.Generation(ctx, ScopeEpoch)
	if err != nil {
		s.logger.Warn("Summary cache generation unavailable", zap.String("scope", ScopeEpoch), zap.Error(err))
		return ""
	}
	return fmt.Sprintf("summary:%s:%d.%d:%s:%s", scope, gen, epoch, q.StartPeriod, q.EndPeriod)
}
