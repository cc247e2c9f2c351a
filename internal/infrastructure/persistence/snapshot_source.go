package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormSnapshotSource implements report.SnapshotSource with a single query over invoices
type GormSnapshotSource struct {
	db *gorm.DB
}

// NewGormSnapshotSource creates a new GormSnapshotSource
func NewGormSnapshotSource(db *gorm.DB) *GormSnapshotSource {
	return &GormSnapshotSource{db: db}
}

type snapshotRow struct {
	ID                   uuid.UUID
	InvoiceNumber        string
	ProjectID            uuid.UUID
	TenantID             uuid.UUID
	UnitID               uuid.UUID
	BillingPeriod        string
	DueDate              time.Time
	TotalAmount          decimal.Decimal
	PaidAmount           decimal.Decimal
	Status               string
	VerifiedPaymentCount int
}

// LoadSnapshots returns every matching invoice with its count of verified payments
func (s *GormSnapshotSource) LoadSnapshots(ctx context.Context, q report.SnapshotQuery) ([]report.InvoiceSnapshot, error) {
	verified := s.db.Table("payments AS p").
		Select("COUNT(*)").
		Where("p.invoice_id = i.id AND p.status = ?", string(payment.StatusVerified))

	query := s.db.WithContext(ctx).
		Table("invoices AS i").
		Select("i.id, i.invoice_number, i.project_id, i.tenant_id, i.unit_id, i.billing_period, i.due_date, "+
			"i.total_amount, i.paid_amount, i.status, (?) AS verified_payment_count", verified)
	if q.ProjectID != nil {
		query = query.Where("i.project_id = ?", *q.ProjectID)
	}
	// YYYY-MM sorts lexically in calendar order
	if q.StartPeriod != nil {
		query = query.Where("i.billing_period >= ?", q.StartPeriod.String())
	}
	if q.EndPeriod != nil {
		query = query.Where("i.billing_period <= ?", q.EndPeriod.String())
	}

	var rows []snapshotRow
	if err := query.Order("i.billing_period ASC, i.invoice_number ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]report.InvoiceSnapshot, 0, len(rows))
	for _, r := range rows {
		period, err := billing.ParseBillingPeriod(r.BillingPeriod)
		if err != nil {
			return nil, err
		}
		out = append(out, report.InvoiceSnapshot{
			InvoiceID:            r.ID,
			InvoiceNumber:        r.InvoiceNumber,
			ProjectID:            r.ProjectID,
			TenantID:             r.TenantID,
			UnitID:               r.UnitID,
			Period:               period,
			DueDate:              r.DueDate,
			TotalAmount:          r.TotalAmount,
			PaidAmount:           r.PaidAmount,
			Status:               billing.InvoiceStatus(r.Status),
			VerifiedPaymentCount: r.VerifiedPaymentCount,
		})
	}
	return out, nil
}

var _ report.SnapshotSource = (*GormSnapshotSource)(nil)
