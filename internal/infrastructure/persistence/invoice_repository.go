package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultInvoiceNumberPrefix starts every generated invoice number
const DefaultInvoiceNumberPrefix = "INV"

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db           *gorm.DB
	numberPrefix string
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository. An empty prefix falls back to DefaultInvoiceNumberPrefix.
func NewGormInvoiceRepository(db *gorm.DB, numberPrefix string) *GormInvoiceRepository {
	if numberPrefix == "" {
		numberPrefix = DefaultInvoiceNumberPrefix
	}
	return &GormInvoiceRepository{db: db, numberPrefix: numberPrefix}
}

// FindByID loads an invoice and its line items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, projectID, id uuid.UUID) (*billing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx), projectID, id)
}

// FindByIDForUpdate loads an invoice with SELECT ... FOR UPDATE.
// The lock is held until the surrounding transaction ends, so this must run inside GormTransactionScope.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, projectID, id uuid.UUID) (*billing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), projectID, id)
}

func (r *GormInvoiceRepository) find(ctx context.Context, query *gorm.DB, projectID, id uuid.UUID) (*billing.Invoice, error) {
	var m models.InvoiceModel
	if err := query.Where("project_id = ? AND id = ?", projectID, id).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	// Line items are loaded separately so the row lock stays on the invoice row only
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("sort_order ASC").
		Find(&m.LineItems).Error; err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll returns one page of a project's invoices and the total match count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, projectID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("project_id = ?", projectID)
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.UnitID != nil {
		query = query.Where("unit_id = ?", *filter.UnitID)
	}
	if filter.BillingPeriod != nil {
		query = query.Where("billing_period = ?", filter.BillingPeriod.String())
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.InvoiceModel
	if err := query.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]billing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, total, nil
}

// FindIDs lists invoice IDs of a project, optionally restricted to one period
func (r *GormInvoiceRepository) FindIDs(ctx context.Context, projectID uuid.UUID, period *billing.BillingPeriod) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("project_id = ?", projectID)
	if period != nil {
		query = query.Where("billing_period = ?", period.String())
	}
	var ids []uuid.UUID
	if err := query.Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save upserts the invoice row and replaces its line items
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	m := models.InvoiceModelFromDomain(inv)
	items := m.LineItems
	m.LineItems = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
			return translateWriteError(err, "Invoice number "+inv.InvoiceNumber+" is already taken")
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItemModel{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

// UpdateCollection writes only the columns reconciliation derives
func (r *GormInvoiceRepository) UpdateCollection(ctx context.Context, inv *billing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("project_id = ? AND id = ?", inv.ProjectID, inv.ID).
		Updates(map[string]interface{}{
			"paid_amount": inv.PaidAmount,
			"status":      string(inv.Status),
			"version":     inv.Version,
			"updated_at":  inv.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Invoice")
	}
	return nil
}

// NextInvoiceNumber returns PREFIX-YYYYMM-NNNN, continuing from the highest number issued for the
// project and period. Invoices recomposed into another period keep their number, so the sequence
// follows the number prefix rather than the billing_period column.
// Two concurrent callers can get the same number; the unique index rejects the second Save.
func (r *GormInvoiceRepository) NextInvoiceNumber(ctx context.Context, projectID uuid.UUID, period billing.BillingPeriod) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", r.numberPrefix, period.Start().Format("200601"))

	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("project_id = ? AND invoice_number LIKE ? ESCAPE '\\'", projectID, likePrefix(prefix)).
		Order("LENGTH(invoice_number) DESC, invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", err
	}

	seq := 0
	if len(numbers) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix)); err == nil {
			seq = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// likePrefix escapes LIKE wildcards in a configured prefix and appends the match-all suffix
func likePrefix(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"
}

// Ensure GormInvoiceRepository implements billing.InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
