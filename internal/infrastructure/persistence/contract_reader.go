package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormContractTermsReader reads the contract store's terms table
type GormContractTermsReader struct {
	db *gorm.DB
}

// NewGormContractTermsReader creates a new GormContractTermsReader
func NewGormContractTermsReader(db *gorm.DB) *GormContractTermsReader {
	return &GormContractTermsReader{db: db}
}

// FindActiveTerms returns the latest-starting contract active on the given day, or nil
func (r *GormContractTermsReader) FindActiveTerms(ctx context.Context, projectID, tenantID, unitID uuid.UUID, on time.Time) (*billing.ContractTerms, error) {
	day := datatypes.Date(on)
	var m models.ContractTermsModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND tenant_id = ? AND unit_id = ?", projectID, tenantID, unitID).
		Where("start_date <= ?", day).
		Where("(end_date IS NULL OR end_date >= ?)", day).
		Order("start_date DESC").
		First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// GormMeterReadingReader reads recorded utility usage
type GormMeterReadingReader struct {
	db *gorm.DB
}

// NewGormMeterReadingReader creates a new GormMeterReadingReader
func NewGormMeterReadingReader(db *gorm.DB) *GormMeterReadingReader {
	return &GormMeterReadingReader{db: db}
}

// FindByUnitAndPeriod returns the unit's readings recorded for the period
func (r *GormMeterReadingReader) FindByUnitAndPeriod(ctx context.Context, projectID, unitID uuid.UUID, period billing.BillingPeriod) ([]billing.MeterReading, error) {
	var rows []models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND unit_id = ? AND billing_period = ?", projectID, unitID, period.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	readings := make([]billing.MeterReading, len(rows))
	for i := range rows {
		readings[i] = rows[i].ToDomain()
	}
	return readings, nil
}

var (
	_ billing.ContractTermsReader = (*GormContractTermsReader)(nil)
	_ billing.MeterReadingReader  = (*GormMeterReadingReader)(nil)
)
