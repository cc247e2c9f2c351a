package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements payment.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func orderSlips(db *gorm.DB) *gorm.DB {
	return db.Order("uploaded_at ASC")
}

// FindByID loads a payment with its slips
func (r *GormPaymentRepository) FindByID(ctx context.Context, projectID, id uuid.UUID) (*payment.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Slips", orderSlips).
		Where("project_id = ? AND id = ?", projectID, id).
		First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByInvoice loads every payment on an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, projectID, invoiceID uuid.UUID) ([]payment.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Slips", orderSlips).
		Where("project_id = ? AND invoice_id = ?", projectID, invoiceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]payment.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// Save upserts the payment row. Slips are only written through AddSlip.
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(models.PaymentModelFromDomain(p)).Error
}

// AddSlip persists one slip
func (r *GormPaymentRepository) AddSlip(ctx context.Context, slip *payment.Slip) error {
	return r.db.WithContext(ctx).Create(models.PaymentSlipModelFromDomain(slip)).Error
}

// Delete removes a payment and its slips
func (r *GormPaymentRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("project_id = ? AND id = ?", projectID, id).Delete(&models.PaymentModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewNotFoundError("Payment")
		}
		// ON DELETE CASCADE covers postgres; explicit for stores without enforced foreign keys
		return tx.Where("payment_id = ?", id).Delete(&models.PaymentSlipModel{}).Error
	})
}

// GormReceiptRepository implements payment.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByInvoice returns the invoice's receipt, or nil when it has none
func (r *GormReceiptRepository) FindByInvoice(ctx context.Context, projectID, invoiceID uuid.UUID) (*payment.Receipt, error) {
	var m models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND invoice_id = ?", projectID, invoiceID).
		First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save upserts a receipt; a second receipt for the same invoice violates the unique index
func (r *GormReceiptRepository) Save(ctx context.Context, rc *payment.Receipt) error {
	err := r.db.WithContext(ctx).Save(models.ReceiptModelFromDomain(rc)).Error
	return translateWriteError(err, "Invoice already has a receipt")
}

// Delete removes a receipt
func (r *GormReceiptRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND id = ?", projectID, id).
		Delete(&models.ReceiptModel{}).Error
}

var (
	_ payment.PaymentRepository = (*GormPaymentRepository)(nil)
	_ payment.ReceiptRepository = (*GormReceiptRepository)(nil)
)
