package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	ProjectAggregateModel
	InvoiceID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID          uuid.UUID       `gorm:"type:uuid;index"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Method            string          `gorm:"type:varchar(20);not null"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
	TransferReference string          `gorm:"type:varchar(100)"`
	BankName          string          `gorm:"type:varchar(100)"`
	CheckNumber       string          `gorm:"type:varchar(50)"`
	PaidAt            *time.Time
	VerifiedAt        *time.Time
	Notes             string `gorm:"type:text"`
	// Associations
	Slips []PaymentSlipModel `gorm:"foreignKey:PaymentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *payment.Payment {
	p := &payment.Payment{
		ProjectAggregateRoot: m.ToDomainProjectAggregateRoot(),
		InvoiceID:            m.InvoiceID,
		TenantID:             m.TenantID,
		Amount:               m.Amount,
		Method:               payment.Method(m.Method),
		Status:               payment.VerificationStatus(m.Status),
		TransferReference:    m.TransferReference,
		BankName:             m.BankName,
		CheckNumber:          m.CheckNumber,
		PaidAt:               m.PaidAt,
		VerifiedAt:           m.VerifiedAt,
		Notes:                m.Notes,
		Slips:                make([]payment.Slip, len(m.Slips)),
	}
	for i, s := range m.Slips {
		p.Slips[i] = s.ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Payment. Slips are written separately.
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainProjectAggregateRoot(p.ProjectAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.TenantID = p.TenantID
	m.Amount = p.Amount
	m.Method = string(p.Method)
	m.Status = string(p.Status)
	m.TransferReference = p.TransferReference
	m.BankName = p.BankName
	m.CheckNumber = p.CheckNumber
	m.PaidAt = p.PaidAt
	m.VerifiedAt = p.VerifiedAt
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentSlipModel is the persistence model for a payment's evidence slip.
type PaymentSlipModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	ImageKey   string    `gorm:"type:varchar(500);not null"`
	Source     string    `gorm:"type:varchar(20);not null"`
	UploadedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentSlipModel) TableName() string {
	return "payment_slips"
}

// ToDomain converts the persistence model to a domain Slip.
func (m *PaymentSlipModel) ToDomain() payment.Slip {
	return payment.Slip{
		ID:         m.ID,
		PaymentID:  m.PaymentID,
		ImageKey:   m.ImageKey,
		Source:     payment.SlipSource(m.Source),
		UploadedAt: m.UploadedAt,
	}
}

// PaymentSlipModelFromDomain creates a new persistence model from a domain Slip.
func PaymentSlipModelFromDomain(s *payment.Slip) *PaymentSlipModel {
	return &PaymentSlipModel{
		ID:         s.ID,
		PaymentID:  s.PaymentID,
		ImageKey:   s.ImageKey,
		Source:     string(s.Source),
		UploadedAt: s.UploadedAt,
	}
}

// ReceiptModel is the persistence model for a Receipt. invoice_id is unique: one receipt per invoice.
type ReceiptModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	ReceiptNumber string          `gorm:"type:varchar(50);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	IssuedAt      time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt.
func (m *ReceiptModel) ToDomain() *payment.Receipt {
	return &payment.Receipt{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		InvoiceID:     m.InvoiceID,
		ReceiptNumber: m.ReceiptNumber,
		Amount:        m.Amount,
		IssuedAt:      m.IssuedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt.
func ReceiptModelFromDomain(r *payment.Receipt) *ReceiptModel {
	return &ReceiptModel{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		InvoiceID:     r.InvoiceID,
		ReceiptNumber: r.ReceiptNumber,
		Amount:        r.Amount,
		IssuedAt:      r.IssuedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
