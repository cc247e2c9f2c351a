package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Invoice numbers are unique within a project.
type InvoiceModel struct {
	BaseModel
	ProjectID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_invoices_project_number,priority:1"`
	Version               int             `gorm:"not null;default:1"`
	InvoiceNumber         string          `gorm:"type:varchar(40);not null;uniqueIndex:uq_invoices_project_number,priority:2"`
	TenantID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	UnitID                uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type                  string          `gorm:"type:varchar(20);not null"`
	BillingPeriod         string          `gorm:"type:varchar(7);not null;index"`
	DueDate               datatypes.Date  `gorm:"not null"`
	TenantCategory        string          `gorm:"type:varchar(20);not null"`
	WithholdingTaxPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Subtotal              decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	WithholdingTax        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	PaidAmount            decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Status                string          `gorm:"type:varchar(20);not null;index"`
	Notes                 string          `gorm:"type:text"`
	// Associations
	LineItems []InvoiceLineItemModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	period, _ := billing.ParseBillingPeriod(m.BillingPeriod)
	inv := &billing.Invoice{
		ProjectAggregateRoot:  m.projectRoot(),
		InvoiceNumber:         m.InvoiceNumber,
		TenantID:              m.TenantID,
		UnitID:                m.UnitID,
		Type:                  billing.InvoiceType(m.Type),
		BillingPeriod:         period,
		DueDate:               time.Time(m.DueDate),
		TenantCategory:        billing.TenantCategory(m.TenantCategory),
		WithholdingTaxPercent: m.WithholdingTaxPercent,
		Subtotal:              m.Subtotal,
		WithholdingTax:        m.WithholdingTax,
		TotalAmount:           m.TotalAmount,
		PaidAmount:            m.PaidAmount,
		Status:                billing.InvoiceStatus(m.Status),
		Notes:                 m.Notes,
		LineItems:             make([]billing.LineItem, len(m.LineItems)),
	}
	for i, li := range m.LineItems {
		inv.LineItems[i] = li.ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.ProjectID = inv.ProjectID
	m.Version = inv.Version
	m.InvoiceNumber = inv.InvoiceNumber
	m.TenantID = inv.TenantID
	m.UnitID = inv.UnitID
	m.Type = string(inv.Type)
	m.BillingPeriod = inv.BillingPeriod.String()
	m.DueDate = datatypes.Date(inv.DueDate)
	m.TenantCategory = string(inv.TenantCategory)
	m.WithholdingTaxPercent = inv.WithholdingTaxPercent
	m.Subtotal = inv.Subtotal
	m.WithholdingTax = inv.WithholdingTax
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.Status = string(inv.Status)
	m.Notes = inv.Notes
	m.LineItems = make([]InvoiceLineItemModel, len(inv.LineItems))
	for i, li := range inv.LineItems {
		m.LineItems[i] = *InvoiceLineItemModelFromDomain(inv.ID, li)
	}
}

func (m *InvoiceModel) projectRoot() shared.ProjectAggregateRoot {
	return shared.ProjectAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		ProjectID: m.ProjectID,
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// LineItemDetail holds the optional pricing breakdown of a line item
type LineItemDetail struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Usage     *decimal.Decimal `json:"usage,omitempty"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
}

// InvoiceLineItemModel is the persistence model for an invoice line item.
type InvoiceLineItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind        string          `gorm:"type:varchar(20);not null"`
	Description string          `gorm:"type:varchar(200);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Detail      datatypes.JSON
	SortOrder   int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceLineItemModel) TableName() string {
	return "invoice_line_items"
}

// ToDomain converts the persistence model to a domain LineItem.
// A malformed detail column yields a line item without breakdown rather than an error.
func (m *InvoiceLineItemModel) ToDomain() billing.LineItem {
	var d LineItemDetail
	if len(m.Detail) > 0 {
		_ = json.Unmarshal(m.Detail, &d)
	}
	return billing.LineItem{
		ID:          m.ID,
		Kind:        billing.LineItemKind(m.Kind),
		Description: m.Description,
		Amount:      m.Amount,
		Quantity:    d.Quantity,
		UnitPrice:   d.UnitPrice,
		Usage:       d.Usage,
		Rate:        d.Rate,
		SortOrder:   m.SortOrder,
	}
}

// InvoiceLineItemModelFromDomain creates a line item model owned by the given invoice
func InvoiceLineItemModelFromDomain(invoiceID uuid.UUID, li billing.LineItem) *InvoiceLineItemModel {
	m := &InvoiceLineItemModel{
		ID:          li.ID,
		InvoiceID:   invoiceID,
		Kind:        string(li.Kind),
		Description: li.Description,
		Amount:      li.Amount,
		SortOrder:   li.SortOrder,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	d := LineItemDetail{Quantity: li.Quantity, UnitPrice: li.UnitPrice, Usage: li.Usage, Rate: li.Rate}
	if d != (LineItemDetail{}) {
		if raw, err := json.Marshal(d); err == nil {
			m.Detail = datatypes.JSON(raw)
		}
	}
	return m
}

// ContractTermsModel maps the contract store's commercial terms. Billing only reads this table.
type ContractTermsModel struct {
	BaseModel
	ProjectID             uuid.UUID        `gorm:"type:uuid;not null;index"`
	TenantID              uuid.UUID        `gorm:"type:uuid;not null;index:idx_contract_terms_tenant_unit,priority:1"`
	UnitID                uuid.UUID        `gorm:"type:uuid;not null;index:idx_contract_terms_tenant_unit,priority:2"`
	BaseRent              decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	CommonFee             *decimal.Decimal `gorm:"type:decimal(18,2)"`
	DiscountPercent       decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountAmount        decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	WithholdingTaxPercent decimal.Decimal  `gorm:"type:decimal(5,2);not null;default:0"`
	TenantCategory        string           `gorm:"type:varchar(20);not null"`
	StartDate             datatypes.Date   `gorm:"not null"`
	EndDate               *datatypes.Date
}

// TableName returns the table name for GORM
func (ContractTermsModel) TableName() string {
	return "contract_terms"
}

// ToDomain converts the persistence model to domain ContractTerms.
func (m *ContractTermsModel) ToDomain() *billing.ContractTerms {
	terms := &billing.ContractTerms{
		ProjectID:             m.ProjectID,
		TenantID:              m.TenantID,
		UnitID:                m.UnitID,
		BaseRent:              m.BaseRent,
		CommonFee:             m.CommonFee,
		DiscountPercent:       m.DiscountPercent,
		DiscountAmount:        m.DiscountAmount,
		WithholdingTaxPercent: m.WithholdingTaxPercent,
		Category:              billing.TenantCategory(m.TenantCategory),
		StartDate:             time.Time(m.StartDate),
	}
	if m.EndDate != nil {
		end := time.Time(*m.EndDate)
		terms.EndDate = &end
	}
	return terms
}

// MeterReadingModel maps a recorded utility reading. Billing only reads this table.
type MeterReadingModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProjectID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	UnitID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_meter_readings_unit_period,priority:1"`
	BillingPeriod   string          `gorm:"type:varchar(7);not null;index:idx_meter_readings_unit_period,priority:2"`
	Type            string          `gorm:"type:varchar(20);not null"`
	PreviousReading decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CurrentReading  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Usage           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Rate            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MeterReadingModel) TableName() string {
	return "meter_readings"
}

// ToDomain converts the persistence model to a domain MeterReading.
func (m *MeterReadingModel) ToDomain() billing.MeterReading {
	period, _ := billing.ParseBillingPeriod(m.BillingPeriod)
	return billing.MeterReading{
		ID:        m.ID,
		UnitID:    m.UnitID,
		Type:      billing.UtilityType(m.Type),
		Period:    period,
		Previous:  m.PreviousReading,
		Current:   m.CurrentReading,
		Usage:     m.Usage,
		Rate:      m.Rate,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}
