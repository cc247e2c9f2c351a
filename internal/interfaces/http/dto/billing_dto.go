package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates such as due dates
const DateLayout = "2006-01-02"

// ComposeInvoiceRequest composes a new invoice from the tenant's active terms
type ComposeInvoiceRequest struct {
	TenantID      string `json:"tenant_id" binding:"required,uuid"`
	UnitID        string `json:"unit_id" binding:"required,uuid"`
	Type          string `json:"type" binding:"required,oneof=RENT UTILITY COMBINED"`
	BillingPeriod string `json:"billing_period" binding:"required,billing_period"`
	DueDate       string `json:"due_date" binding:"required,datetime=2006-01-02"`
	Notes         string `json:"notes" binding:"max=1000"`
}

// RecomposeInvoiceRequest edits an invoice; omitted fields keep their value
type RecomposeInvoiceRequest struct {
	Type          *string `json:"type" binding:"omitempty,oneof=RENT UTILITY COMBINED"`
	BillingPeriod *string `json:"billing_period" binding:"omitempty,billing_period"`
	DueDate       *string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes         *string `json:"notes" binding:"omitempty,max=1000"`
}

// CancelInvoiceRequest voids an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListInvoicesQuery filters the invoice list
type ListInvoicesQuery struct {
	ListRequest
	Period   string `form:"period" binding:"omitempty,billing_period"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING PARTIAL PAID OVERDUE CANCELLED"`
	TenantID string `form:"tenant_id" binding:"omitempty,uuid"`
	UnitID   string `form:"unit_id" binding:"omitempty,uuid"`
}

// RecordPaymentRequest records a payment against an invoice.
// Image is an optional base64 evidence image stored after the payment commits.
type RecordPaymentRequest struct {
	Amount            decimal.Decimal `json:"amount"`
	Method            string          `json:"method" binding:"required"`
	TransferReference string          `json:"transfer_reference" binding:"max=100"`
	BankName          string          `json:"bank_name" binding:"max=100"`
	CheckNumber       string          `json:"check_number" binding:"max=50"`
	PaidAt            *time.Time      `json:"paid_at"`
	Notes             string          `json:"notes" binding:"max=1000"`
	Image             []byte          `json:"image"`
	ImageContentType  string          `json:"image_content_type"`
	ImageFilename     string          `json:"image_filename"`
	Source            string          `json:"source"`
}

// UpdatePaymentRequest corrects a payment; omitted fields keep their value
type UpdatePaymentRequest struct {
	Amount            *decimal.Decimal `json:"amount"`
	Method            *string          `json:"method"`
	Status            *string          `json:"status"`
	TransferReference *string          `json:"transfer_reference" binding:"omitempty,max=100"`
	BankName          *string          `json:"bank_name" binding:"omitempty,max=100"`
	CheckNumber       *string          `json:"check_number" binding:"omitempty,max=50"`
	PaidAt            *time.Time       `json:"paid_at"`
	Notes             *string          `json:"notes" binding:"omitempty,max=1000"`
}

// VerifyPaymentRequest accepts or rejects a payment
type VerifyPaymentRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// SummaryQuery selects the invoices of a summary.
// An empty project_id falls back to the scope header; with neither, every project is summarized.
type SummaryQuery struct {
	ProjectID   string `form:"project_id" binding:"omitempty,uuid"`
	StartPeriod string `form:"start_period" binding:"omitempty,billing_period"`
	EndPeriod   string `form:"end_period" binding:"omitempty,billing_period"`
}

// LineItemResponse is one charge on an invoice
type LineItemResponse struct {
	ID          uuid.UUID        `json:"id"`
	Kind        string           `json:"kind"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	Usage       *decimal.Decimal `json:"usage,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
}

// InvoiceResponse is the API view of an invoice
type InvoiceResponse struct {
	ID                    uuid.UUID          `json:"id"`
	ProjectID             uuid.UUID          `json:"project_id"`
	InvoiceNumber         string             `json:"invoice_number"`
	TenantID              uuid.UUID          `json:"tenant_id"`
	UnitID                uuid.UUID          `json:"unit_id"`
	Type                  string             `json:"type"`
	BillingPeriod         string             `json:"billing_period"`
	DueDate               string             `json:"due_date"`
	TenantCategory        string             `json:"tenant_category"`
	WithholdingTaxPercent decimal.Decimal    `json:"withholding_tax_percent"`
	LineItems             []LineItemResponse `json:"line_items"`
	Subtotal              decimal.Decimal    `json:"subtotal"`
	WithholdingTax        decimal.Decimal    `json:"withholding_tax"`
	TotalAmount           decimal.Decimal    `json:"total_amount"`
	PaidAmount            decimal.Decimal    `json:"paid_amount"`
	OutstandingAmount     decimal.Decimal    `json:"outstanding_amount"`
	Status                string             `json:"status"`
	Notes                 string             `json:"notes,omitempty"`
	Version               int                `json:"version"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// NewInvoiceResponse converts a domain invoice
func NewInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, li := range inv.LineItems {
		items[i] = LineItemResponse{
			ID:          li.ID,
			Kind:        string(li.Kind),
			Description: li.Description,
			Amount:      li.Amount,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Usage:       li.Usage,
			Rate:        li.Rate,
		}
	}
	return InvoiceResponse{
		ID:                    inv.ID,
		ProjectID:             inv.ProjectID,
		InvoiceNumber:         inv.InvoiceNumber,
		TenantID:              inv.TenantID,
		UnitID:                inv.UnitID,
		Type:                  string(inv.Type),
		BillingPeriod:         inv.BillingPeriod.String(),
		DueDate:               inv.DueDate.Format(DateLayout),
		TenantCategory:        inv.TenantCategory.String(),
		WithholdingTaxPercent: inv.WithholdingTaxPercent,
		LineItems:             items,
		Subtotal:              inv.Subtotal,
		WithholdingTax:        inv.WithholdingTax,
		TotalAmount:           inv.TotalAmount,
		PaidAmount:            inv.PaidAmount,
		OutstandingAmount:     inv.OutstandingAmount(),
		Status:                inv.Status.String(),
		Notes:                 inv.Notes,
		Version:               inv.Version,
		CreatedAt:             inv.CreatedAt,
		UpdatedAt:             inv.UpdatedAt,
	}
}

// NewInvoiceListResponse converts a page of invoices
func NewInvoiceListResponse(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = NewInvoiceResponse(&invoices[i])
	}
	return out
}

// SlipResponse is the API view of a payment slip. The image is fetched through the slip URL endpoint.
type SlipResponse struct {
	ID         uuid.UUID `json:"id"`
	PaymentID  uuid.UUID `json:"payment_id"`
	Source     string    `json:"source"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewSlipResponse converts a domain slip
func NewSlipResponse(s *payment.Slip) *SlipResponse {
	if s == nil {
		return nil
	}
	return &SlipResponse{
		ID:         s.ID,
		PaymentID:  s.PaymentID,
		Source:     string(s.Source),
		UploadedAt: s.UploadedAt,
	}
}

// PaymentResponse is the API view of a payment
type PaymentResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProjectID         uuid.UUID       `json:"project_id"`
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            string          `json:"method"`
	Status            string          `json:"status"`
	TransferReference string          `json:"transfer_reference,omitempty"`
	BankName          string          `json:"bank_name,omitempty"`
	CheckNumber       string          `json:"check_number,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Slips             []SlipResponse  `json:"slips"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewPaymentResponse converts a domain payment
func NewPaymentResponse(p *payment.Payment) PaymentResponse {
	slips := make([]SlipResponse, len(p.Slips))
	for i := range p.Slips {
		slips[i] = *NewSlipResponse(&p.Slips[i])
	}
	return PaymentResponse{
		ID:                p.ID,
		ProjectID:         p.ProjectID,
		InvoiceID:         p.InvoiceID,
		TenantID:          p.TenantID,
		Amount:            p.Amount,
		Method:            p.Method.String(),
		Status:            p.Status.String(),
		TransferReference: p.TransferReference,
		BankName:          p.BankName,
		CheckNumber:       p.CheckNumber,
		PaidAt:            p.PaidAt,
		VerifiedAt:        p.VerifiedAt,
		Notes:             p.Notes,
		Slips:             slips,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// NewPaymentListResponse converts a list of payments
func NewPaymentListResponse(payments []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = NewPaymentResponse(&payments[i])
	}
	return out
}

// RecordPaymentResponse reports the recorded payment and, separately, the fate of its evidence.
// EvidenceError is set when the payment committed but the slip could not be stored.
type RecordPaymentResponse struct {
	Payment       PaymentResponse `json:"payment"`
	Slip          *SlipResponse   `json:"slip,omitempty"`
	Duplicate     bool            `json:"duplicate"`
	EvidenceError *ErrorInfo      `json:"evidence_error,omitempty"`
}

// UpdatePaymentResponse carries the corrected payment and its reconciled invoice
type UpdatePaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
}

// ReceiptResponse is the API view of a receipt
type ReceiptResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// NewReceiptResponse converts a domain receipt
func NewReceiptResponse(r *payment.Receipt) *ReceiptResponse {
	if r == nil {
		return nil
	}
	return &ReceiptResponse{
		ID:            r.ID,
		InvoiceID:     r.InvoiceID,
		ReceiptNumber: r.ReceiptNumber,
		Amount:        r.Amount,
		IssuedAt:      r.IssuedAt,
	}
}

// ReconcileResponse is the outcome of an explicit recompute
type ReconcileResponse struct {
	Invoice InvoiceResponse  `json:"invoice"`
	Receipt *ReceiptResponse `json:"receipt,omitempty"`
	Changed bool             `json:"changed"`
}

// SlipURLResponse is a time-limited link to a slip image
type SlipURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
