package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypePayment is the aggregate type name used in events
const AggregateTypePayment = "Payment"

// VerificationStatus is the review state of a payment's evidence
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"
	StatusRejected VerificationStatus = "REJECTED"
)

// IsValid checks if the status is valid
func (s VerificationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// String returns the string representation
func (s VerificationStatus) String() string {
	return string(s)
}

// Method is how the money was paid
type Method string

const (
	MethodCash         Method = "CASH"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodCheck        Method = "CHECK"
	MethodPromptPay    Method = "PROMPTPAY"
	MethodCreditCard   Method = "CREDIT_CARD"
)

// IsValid checks if the method is supported
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck, MethodPromptPay, MethodCreditCard:
		return true
	}
	return false
}

// String returns the string representation
func (m Method) String() string {
	return string(m)
}

// ParseMethod normalizes and validates a payment method
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", shared.NewValidationError(shared.CodeInvalidMethod, "Unsupported payment method: "+s)
	}
	return m, nil
}

// SlipSource identifies the channel an evidence slip arrived through
type SlipSource string

const (
	SourceManual      SlipSource = "MANUAL"
	SourceChatChannel SlipSource = "CHAT_CHANNEL"
	SourceMiniApp     SlipSource = "MINI_APP"
)

// IsValid checks if the source is valid
func (s SlipSource) IsValid() bool {
	switch s {
	case SourceManual, SourceChatChannel, SourceMiniApp:
		return true
	}
	return false
}

// Slip is a piece of payment evidence stored in object storage
type Slip struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	ImageKey   string
	Source     SlipSource
	UploadedAt time.Time
}

// Payment is money received against an invoice, pending or after review
type Payment struct {
	shared.ProjectAggregateRoot
	InvoiceID         uuid.UUID
	TenantID          uuid.UUID
	Amount            decimal.Decimal
	Method            Method
	Status            VerificationStatus
	TransferReference string
	BankName          string
	CheckNumber       string
	PaidAt            *time.Time
	VerifiedAt        *time.Time
	Notes             string
	Slips             []Slip
}

// NewPaymentParams groups the inputs for recording a payment
type NewPaymentParams struct {
	ID                uuid.UUID // optional; generated when Nil
	ProjectID         uuid.UUID
	InvoiceID         uuid.UUID
	TenantID          uuid.UUID
	Amount            decimal.Decimal
	Method            Method
	TransferReference string
	BankName          string
	CheckNumber       string
	PaidAt            *time.Time
	Notes             string
}

// NewPayment creates a payment awaiting verification, whatever channel it came from
func NewPayment(p NewPaymentParams) (*Payment, error) {
	if p.ProjectID == uuid.Nil || p.InvoiceID == uuid.Nil {
		return nil, shared.NewValidationError("", "Project and invoice are required")
	}
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	if !p.Method.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidMethod, "Unsupported payment method: "+string(p.Method))
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	pay := &Payment{
		ProjectAggregateRoot: shared.NewProjectAggregateRootWithID(p.ProjectID, id),
		InvoiceID:            p.InvoiceID,
		TenantID:             p.TenantID,
		Amount:               p.Amount,
		Method:               p.Method,
		Status:               StatusPending,
		TransferReference:    p.TransferReference,
		BankName:             p.BankName,
		CheckNumber:          p.CheckNumber,
		PaidAt:               p.PaidAt,
		Notes:                p.Notes,
	}
	pay.AddDomainEvent(NewPaymentRecordedEvent(pay))
	return pay, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError(shared.CodeInvalidAmount, "Payment amount must be positive")
	}
	return nil
}

// AttachSlip appends an evidence slip. Verification state is unaffected, so late evidence on a settled invoice is fine.
func (p *Payment) AttachSlip(imageKey string, source SlipSource) (*Slip, error) {
	if strings.TrimSpace(imageKey) == "" {
		return nil, shared.NewValidationError("", "Slip image key cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("INVALID_SOURCE", "Invalid slip source: "+string(source))
	}
	slip := Slip{
		ID:         uuid.New(),
		PaymentID:  p.ID,
		ImageKey:   imageKey,
		Source:     source,
		UploadedAt: time.Now(),
	}
	p.Slips = append(p.Slips, slip)
	p.Touch()
	p.AddDomainEvent(NewSlipAttachedEvent(p, slip))
	return &slip, nil
}

// Verify reviews a payment. A pending payment can be approved or rejected; a verified payment can still be
// rejected, which withdraws it from the invoice's paid amount.
func (p *Payment) Verify(approved bool) error {
	next := StatusRejected
	if approved {
		next = StatusVerified
	}
	if !p.canMoveTo(next) {
		return shared.NewDomainError(shared.CodeInvalidState, "Payment cannot be reviewed again, current status: "+string(p.Status))
	}
	now := time.Now()
	p.Status = next
	p.VerifiedAt = &now
	p.Touch()
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentVerifiedEvent(p))
	return nil
}

// canMoveTo reports whether the review state machine allows next from the current status.
// REJECTED is final; a verification may be withdrawn back to PENDING or overturned to REJECTED.
func (p *Payment) canMoveTo(next VerificationStatus) bool {
	switch p.Status {
	case StatusPending:
		return next == StatusVerified || next == StatusRejected
	case StatusVerified:
		return next == StatusRejected || next == StatusPending
	}
	return false
}

// RaisesVerified reports whether applying u would add to the amount the payment contributes
// to its invoice: a move into VERIFIED, or a larger amount on a payment that stays VERIFIED.
func (p *Payment) RaisesVerified(u Update) bool {
	status := p.Status
	if u.Status != nil {
		status = *u.Status
	}
	if status != StatusVerified {
		return false
	}
	if !p.IsVerified() {
		return true
	}
	return u.Amount != nil && u.Amount.GreaterThan(p.Amount)
}

// IsVerified reports whether the payment counts toward the invoice's paid amount
func (p *Payment) IsVerified() bool {
	return p.Status == StatusVerified
}

// Update corresponds to a correction of a payment's fields. Nil fields are left unchanged.
type Update struct {
	Amount            *decimal.Decimal
	Method            *Method
	Status            *VerificationStatus
	TransferReference *string
	BankName          *string
	CheckNumber       *string
	PaidAt            *time.Time
	Notes             *string
}

// Apply corrects the payment. It reports whether a field that affects the invoice's paid amount changed.
func (p *Payment) Apply(u Update) (bool, error) {
	if u.Amount != nil {
		if err := validateAmount(*u.Amount); err != nil {
			return false, err
		}
	}
	if u.Method != nil && !u.Method.IsValid() {
		return false, shared.NewValidationError(shared.CodeInvalidMethod, "Unsupported payment method: "+string(*u.Method))
	}
	if u.Status != nil && !u.Status.IsValid() {
		return false, shared.NewValidationError("INVALID_STATUS", "Invalid verification status: "+string(*u.Status))
	}
	if u.Status != nil && *u.Status != p.Status && !p.canMoveTo(*u.Status) {
		return false, shared.NewDomainError(shared.CodeInvalidState,
			"Payment status cannot change from "+string(p.Status)+" to "+string(*u.Status))
	}

	affectsPaid := false
	if u.Amount != nil && !u.Amount.Equal(p.Amount) {
		affectsPaid = p.IsVerified()
		p.Amount = *u.Amount
	}
	if u.Status != nil && *u.Status != p.Status {
		affectsPaid = affectsPaid || p.IsVerified() || *u.Status == StatusVerified
		p.Status = *u.Status
		if p.Status == StatusPending {
			p.VerifiedAt = nil
		} else {
			now := time.Now()
			p.VerifiedAt = &now
		}
	}
	if u.Method != nil {
		p.Method = *u.Method
	}
	if u.TransferReference != nil {
		p.TransferReference = *u.TransferReference
	}
	if u.BankName != nil {
		p.BankName = *u.BankName
	}
	if u.CheckNumber != nil {
		p.CheckNumber = *u.CheckNumber
	}
	if u.PaidAt != nil {
		paidAt := *u.PaidAt
		p.PaidAt = &paidAt
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}

	p.Touch()
	p.IncrementVersion()
	return affectsPaid, nil
}

// MarkDeleted records the deletion event; the repository performs the actual removal
func (p *Payment) MarkDeleted() {
	p.AddDomainEvent(NewPaymentDeletedEvent(p))
}
