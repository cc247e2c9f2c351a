package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/payment"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
)

// PaymentHandler handles the payment ledger endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *paymentapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *paymentapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// Record handles POST /billing/invoices/:id/payments.
// The payment is created even when its evidence cannot be stored; the response then carries evidence_error.
func (h *PaymentHandler) Record(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	in := paymentapp.RecordPaymentInput{
		ProjectID:         projectID,
		InvoiceID:         invoiceID,
		Amount:            req.Amount,
		Method:            req.Method,
		TransferReference: req.TransferReference,
		BankName:          req.BankName,
		CheckNumber:       req.CheckNumber,
		PaidAt:            req.PaidAt,
		Notes:             req.Notes,
		IdempotencyKey:    strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader)),
	}
	if len(req.Image) > 0 {
		in.Evidence = &paymentapp.SlipImage{
			Data:        req.Image,
			ContentType: req.ImageContentType,
			Filename:    req.ImageFilename,
		}
		in.Source = slipSource(req.Source)
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.RecordPaymentResponse{
		Payment:   dto.NewPaymentResponse(result.Payment),
		Slip:      dto.NewSlipResponse(result.Slip),
		Duplicate: result.Duplicate,
	}
	if result.EvidenceError != nil {
		resp.EvidenceError = errorInfo(c, result.EvidenceError)
	}

	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// List handles GET /billing/invoices/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPayments(c.Request.Context(), projectID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewPaymentListResponse(payments))
}

// Get handles GET /billing/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}

	p, err := h.paymentService.GetPayment(c.Request.Context(), projectID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewPaymentResponse(p))
}

// Update handles PUT /billing/payments/:id and returns the payment with its reconciled invoice
func (h *PaymentHandler) Update(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}

	var req dto.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	update := payment.Update{
		Amount:            req.Amount,
		TransferReference: req.TransferReference,
		BankName:          req.BankName,
		CheckNumber:       req.CheckNumber,
		PaidAt:            req.PaidAt,
		Notes:             req.Notes,
	}
	if req.Method != nil {
		method, err := payment.ParseMethod(*req.Method)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		update.Method = &method
	}
	if req.Status != nil {
		status := payment.VerificationStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !status.IsValid() {
			h.Error(c, dto.ErrCodeInvalidStatus, "Invalid payment status: "+*req.Status)
			return
		}
		update.Status = &status
	}

	result, err := h.paymentService.UpdatePayment(c.Request.Context(), projectID, paymentID, update)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.UpdatePaymentResponse{
		Payment: dto.NewPaymentResponse(result.Payment),
		Invoice: dto.NewInvoiceResponse(result.Invoice),
	})
}

// Delete handles DELETE /billing/payments/:id. Payments on an invoice with a receipt answer 409 RECEIPT_EXISTS.
func (h *PaymentHandler) Delete(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}

	inv, err := h.paymentService.DeletePayment(c.Request.Context(), projectID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewInvoiceResponse(inv))
}

// Verify handles POST /billing/payments/:id/verify and returns the reconciled invoice
func (h *PaymentHandler) Verify(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}

	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.paymentService.VerifyPayment(c.Request.Context(), projectID, paymentID, *req.Approved)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewInvoiceResponse(inv))
}

// AttachSlip handles POST /billing/payments/:id/slips with a multipart "image" file and optional "source"
func (h *PaymentHandler) AttachSlip(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidImage, "Multipart field \"image\" is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidImage, "Uploaded image could not be read")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.Error(c, dto.ErrCodeInvalidImage, "Uploaded image could not be read")
		return
	}

	slip, err := h.paymentService.AttachSlip(c.Request.Context(), paymentapp.AttachSlipInput{
		ProjectID: projectID,
		PaymentID: paymentID,
		Image: paymentapp.SlipImage{
			Data:        data,
			ContentType: file.Header.Get("Content-Type"),
			Filename:    file.Filename,
		},
		Source: slipSource(c.PostForm("source")),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewSlipResponse(slip))
}

// SlipURL handles GET /billing/payments/:id/slips/:slipId/url
func (h *PaymentHandler) SlipURL(c *gin.Context) {
	projectID, paymentID, ok := h.scoped(c)
	if !ok {
		return
	}
	slipID, ok := h.pathID(c, "slipId")
	if !ok {
		return
	}

	url, expiresAt, err := h.paymentService.SlipURL(c.Request.Context(), projectID, paymentID, slipID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.SlipURLResponse{URL: url, ExpiresAt: expiresAt})
}

// slipSource normalizes a submitted source; staff uploads omit it
func slipSource(raw string) payment.SlipSource {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return payment.SourceManual
	}
	return payment.SlipSource(raw)
}

func errorInfo(c *gin.Context, err error) *dto.ErrorInfo {
	info := &dto.ErrorInfo{
		Code:      shared.CodeCollaboratorFailure,
		Message:   err.Error(),
		RequestID: getRequestID(c),
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		info.Code = domainErr.Code
		info.Message = domainErr.Message
	}
	return info
}
