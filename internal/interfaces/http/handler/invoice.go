package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/rentalops/backend/internal/application/billing"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
)

// InvoiceHandler handles invoice composition and reconciliation endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
	reconciler     *paymentapp.ReconciliationService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService, reconciler *paymentapp.ReconciliationService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		reconciler:     reconciler,
	}
}

// Compose handles POST /billing/invoices
func (h *InvoiceHandler) Compose(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	var req dto.ComposeInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	period, err := billing.ParseBillingPeriod(req.BillingPeriod)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	inv, err := h.invoiceService.Compose(c.Request.Context(), billingapp.ComposeInput{
		ProjectID:     projectID,
		TenantID:      uuid.MustParse(req.TenantID),
		UnitID:        uuid.MustParse(req.UnitID),
		Type:          billing.InvoiceType(req.Type),
		BillingPeriod: period,
		DueDate:       dueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewInvoiceResponse(inv))
}

// List handles GET /billing/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	projectID, ok := h.projectID(c)
	if !ok {
		return
	}

	query := dto.ListInvoicesQuery{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	q := billingapp.ListQuery{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
		},
	}
	if query.Period != "" {
		period, err := billing.ParseBillingPeriod(query.Period)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		q.BillingPeriod = &period
	}
	if query.Status != "" {
		status := billing.InvoiceStatus(query.Status)
		q.Status = &status
	}
	if query.TenantID != "" {
		id := uuid.MustParse(query.TenantID)
		q.TenantID = &id
	}
	if query.UnitID != "" {
		id := uuid.MustParse(query.UnitID)
		q.UnitID = &id
	}

	page, err := h.invoiceService.List(c.Request.Context(), projectID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.NewInvoiceListResponse(page.Items), page.Total, page.Page, page.PageSize)
}

// Get handles GET /billing/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetByID(c.Request.Context(), projectID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewInvoiceResponse(inv))
}

// Recompose handles PUT /billing/invoices/:id. Line items are rebuilt and the invoice is reconciled.
func (h *InvoiceHandler) Recompose(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	var req dto.RecomposeInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	var r billing.Recomposition
	if req.Type != nil {
		t := billing.InvoiceType(*req.Type)
		r.Type = &t
	}
	if req.BillingPeriod != nil {
		period, err := billing.ParseBillingPeriod(*req.BillingPeriod)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		r.BillingPeriod = &period
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		r.DueDate = &due
	}
	r.Notes = req.Notes

	inv, err := h.invoiceService.Recompose(c.Request.Context(), projectID, invoiceID, r)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewInvoiceResponse(inv))
}

// Cancel handles POST /billing/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	var req dto.CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	inv, err := h.invoiceService.Cancel(c.Request.Context(), projectID, invoiceID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewInvoiceResponse(inv))
}

// Reconcile handles POST /billing/invoices/:id/reconcile, recomputing status, paid amount and receipt
func (h *InvoiceHandler) Reconcile(c *gin.Context) {
	projectID, invoiceID, ok := h.scoped(c)
	if !ok {
		return
	}

	outcome, err := h.reconciler.Recompute(c.Request.Context(), projectID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ReconcileResponse{
		Invoice: dto.NewInvoiceResponse(outcome.Invoice),
		Receipt: dto.NewReceiptResponse(outcome.Receipt),
		Changed: outcome.Changed,
	})
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		return time.Time{}, shared.NewValidationError("", "Date must be formatted as YYYY-MM-DD")
	}
	return t, nil
}
