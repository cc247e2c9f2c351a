package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentsPath(invoiceID uuid.UUID) string {
	return "/api/v1/billing/invoices/" + invoiceID.String() + "/payments"
}

func paymentPath(paymentID uuid.UUID, suffix string) string {
	return "/api/v1/billing/payments/" + paymentID.String() + suffix
}

func TestPaymentHandler_FullPaymentLifecycle(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()

	// Record with evidence: the payment starts PENDING and the invoice is untouched
	w := s.do(http.MethodPost, paymentsPath(inv.ID), map[string]any{
		"amount":             "8550",
		"method":             "promptpay",
		"image":              pngImage(t),
		"image_content_type": "image/png",
		"source":             "mini_app",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var recorded dto.RecordPaymentResponse
	decodeData(t, w, &recorded)
	assert.Equal(t, "PENDING", recorded.Payment.Status)
	assert.Equal(t, "PROMPTPAY", recorded.Payment.Method)
	require.NotNil(t, recorded.Slip)
	assert.Equal(t, "MINI_APP", recorded.Slip.Source)
	assert.Nil(t, recorded.EvidenceError)
	paymentID := recorded.Payment.ID

	w = s.do(http.MethodGet, "/api/v1/billing/invoices/"+inv.ID.String(), nil)
	var pending dto.InvoiceResponse
	decodeData(t, w, &pending)
	assert.Equal(t, "PENDING", pending.Status)
	assert.True(t, pending.PaidAmount.IsZero())

	// Verify returns the reconciled invoice
	w = s.do(http.MethodPost, paymentPath(paymentID, "/verify"), map[string]any{"approved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid dto.InvoiceResponse
	decodeData(t, w, &paid)
	assert.Equal(t, "PAID", paid.Status)
	assert.True(t, decimal.NewFromInt(8550).Equal(paid.PaidAmount))
	assert.True(t, paid.OutstandingAmount.IsZero())

	// Reconciling again changes nothing and reports the receipt
	w = s.do(http.MethodPost, "/api/v1/billing/invoices/"+inv.ID.String()+"/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again dto.ReconcileResponse
	decodeData(t, w, &again)
	assert.False(t, again.Changed)
	require.NotNil(t, again.Receipt)
	assert.True(t, decimal.NewFromInt(8550).Equal(again.Receipt.Amount))

	// A receipted invoice protects its payments
	w = s.do(http.MethodDelete, paymentPath(paymentID, ""), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RECEIPT_EXISTS", decodeError(t, w).Code)

	// Rejecting the payment regresses the invoice and revokes the receipt
	w = s.do(http.MethodPost, paymentPath(paymentID, "/verify"), map[string]any{"approved": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var regressed dto.InvoiceResponse
	decodeData(t, w, &regressed)
	assert.Equal(t, "PENDING", regressed.Status)
	assert.True(t, regressed.PaidAmount.IsZero())

	w = s.do(http.MethodDelete, paymentPath(paymentID, ""), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, paymentPath(paymentID, ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandler_Record_EvidenceFailureKeepsPayment(t *testing.T) {
	s := newTestServer(t, withObjectStore(unavailableObjects{}))
	inv := s.composeRent()

	w := s.do(http.MethodPost, paymentsPath(inv.ID), map[string]any{
		"amount": "8550",
		"method": "BANK_TRANSFER",
		"image":  pngImage(t),
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var recorded dto.RecordPaymentResponse
	decodeData(t, w, &recorded)
	assert.Nil(t, recorded.Slip)
	require.NotNil(t, recorded.EvidenceError)
	assert.Equal(t, "COLLABORATOR_FAILURE", recorded.EvidenceError.Code)

	w = s.do(http.MethodGet, paymentsPath(inv.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []dto.PaymentResponse
	decodeData(t, w, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, recorded.Payment.ID, listed[0].ID)
	assert.Empty(t, listed[0].Slips)
}

func TestPaymentHandler_Record_UndecodableEvidence(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()

	w := s.do(http.MethodPost, paymentsPath(inv.ID), map[string]any{
		"amount": "100",
		"method": "CASH",
		"image":  []byte("not an image"),
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var recorded dto.RecordPaymentResponse
	decodeData(t, w, &recorded)
	require.NotNil(t, recorded.EvidenceError)
	assert.Equal(t, dto.ErrCodeInvalidImage, recorded.EvidenceError.Code)
	assert.Equal(t, "PENDING", recorded.Payment.Status)
}

func TestPaymentHandler_Record_Validation(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"zero amount", map[string]any{"amount": "0", "method": "CASH"}, "INVALID_AMOUNT"},
		{"negative amount", map[string]any{"amount": "-5", "method": "CASH"}, "INVALID_AMOUNT"},
		{"unknown method", map[string]any{"amount": "10", "method": "BARTER"}, "INVALID_METHOD"},
		{"missing method", map[string]any{"amount": "10"}, dto.ErrCodeValidation},
		{"unknown source", map[string]any{"amount": "10", "method": "CASH", "image": pngImage(t), "source": "FAX"}, "INVALID_SOURCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, paymentsPath(inv.ID), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}

	t.Run("unknown invoice", func(t *testing.T) {
		w := s.do(http.MethodPost, paymentsPath(uuid.New()), map[string]any{"amount": "10", "method": "CASH"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPaymentHandler_Record_IdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()
	body := map[string]any{"amount": "1000", "method": "PROMPTPAY"}

	first := s.do(http.MethodPost, paymentsPath(inv.ID), body, middleware.IdempotencyKeyHeader, "chat-msg-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var a dto.RecordPaymentResponse
	decodeData(t, first, &a)

	second := s.do(http.MethodPost, paymentsPath(inv.ID), body, middleware.IdempotencyKeyHeader, "chat-msg-1")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	var b dto.RecordPaymentResponse
	decodeData(t, second, &b)
	assert.True(t, b.Duplicate)
	assert.Equal(t, a.Payment.ID, b.Payment.ID)

	w := s.do(http.MethodGet, paymentsPath(inv.ID), nil)
	var listed []dto.PaymentResponse
	decodeData(t, w, &listed)
	assert.Len(t, listed, 1)
}

func TestPaymentHandler_PartialThenUpdate(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()
	p := s.recordPayment(inv.ID, "5000")

	w := s.do(http.MethodPost, paymentPath(p.ID, "/verify"), map[string]any{"approved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var partial dto.InvoiceResponse
	decodeData(t, w, &partial)
	assert.Equal(t, "PARTIAL", partial.Status)
	assert.True(t, decimal.NewFromInt(3550).Equal(partial.OutstandingAmount))

	w = s.do(http.MethodPut, paymentPath(p.ID, ""), map[string]any{"amount": "8550", "notes": "corrected from bank statement"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated dto.UpdatePaymentResponse
	decodeData(t, w, &updated)
	assert.True(t, decimal.NewFromInt(8550).Equal(updated.Payment.Amount))
	assert.Equal(t, "corrected from bank statement", updated.Payment.Notes)
	assert.Equal(t, "PAID", updated.Invoice.Status)

	t.Run("invalid status", func(t *testing.T) {
		w := s.do(http.MethodPut, paymentPath(p.ID, ""), map[string]any{"status": "LOST"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidStatus, decodeError(t, w).Code)
	})

	t.Run("invalid method", func(t *testing.T) {
		w := s.do(http.MethodPut, paymentPath(p.ID, ""), map[string]any{"method": "BARTER"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_METHOD", decodeError(t, w).Code)
	})
}

func TestPaymentHandler_OverpaymentAcrossTwoPayments(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()

	for _, amount := range []string{"8550", "8550"} {
		p := s.recordPayment(inv.ID, amount)
		w := s.do(http.MethodPost, paymentPath(p.ID, "/verify"), map[string]any{"approved": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := s.do(http.MethodGet, "/api/v1/billing/invoices/"+inv.ID.String(), nil)
	var got dto.InvoiceResponse
	decodeData(t, w, &got)
	assert.Equal(t, "PAID", got.Status)
	assert.True(t, decimal.NewFromInt(17100).Equal(got.PaidAmount))
}

func TestPaymentHandler_Verify_RequiresDecision(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()
	p := s.recordPayment(inv.ID, "100")

	w := s.do(http.MethodPost, paymentPath(p.ID, "/verify"), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errInfo := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, errInfo.Code)
	require.Len(t, errInfo.Details, 1)
	assert.Equal(t, "approved", errInfo.Details[0].Field)
}

func TestPaymentHandler_AttachSlipAndURL(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()
	p := s.recordPayment(inv.ID, "8550")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "slip.png")
	require.NoError(t, err)
	_, err = part.Write(pngImage(t))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("source", "CHAT_CHANNEL"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, paymentPath(p.ID, "/slips"), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ProjectIDHeader, s.projectID.String())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var slip dto.SlipResponse
	decodeData(t, w, &slip)
	assert.Equal(t, "CHAT_CHANNEL", slip.Source)
	assert.Equal(t, p.ID, slip.PaymentID)

	// Attaching evidence does not verify the payment
	w = s.do(http.MethodGet, paymentPath(p.ID, ""), nil)
	var got dto.PaymentResponse
	decodeData(t, w, &got)
	assert.Equal(t, "PENDING", got.Status)
	require.Len(t, got.Slips, 1)

	w = s.do(http.MethodGet, paymentPath(p.ID, "/slips/"+slip.ID.String()+"/url"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var link dto.SlipURLResponse
	decodeData(t, w, &link)
	assert.True(t, strings.HasPrefix(link.URL, "memory://slips/"), link.URL)
	assert.False(t, link.ExpiresAt.IsZero())

	w = s.do(http.MethodGet, paymentPath(p.ID, "/slips/"+uuid.NewString()+"/url"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentHandler_AttachSlip_MissingImage(t *testing.T) {
	s := newTestServer(t)
	inv := s.composeRent()
	p := s.recordPayment(inv.ID, "100")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("source", "MANUAL"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, paymentPath(p.ID, "/slips"), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ProjectIDHeader, s.projectID.String())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidImage, decodeError(t, w).Code)
}
