package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetRequestID(t *testing.T) {
	c, _ := newTestContext()
	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
	assert.Equal(t, "header-id", getRequestID(c))

	c.Set(middleware.RequestIDKey, "ctx-id")
	assert.Equal(t, "ctx-id", getRequestID(c))
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.NewValidationError(shared.CodeInvalidAmount, "bad amount"), http.StatusBadRequest, shared.CodeInvalidAmount},
		{"not found", shared.NewNotFoundError("Invoice"), http.StatusNotFound, shared.CodeNotFound},
		{"receipt exists", shared.ErrReceiptExists, http.StatusConflict, shared.CodeReceiptExists},
		{"wrapped conflict", fmt.Errorf("save: %w", shared.ErrConcurrentModification), http.StatusConflict, shared.CodeConcurrentModification},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, shared.CodeInvalidState},
		{"collaborator", shared.NewCollaboratorError("bucket down", errors.New("timeout")), http.StatusBadGateway, shared.CodeCollaboratorFailure},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			errInfo := decodeError(t, w)
			assert.Equal(t, tt.code, errInfo.Code)
			assert.Equal(t, "req-1", errInfo.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_HidesInternalMessage(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).HandleError(c, errors.New("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
}

func TestBaseHandler_BindError_MalformedJSON(t *testing.T) {
	c, w := newTestContext()
	(&BaseHandler{}).BindError(c, errors.New("unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeError(t, w).Code)
}
