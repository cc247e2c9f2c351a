package dto

import (
	"net/http"

	"github.com/rentalops/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes come from the shared package unchanged.
const (
	// ErrCodeValidation is the generic validation code, also used for request binding failures
	ErrCodeValidation = shared.CodeValidation
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeMissingProject is used when the project scope header is absent or malformed
	ErrCodeMissingProject = "MISSING_PROJECT"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"
	// ErrCodeRequestTooLarge is used when the request body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Validation codes raised by the billing and payment domains
const (
	ErrCodeInvalidImage  = "INVALID_IMAGE"
	ErrCodeInvalidSource = "INVALID_SOURCE"
	ErrCodeInvalidStatus = "INVALID_STATUS"
	ErrCodeInvalidType   = "INVALID_TYPE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	shared.CodeValidation:    http.StatusBadRequest,
	shared.CodeInvalidAmount: http.StatusBadRequest,
	shared.CodeInvalidMethod: http.StatusBadRequest,
	shared.CodeInvalidPeriod: http.StatusBadRequest,
	ErrCodeInvalidImage:      http.StatusBadRequest,
	ErrCodeInvalidSource:     http.StatusBadRequest,
	ErrCodeInvalidStatus:     http.StatusBadRequest,
	ErrCodeInvalidType:       http.StatusBadRequest,
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeMissingProject:    http.StatusBadRequest,

	shared.CodeNotFound: http.StatusNotFound,

	// Conflicts -> 409
	shared.CodeReceiptExists:          http.StatusConflict,
	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeDuplicateRequest:       http.StatusConflict,

	// State rule violations -> 422 Unprocessable Entity
	shared.CodeInvalidState: http.StatusUnprocessableEntity,

	// Storage or store outage -> 502 Bad Gateway
	shared.CodeCollaboratorFailure: http.StatusBadGateway,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
