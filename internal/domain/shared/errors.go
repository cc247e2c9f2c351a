package shared

import (
	"errors"
	"fmt"
)

// Stable error codes returned to callers
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeInvalidMethod          = "INVALID_METHOD"
	CodeInvalidPeriod          = "INVALID_PERIOD"
	CodeInvalidState           = "INVALID_STATE"
	CodeNotFound               = "NOT_FOUND"
	CodeReceiptExists          = "RECEIPT_EXISTS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicateRequest       = "DUPLICATE_REQUEST"
	CodeCollaboratorFailure    = "COLLABORATOR_FAILURE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so errors.Is works against the sentinels below
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed input with a specific code
func NewValidationError(code, message string) *DomainError {
	if code == "" {
		code = CodeValidation
	}
	return NewDomainError(code, message)
}

// NewNotFoundError creates a not-found error for the given resource
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, resource+" not found")
}

// NewConflictError creates a conflict error with a specific code
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(code, message)
}

// NewCollaboratorError wraps a failure of an external collaborator (storage, stores)
func NewCollaboratorError(message string, err error) *DomainError {
	return &DomainError{
		Code:    CodeCollaboratorFailure,
		Message: message,
		Err:     err,
	}
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput           = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrReceiptExists          = NewDomainError(CodeReceiptExists, "Invoice has a receipt; regress the invoice before deleting its payments")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
)

// ErrorCode extracts the domain error code from err, or "" when err is not a domain error
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err is a not-found domain error
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

// IsConflict reports whether err is one of the conflict codes
func IsConflict(err error) bool {
	switch ErrorCode(err) {
	case CodeReceiptExists, CodeConcurrentModification, CodeDuplicateRequest:
		return true
	}
	return false
}
