// Package errors provides categorized errors shared by the services and the
// HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/trading-simulator/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents user-facing validation failures
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing entities
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents invariant violations such as a second
	// active competition
	CategoryConflict ErrorCategory = "conflict"
	// CategoryProvider represents price source failures
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents persistent store failures
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents unexpected internal failures
	CategorySystem ErrorCategory = "system"
)

// CategorizedError carries a category and HTTP status alongside the message
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{Code: e.Code, Message: e.Message}
}

// NewValidationError creates a user-facing validation error
func NewValidationError(code, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       code,
		Message:    message,
	}
}

// NewNotFoundError creates a missing-entity error
func NewNotFoundError(entity, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", entity, id),
	}
}

// NewConflictError creates an invariant-violation error
func NewConflictError(code, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       code,
		Message:    message,
	}
}

// NewProviderError wraps a price source failure
func NewProviderError(source string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("price source %s failed", source),
		Cause:      cause,
	}
}

// NewDatabaseError wraps a persistent store failure
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database operation failed: %s", operation),
		Cause:      cause,
	}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// AsCategorized extracts a CategorizedError from an error chain
func AsCategorized(err error) (*CategorizedError, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
