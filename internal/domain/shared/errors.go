package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized  = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden     = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// NewValidationError creates a validation error with a caller-facing detail
// message. Validation errors name the exact offending value so users
// reconciling real money know what to fix.
func NewValidationError(format string, args ...interface{}) *DomainError {
	return NewDomainError("VALIDATION_ERROR", fmt.Sprintf(format, args...))
}

// NewConsistencyError creates an error for client-supplied aggregates that
// disagree with server-recomputed values.
func NewConsistencyError(format string, args ...interface{}) *DomainError {
	return NewDomainError("CONSISTENCY_ERROR", fmt.Sprintf(format, args...))
}

// NewStateError creates an error for operations that have nothing to do or
// were already performed.
func NewStateError(format string, args ...interface{}) *DomainError {
	return NewDomainError("INVALID_STATE", fmt.Sprintf(format, args...))
}

// NewExtractionError creates an error for upstream document extraction
// failures. These surface as internal errors, not client faults.
func NewExtractionError(format string, args ...interface{}) *DomainError {
	return NewDomainError("EXTRACTION_FAILED", fmt.Sprintf(format, args...))
}
