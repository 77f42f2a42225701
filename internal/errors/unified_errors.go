// Package errors provides the unified error model shared by the store adapters,
// the services and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for handling and response mapping.
type ErrorType string

const (
	// Caller errors
	ErrorTypeValidation         ErrorType = "VALIDATION"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypePreconditionFailed ErrorType = "PRECONDITION_FAILED"
	ErrorTypeUnauthorized       ErrorType = "UNAUTHORIZED"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Aggregate errors
	ErrorTypePartialFailure ErrorType = "PARTIAL_FAILURE"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned across layers.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	Operation string `json:"operation,omitempty"`
	Resource  string `json:"resource,omitempty"`
	UserID    string `json:"userId,omitempty"`

	// FailedIDs lists the entity ids affected by a PARTIAL_FAILURE.
	FailedIDs []int `json:"failedIds,omitempty"`

	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a multi-line representation for debug logging.
func (e *UnifiedError) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		builder.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		builder.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	if e.UserID != "" {
		builder.WriteString(fmt.Sprintf("UserID: %s\n", e.UserID))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	builder.WriteString(fmt.Sprintf("Retryable: %t\n", e.Retryable))
	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("Cause: %v\n", e.Cause))
	}
	if e.File != "" && e.Line > 0 {
		builder.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}

	return builder.String()
}

// HTTPStatusCode returns the status an HTTP handler should answer with.
func (e *UnifiedError) HTTPStatusCode() int {
	if e.Code != "" {
		if status := e.Code.HTTPStatusCode(); status != 500 || e.Type == ErrorTypeInternal {
			return status
		}
	}
	switch e.Type {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeUnauthorized:
		return 401
	case ErrorTypeNotFound, ErrorTypePreconditionFailed:
		return 404
	case ErrorTypeTimeout:
		return 504
	case ErrorTypeUnavailable:
		return 503
	case ErrorTypePartialFailure:
		return 207
	default:
		return 500
	}
}

// ============================================================================
// ERROR BUILDER
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError values.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a builder with the given type, code and message.
func NewError(errType ErrorType, code ErrorCode, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Severity: code.Severity(),
			File:     file,
			Line:     line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithOperation names the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource names the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithUserID adds the owning user's partition.
func (b *ErrorBuilder) WithUserID(userID string) *ErrorBuilder {
	b.error.UserID = userID
	return b
}

// WithFailedIDs records the entity ids affected by an aggregate failure.
func (b *ErrorBuilder) WithFailedIDs(ids []int) *ErrorBuilder {
	b.error.FailedIDs = ids
	return b
}

// WithSeverity overrides the severity derived from the code.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithRetryable marks whether the caller may retry.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause attaches the underlying error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// Validation creates a validation error.
func Validation(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// NotFound creates a not found error.
func NotFound(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// PreconditionFailed creates an error for a conditional write whose condition did not hold.
func PreconditionFailed(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypePreconditionFailed, code, message).
		WithSeverity(SeverityLow).
		WithRetryable(false)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnauthorized, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(false)
}

// Internal creates an internal error.
func Internal(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(false)
}

// Timeout creates a timeout error.
func Timeout(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeTimeout, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(true)
}

// Unavailable creates an error for a transient store or dependency fault.
func Unavailable(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnavailable, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(true)
}

// PartialFailure creates an aggregate error for a multi-item operation where
// some items failed and others succeeded.
func PartialFailure(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypePartialFailure, code, message).
		WithSeverity(SeverityMedium).
		WithRetryable(false)
}

// ============================================================================
// CLASSIFICATION
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsNotFound reports whether err means the addressed entity does not exist.
// Precondition failures on existence checks count as not found.
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound) || IsType(err, ErrorTypePreconditionFailed)
}

// IsPreconditionFailed checks if a conditional write was rejected.
func IsPreconditionFailed(err error) bool {
	return IsType(err, ErrorTypePreconditionFailed)
}

// IsUnavailable checks if an error is a transient infrastructure fault.
func IsUnavailable(err error) bool {
	return IsType(err, ErrorTypeUnavailable)
}

// IsPartialFailure checks if an error is an aggregate partial failure.
func IsPartialFailure(err error) bool {
	return IsType(err, ErrorTypePartialFailure)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// KindOf returns the ErrorType of err, or INTERNAL for foreign errors.
func KindOf(err error) ErrorType {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type
	}
	return ErrorTypeInternal
}

// ============================================================================
// WRAPPING
// ============================================================================

// Wrap adds operation context to err while keeping its type and the original chain.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:      existingErr.Type,
			Code:      existingErr.Code,
			Message:   message,
			Details:   existingErr.Message,
			Operation: operation,
			Resource:  existingErr.Resource,
			UserID:    existingErr.UserID,
			FailedIDs: existingErr.FailedIDs,
			Severity:  existingErr.Severity,
			Retryable: existingErr.Retryable,
			Cause:     err,
			File:      existingErr.File,
			Line:      existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      CodeInternalError,
		Message:   message,
		Details:   err.Error(),
		Operation: operation,
		Severity:  SeverityMedium,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}
