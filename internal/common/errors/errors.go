// Package errors provides standardized error handling for the notification engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeResolutionMiss       ErrorCode = "RESOLUTION_MISS"
	ErrCodeMalformedDepartment  ErrorCode = "MALFORMED_DEPARTMENT"
	ErrCodeMatrixRowMissing     ErrorCode = "MATRIX_ROW_MISSING"
	ErrCodeClaimConflict        ErrorCode = "CLAIM_CONFLICT"
	ErrCodeClaimFailed          ErrorCode = "CLAIM_FAILED"
	ErrCodeClaimReleaseFailed   ErrorCode = "CLAIM_RELEASE_FAILED"
	ErrCodeTransportFailed      ErrorCode = "TRANSPORT_FAILED"
	ErrCodeTransportUnconfigued ErrorCode = "TRANSPORT_UNCONFIGURED"
	ErrCodeNotificationInsert   ErrorCode = "NOTIFICATION_INSERT_FAILED"
	ErrCodeDirectoryQueryFailed ErrorCode = "DIRECTORY_QUERY_FAILED"
	ErrCodeEntityQueryFailed    ErrorCode = "ENTITY_QUERY_FAILED"
	ErrCodeSweepAborted         ErrorCode = "SWEEP_ABORTED"
	ErrCodeTemplateNotFound     ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeRegistryInvalid      ErrorCode = "REGISTRY_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsCode reports whether err is a StandardError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewResolutionMissError marks a role that produced no deliverable identity. Non-fatal.
func NewResolutionMissError(role, rawValue string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolutionMiss,
		Message:   "No deliverable identity resolved for role",
		Details:   fmt.Sprintf("role: %s, value: %s", role, rawValue),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedDepartmentError marks a department field that could not be decoded.
func NewMalformedDepartmentError(raw string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedDepartment,
		Message:   "Department field could not be decoded",
		Details:   fmt.Sprintf("raw: %q", raw),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMatrixRowMissingError marks a (entity type, event) pair without a matrix row.
func NewMatrixRowMissingError(entityType, event string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMatrixRowMissing,
		Message:   "No recipient matrix row for entity/event pair",
		Details:   fmt.Sprintf("entityType: %s, event: %s", entityType, event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClaimConflictError marks a delivery already claimed by an earlier run.
func NewClaimConflictError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeClaimConflict,
		Message:   "Delivery already claimed",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClaimFailedError creates a retryable persistence error on claim insert.
func NewClaimFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClaimFailed,
		Message:   "Delivery log claim insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewClaimReleaseFailedError creates a retryable persistence error on claim delete.
func NewClaimReleaseFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClaimReleaseFailed,
		Message:   "Delivery log claim release failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailedError creates a retryable email transport error.
func NewTransportFailedError(to string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   "Email transport send failed",
		Details:   fmt.Sprintf("to: %s, error: %s", to, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportUnconfiguredError marks an attempted send with no transport configured.
// This is a valid degraded state, not a failure of the run.
func NewTransportUnconfiguredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportUnconfigued,
		Message:   "Email transport is not configured",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationInsertError creates a retryable in-app notification insert error.
func NewNotificationInsertError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationInsert,
		Message:   "In-app notification insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDirectoryQueryFailedError creates a retryable directory store error.
func NewDirectoryQueryFailedError(tenantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDirectoryQueryFailed,
		Message:   "Directory store query failed",
		Details:   fmt.Sprintf("tenantId: %s, error: %s", tenantID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityQueryFailedError creates a retryable entity store error.
func NewEntityQueryFailedError(tenantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityQueryFailed,
		Message:   "Entity store query failed",
		Details:   fmt.Sprintf("tenantId: %s, error: %s", tenantID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSweepAbortedError marks a programming error at the top of a sweep.
func NewSweepAbortedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSweepAborted,
		Message:   "Reminder sweep aborted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template lookup error.
func NewTemplateNotFoundError(entityType, event, role string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "No email template registered",
		Details:   fmt.Sprintf("entityType: %s, event: %s, role: %s", entityType, event, role),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryInvalidError creates a non-retryable template registry validation error.
func NewRegistryInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryInvalid,
		Message:   "Template registry failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
