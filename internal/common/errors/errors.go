// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Routing error codes. The same codes travel to the workflow engine as
// BPMN error codes.
const (
	ErrCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrCodeParseError      ErrorCode = "PARSE_ERROR"

	ErrCodeCapacityExceeded   ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeReservationTimeout ErrorCode = "RESERVATION_TIMEOUT"

	ErrCodeAssignmentPersistFailure ErrorCode = "ASSIGNMENT_PERSIST_FAILURE"
	ErrCodeDuplicateAssignment      ErrorCode = "DUPLICATE_ASSIGNMENT"

	ErrCodeAgentPoolQueryFailed ErrorCode = "AGENT_POOL_QUERY_FAILED"
	ErrCodeAgentPoolTimeout     ErrorCode = "AGENT_POOL_TIMEOUT"
	ErrCodeAgentIndexNotFound   ErrorCode = "AGENT_INDEX_NOT_FOUND"
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

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewLeadValidationError creates a non-retryable error that rejects the
// whole routing request.
func NewLeadValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationError,
		Message:   "Lead failed structural validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentValidationError creates a non-retryable error for a single
// malformed agent snapshot. Callers exclude the agent and continue.
func NewAgentValidationError(agentID, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationError,
		Message:   "Agent failed structural validation",
		Details:   fmt.Sprintf("agentId: %s, %s", agentID, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError creates a non-retryable error for malformed job variables.
func NewParseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Failed to parse job variables",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapacityExceededError signals a full agent. This is an expected
// routing outcome, not a technical failure.
func NewCapacityExceededError(agentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapacityExceeded,
		Message:   "Agent is at maximum lead capacity",
		Details:   fmt.Sprintf("agentId: %s", agentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable reservation store error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Capacity reservation store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewReservationTimeoutError creates a retryable reservation timeout error.
func NewReservationTimeoutError(agentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReservationTimeout,
		Message:   "Reservation attempt timed out",
		Details:   fmt.Sprintf("agentId: %s", agentID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssignmentPersistFailureError creates a retryable persistence error.
// The reservation has already been released when this surfaces.
func NewAssignmentPersistFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssignmentPersistFailure,
		Message:   "Failed to persist assignment record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateAssignmentError creates a non-retryable duplicate assignment error.
func NewDuplicateAssignmentError(leadID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateAssignment,
		Message:   "Lead already has a committed assignment",
		Details:   fmt.Sprintf("leadId: %s", leadID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentPoolQueryFailedError creates a retryable agent directory error.
func NewAgentPoolQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentPoolQueryFailed,
		Message:   "Agent directory query error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentPoolTimeoutError creates a retryable agent directory timeout error.
func NewAgentPoolTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentPoolTimeout,
		Message:   "Agent directory query timeout",
		Details:   "query exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentIndexNotFoundError creates a non-retryable index not found error.
func NewAgentIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAgentIndexNotFound,
		Message:   "Agent directory index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The
// codes are identical on both sides so process models reference the same
// vocabulary the logs carry.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationError:          "VALIDATION_ERROR",
	ErrCodeParseError:               "PARSE_ERROR",
	ErrCodeCapacityExceeded:         "CAPACITY_EXCEEDED",
	ErrCodeStoreUnavailable:         "STORE_UNAVAILABLE",
	ErrCodeReservationTimeout:       "RESERVATION_TIMEOUT",
	ErrCodeAssignmentPersistFailure: "ASSIGNMENT_PERSIST_FAILURE",
	ErrCodeDuplicateAssignment:      "DUPLICATE_ASSIGNMENT",
	ErrCodeAgentPoolQueryFailed:     "AGENT_POOL_QUERY_FAILED",
	ErrCodeAgentPoolTimeout:         "AGENT_POOL_TIMEOUT",
	ErrCodeAgentIndexNotFound:       "AGENT_INDEX_NOT_FOUND",
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeAssignmentPersistFailure,
		ErrCodeAgentPoolQueryFailed:
		return 3 // Retryable technical errors

	case ErrCodeReservationTimeout,
		ErrCodeAgentPoolTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CAPACITY") || strings.Contains(codeStr, "RESERVATION") || strings.Contains(codeStr, "STORE"):
		return "RESERVATION"
	case strings.Contains(codeStr, "ASSIGNMENT"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "AGENT_POOL") || strings.Contains(codeStr, "AGENT_INDEX"):
		return "DIRECTORY"
	default:
		return "OTHER"
	}
}
