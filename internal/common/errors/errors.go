// Package errors provides standardized error handling for the persona
// generation and aggregation workers.
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
	ErrCodeInvalidPopulation   ErrorCode = "INVALID_POPULATION"
	ErrCodeEmptyAxis           ErrorCode = "EMPTY_AXIS"
	ErrCodePercentageMismatch  ErrorCode = "PERCENTAGE_MISMATCH"
	ErrCodeMissingInputColumn  ErrorCode = "MISSING_INPUT_COLUMN"
	ErrCodePersonaCreateFailed ErrorCode = "PERSONA_CREATE_FAILED"

	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderCallFailed  ErrorCode = "PROVIDER_CALL_FAILED"
	ErrCodeProviderBadReply    ErrorCode = "PROVIDER_BAD_REPLY"

	ErrCodeAggregationFailed ErrorCode = "AGGREGATION_FAILED"
	ErrCodeTaskNotFound      ErrorCode = "TASK_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
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
// 2. Error Constructors
// ==========================

// NewInvalidPopulationError flags a non-positive population on a weighted
// generation request. Not retryable.
func NewInvalidPopulationError(population int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPopulation,
		Message:   "Population must be a positive number",
		Details:   fmt.Sprintf("population: %d", population),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyAxisError flags a category with no subcategories; no combination
// can be formed from it.
func NewEmptyAxisError(axis string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyAxis,
		Message:   "Category has no subcategories",
		Details:   fmt.Sprintf("category: %s", axis),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPercentageMismatchError flags subcategory weights that do not sum to 100.
func NewPercentageMismatchError(axis string, total float64) *StandardError {
	return &StandardError{
		Code:      ErrCodePercentageMismatch,
		Message:   "Subcategory percentages must sum to 100",
		Details:   fmt.Sprintf("category: %s, total: %.2f", axis, total),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingInputColumnError flags a bulk-ingest file lacking a required column.
func NewMissingInputColumnError(column string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingInputColumn,
		Message:   "Required input column missing",
		Details:   fmt.Sprintf("column: %s", column),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersonaCreateFailedError wraps a persistence failure during generation.
func NewPersonaCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersonaCreateFailed,
		Message:   "Persona persistence failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderUnavailableError flags an unknown or unconfigured provider name.
func NewProviderUnavailableError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   "Response provider is not registered",
		Details:   fmt.Sprintf("provider: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderCallFailedError wraps a failed text-generation call.
func NewProviderCallFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderCallFailed,
		Message:   "Response provider call failed",
		Details:   fmt.Sprintf("provider: %s, error: %s", provider, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderBadReplyError flags a provider reply that could not be parsed.
func NewProviderBadReplyError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderBadReply,
		Message:   "Response provider reply is malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAggregationFailedError wraps a task-scoped aggregation failure.
func NewAggregationFailedError(city, stimulus string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAggregationFailed,
		Message:   "Emotion aggregation failed",
		Details:   fmt.Sprintf("city: %s, stimulus: %s, error: %s", city, stimulus, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTaskNotFoundError flags a lookup of a missing task row.
func NewTaskNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTaskNotFound,
		Message:   "Task not found",
		Details:   fmt.Sprintf("taskId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the error code, or "INTERNAL" for foreign errors.
func CodeOf(err error) string {
	if stdErr, ok := err.(*StandardError); ok {
		return string(stdErr.Code)
	}
	return "INTERNAL"
}
