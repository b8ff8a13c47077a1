package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeCompletion represents LLM completion/shim errors
	ErrorTypeCompletion ErrorType = "completion"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeEngine represents memory pipeline errors
	ErrorTypeEngine ErrorType = "engine"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Completion Errors

// ErrSchemaValidation is returned when a structured completion reply cannot
// be parsed as JSON or does not satisfy the requested schema. RawOutput
// carries the model's reply for diagnostics.
type ErrSchemaValidation struct {
	*BaseError
	RawOutput string
}

func NewSchemaValidation(reason string, rawOutput string, err error) *ErrSchemaValidation {
	return &ErrSchemaValidation{
		BaseError: NewBaseError(ErrorTypeCompletion, fmt.Sprintf("structured completion validation failed: %s", reason), err),
		RawOutput: rawOutput,
	}
}

// ErrEmptyCompletion is returned when the provider reply carries no choices
var ErrEmptyCompletion = NewBaseError(ErrorTypeCompletion, "completion returned no choices", nil)

// Graph Errors

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Query string
}

func NewGraphQueryFailed(query string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, "query failed", err),
		Query:     query,
	}
}

// Engine Errors

// ErrEngineUnavailable is returned when the shared memory engine handle was
// never initialized (storage or upstream connectivity failed at startup)
var ErrEngineUnavailable = NewBaseError(ErrorTypeEngine, "Memory service not initialized", nil)

// ErrUpstreamFailure is returned when a pipeline call into storage or an
// LLM collaborator fails; gateways catch it at their boundary
type ErrUpstreamFailure struct {
	*BaseError
	Operation string
}

func NewUpstreamFailure(operation string, err error) *ErrUpstreamFailure {
	return &ErrUpstreamFailure{
		BaseError: NewBaseError(ErrorTypeEngine, fmt.Sprintf("%s failed", operation), err),
		Operation: operation,
	}
}

// ErrBatchItemFailed is recorded in a bulk-ingest result slot for the one
// item that failed. It never aborts the remaining batch.
type ErrBatchItemFailed struct {
	*BaseError
	Episode string
}

func NewBatchItemFailed(episode string, err error) *ErrBatchItemFailed {
	return &ErrBatchItemFailed{
		BaseError: NewBaseError(ErrorTypeEngine, fmt.Sprintf("bulk item failed: %s", episode), err),
		Episode:   episode,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Kind returns the error category. Promoted through embedding, so typed
// variants report their base category.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// Helper functions

// IsErrorType checks if an error is of a specific type, walking wrapped errors
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorType }); ok {
			return k.Kind() == errType
		}
		wrapped, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = wrapped.Unwrap()
	}
	return false
}
