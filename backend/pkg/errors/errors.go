package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound marks references to nodes absent from a graph
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInvalidConfiguration marks rejected engine or generator options
	ErrorTypeInvalidConfiguration ErrorType = "invalid_configuration"
	// ErrorTypeEmptyGraph marks operations that need at least one node
	ErrorTypeEmptyGraph ErrorType = "empty_graph"
	// ErrorTypeSource represents graph source (Neo4j) errors
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeInsights represents narrative generation errors
	ErrorTypeInsights ErrorType = "insights"
	// ErrorTypeConfig represents process configuration errors
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

// Graph Errors

// ErrNodeNotFound is returned when a lookup names a node the graph does not hold
type ErrNodeNotFound struct {
	*BaseError
	NodeID int
}

func NewNodeNotFound(nodeID int) *ErrNodeNotFound {
	return &ErrNodeNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("node not found: %d", nodeID), nil),
		NodeID:    nodeID,
	}
}

// ErrEmptyGraph is returned by operations that are undefined without nodes
var ErrEmptyGraph = NewBaseError(ErrorTypeEmptyGraph, "graph has no nodes", nil)

// ErrInvalidConfiguration is returned when an option is out of range
type ErrInvalidConfiguration struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidConfiguration(field, reason string) *ErrInvalidConfiguration {
	return &ErrInvalidConfiguration{
		BaseError: NewBaseError(ErrorTypeInvalidConfiguration, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Source Errors

// ErrSourceConnectionFailed is returned when the Neo4j driver cannot connect
type ErrSourceConnectionFailed struct {
	*BaseError
	URI string
}

func NewSourceConnectionFailed(uri string, err error) *ErrSourceConnectionFailed {
	return &ErrSourceConnectionFailed{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrSourceQueryFailed is returned when a graph source query fails
type ErrSourceQueryFailed struct {
	*BaseError
	Query string
}

func NewSourceQueryFailed(query string, err error) *ErrSourceQueryFailed {
	return &ErrSourceQueryFailed{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// Insights Errors

// ErrInsightsFailed is returned when the narrative endpoint fails or answers empty
type ErrInsightsFailed struct {
	*BaseError
	Model string
}

func NewInsightsFailed(model string, err error) *ErrInsightsFailed {
	return &ErrInsightsFailed{
		BaseError: NewBaseError(ErrorTypeInsights, fmt.Sprintf("narrative generation failed with model %s", model), err),
		Model:     model,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

// typed is satisfied by BaseError and every error embedding it.
type typed interface {
	error
	errorType() ErrorType
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// IsErrorType reports whether any error in err's chain has the given type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if t, ok := err.(typed); ok && t.errorType() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsInvalidConfiguration reports whether err is an InvalidConfiguration error
func IsInvalidConfiguration(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidConfiguration)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Only the external graph source fails transiently; the engine is deterministic.
	return IsErrorType(err, ErrorTypeSource)
}
