package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeAdapter represents graph adapter errors
	ErrorTypeAdapter ErrorType = "adapter"
	// ErrorTypeKB represents knowledge base metadata errors
	ErrorTypeKB ErrorType = "kb"
	// ErrorTypeEmbedding represents embedding service errors
	ErrorTypeEmbedding ErrorType = "embedding"
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

// Adapter Errors

// ErrUnknownGraphType is returned when an adapter type tag is not registered.
// The Tag field carries the offending type tag for diagnostics.
type ErrUnknownGraphType struct {
	*BaseError
	Tag string
}

func NewUnknownGraphType(tag string) *ErrUnknownGraphType {
	return &ErrUnknownGraphType{
		BaseError: NewBaseError(ErrorTypeAdapter, fmt.Sprintf("unknown graph type: %s", tag), nil),
		Tag:       tag,
	}
}

// ErrAdapterMisconfigured is returned when an adapter constructor is given
// options it cannot work with
type ErrAdapterMisconfigured struct {
	*BaseError
	AdapterType string
	Reason      string
}

func NewAdapterMisconfigured(adapterType, reason string) *ErrAdapterMisconfigured {
	return &ErrAdapterMisconfigured{
		BaseError:   NewBaseError(ErrorTypeAdapter, fmt.Sprintf("adapter %s misconfigured: %s", adapterType, reason), nil),
		AdapterType: adapterType,
		Reason:      reason,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
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
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// KB Errors

// ErrKBNotFound is returned when a knowledge base is not found in the metadata store
type ErrKBNotFound struct {
	*BaseError
	KBID string
}

func NewKBNotFound(kbID string) *ErrKBNotFound {
	return &ErrKBNotFound{
		BaseError: NewBaseError(ErrorTypeKB, fmt.Sprintf("knowledge base not found: %s", kbID), nil),
		KBID:      kbID,
	}
}

// Embedding Errors

// ErrEmbeddingFailed is returned when an embedding request fails after retries
type ErrEmbeddingFailed struct {
	*BaseError
	Model    string
	Attempts int
}

func NewEmbeddingFailed(model string, attempts int, err error) *ErrEmbeddingFailed {
	return &ErrEmbeddingFailed{
		BaseError: NewBaseError(ErrorTypeEmbedding, fmt.Sprintf("embedding request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
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

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	// Check wrapped errors
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapped.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}
