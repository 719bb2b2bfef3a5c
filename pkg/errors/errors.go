// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling for the medgraph pipeline.
// Every component boundary converts failures into a MedgraphError so the
// orchestrator can decide between degrading and aborting.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies medgraph errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates tool parameters failed schema validation.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeQueryInvalid indicates a generated graph query failed validation.
	CodeQueryInvalid ErrorCode = "QUERY_INVALID"

	// CodeGraphError indicates the graph store rejected or failed a query.
	CodeGraphError ErrorCode = "GRAPH_ERROR"

	// CodeLLMError indicates a model provider call failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates a provider rate limit was hit.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a subject or record was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates the actor/subject pairing is invalid.
	// This is the only code the orchestrator surfaces as a request failure.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// MedgraphError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type MedgraphError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *MedgraphError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *MedgraphError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *MedgraphError) MarshalJSON() ([]byte, error) {
	type Alias MedgraphError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new MedgraphError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *MedgraphError {
	return &MedgraphError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: code != CodeUnauthorized,
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *MedgraphError) WithContext(key string, value interface{}) *MedgraphError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *MedgraphError) WithRecoverable(recoverable bool) *MedgraphError {
	e.Recoverable = recoverable
	return e
}

// AsMedgraphError attempts to convert an error to a MedgraphError.
// Returns the error as MedgraphError if it is one, or wraps it otherwise.
func AsMedgraphError(err error) *MedgraphError {
	if err == nil {
		return nil
	}
	if me, ok := err.(*MedgraphError); ok {
		return me
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the error code of err, or CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if me, ok := err.(*MedgraphError); ok {
		return me.Code
	}
	return CodeInternal
}

// IsUnauthorized reports whether err is an authorization mismatch.
// Authorization failures are the only errors that abort a request.
func IsUnauthorized(err error) bool {
	return CodeOf(err) == CodeUnauthorized
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *MedgraphError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
