// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Pillar.
// Codes classify contract violations (bad arguments, unsupported capability)
// so callers can tell them apart from domain failures raised by policies.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies Pillar errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnimplemented indicates an optional skill capability is not provided.
	CodeUnimplemented ErrorCode = "UNIMPLEMENTED"

	// CodeInvalidParameter indicates a skill parameter cannot be turned into a policy.
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// CodeArgumentMismatch indicates batched inputs of disagreeing lengths.
	CodeArgumentMismatch ErrorCode = "ARGUMENT_MISMATCH"

	// CodeExecutionFailed indicates a policy failed while producing an action.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeNotApplicable indicates no parameter satisfies a skill's preconditions.
	CodeNotApplicable ErrorCode = "NOT_APPLICABLE"

	// CodeContextLost indicates the context was canceled mid-operation.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Sentinels for use with errors.Is. Matching is by code only.
var (
	ErrUnimplemented    = &PillarError{Code: CodeUnimplemented, Message: "capability not implemented"}
	ErrInvalidParameter = &PillarError{Code: CodeInvalidParameter, Message: "invalid parameter"}
	ErrArgumentMismatch = &PillarError{Code: CodeArgumentMismatch, Message: "argument count mismatch"}
	ErrExecutionFailed  = &PillarError{Code: CodeExecutionFailed, Message: "execution failed"}
	ErrNotApplicable    = &PillarError{Code: CodeNotApplicable, Message: "skill not applicable"}
	ErrNotFound         = &PillarError{Code: CodeNotFound, Message: "not found"}
	ErrInvalidInput     = &PillarError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrContextLost      = &PillarError{Code: CodeContextLost, Message: "context lost"}
)

// PillarError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type PillarError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *PillarError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *PillarError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PillarError with the same code.
func (e *PillarError) Is(target error) bool {
	t, ok := target.(*PillarError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *PillarError) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Attributes  map[string]string      `json:"attributes,omitempty"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         cause,
		Recoverable: e.Recoverable,
		Context:     e.Context,
		Attributes:  e.Attributes,
	})
}

// New creates a new PillarError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *PillarError {
	return &PillarError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// Newf creates a PillarError without a cause and a formatted message.
func Newf(code ErrorCode, format string, args ...any) *PillarError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *PillarError) WithContext(key string, value interface{}) *PillarError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *PillarError) WithAttribute(key, value string) *PillarError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *PillarError) WithRecoverable(recoverable bool) *PillarError {
	e.Recoverable = recoverable
	return e
}

// AsPillarError attempts to convert an error to a PillarError.
// Returns the error as PillarError if it is one, or wraps it otherwise.
func AsPillarError(err error) *PillarError {
	if err == nil {
		return nil
	}
	var pe *PillarError
	if stderrors.As(err, &pe) {
		return pe
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first PillarError in err's chain, or
// CodeInternal for foreign errors. A nil error has an empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pe *PillarError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}

// HasCode reports whether any PillarError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &PillarError{Code: code})
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *PillarError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
