// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/pillar/pkg/errors"
)

// CLIError wraps PillarError with a hint for the user.
type CLIError struct {
	*errors.PillarError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(pe *errors.PillarError, hint string) *CLIError {
	return &CLIError{PillarError: pe, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.PillarError == nil {
		return "unknown error"
	}
	msg := e.PillarError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error {
	if e.PillarError == nil {
		return nil
	}
	return e.PillarError
}

// NewConfigError wraps a configuration load failure.
func NewConfigError(err error) *CLIError {
	var pe *errors.PillarError
	if !stderrors.As(err, &pe) {
		pe = errors.New(errors.CodeInvalidInput, "load configuration", err)
	}
	return NewCLIError(pe, "check --config, --set and PILLAR_* variables")
}

// NewInvalidArgumentError creates an error for invalid arguments.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	return NewCLIError(
		errors.New(errors.CodeInvalidInput, reason, nil).WithContext("argument", arg),
		"run 'pillar help' for usage",
	)
}

// hintFor suggests a next step for well-known failures.
func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeNotFound:
		return "run 'pillar skills' to list registered skills"
	case errors.CodeNotApplicable:
		return "no parameter satisfies the precondition in the current world state"
	case errors.CodeExecutionFailed:
		return "raise executive.max_attempts to retry failed episodes"
	case errors.CodeContextLost:
		return "the run was interrupted"
	}
	return ""
}

// PrintError writes err to w, as a JSON object when asJSON is set.
func PrintError(w io.Writer, err error, asJSON bool) {
	code := errors.CodeOf(err)
	var hint string
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		hint = cliErr.Hint
	} else {
		hint = hintFor(code)
	}
	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{"code": string(code), "message": err.Error(), "hint": hint},
		})
		fmt.Fprintln(w, string(payload))
		return
	}
	if cliErr != nil && cliErr.PillarError != nil {
		err = cliErr.PillarError
	}
	fmt.Fprintf(w, "Error [%s]: %v\n", code, err)
	if hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", hint)
	}
}
