// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, exit codes and error display for drecho commands.
//
// Commands always return errors; main decides how to show them and which
// exit status to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/echomed/drecho/internal/config"
	"github.com/echomed/drecho/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitStorageError = 4
	ExitNotFound     = 7
	ExitInterrupted  = 130
)

var errServicesMissing = errors.New("conversation store is not available")

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command action with a hint for the user.
type CommandError struct {
	Command string
	Action  string
	Hint    string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	return msg
}

// UsageError is a malformed command line.
type UsageError struct {
	Usage   string
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NotFoundError is a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action, hint string, err error) error {
	return &CommandError{Command: command, Action: action, Hint: hint, Err: err}
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample builds a ValidationError with a valid example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(name, usage string) error {
	return &UsageError{Usage: usage, Message: "missing " + name}
}

// ErrUnknownSubcommand reports a subcommand the command does not have.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return &UsageError{Usage: usage, Message: fmt.Sprintf("unknown %s subcommand: %s", command, sub)}
}

// =============================================================================
// EXIT STATUS
// =============================================================================

// GetExitCode maps an error to a process exit status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr    *UsageError
		validErr    *ValidationError
		notFoundErr *NotFoundError
		configErrs  config.ValidateErrors
		keyErr      *storage.KeyError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &usageErr), errors.As(err, &validErr):
		return ExitUsageError
	case errors.As(err, &notFoundErr):
		return ExitNotFound
	case errors.As(err, &configErrs):
		return ExitConfigError
	case errors.As(err, &keyErr), errors.Is(err, storage.ErrUnknownDriver):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}

// hint returns follow-up advice for err, or "".
func hint(err error) string {
	var (
		cmdErr   *CommandError
		usageErr *UsageError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &cmdErr) && cmdErr.Hint != "":
		return cmdErr.Hint
	case errors.As(err, &usageErr) && usageErr.Usage != "":
		return "Usage: " + usageErr.Usage
	case errors.As(err, &validErr) && validErr.Example != "":
		return "Example: " + validErr.Example
	case errors.Is(err, storage.ErrUnknownDriver):
		return "Set storage.driver to file, sqlite or memory"
	}
	return ""
}

// DisplayError writes err to w, styled, with a hint when one applies. In
// JSON mode it writes a JSON error envelope instead.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse("", err)
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), capitalize(err.Error()))
	if h := hint(err); h != "" {
		fmt.Fprintln(w, DimStyle.Render(h))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
