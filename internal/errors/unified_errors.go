// Package errors provides the broker's typed errors and classification helpers.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Sentinel errors for server lifecycle conditions
var (
	ErrServerNotRunning = stderrors.New("analysis server is not running")
	ErrServerStopped    = stderrors.New("analysis server stopped")
	ErrAlreadyRunning   = stderrors.New("analysis server already running")
)

// ServerError is a response the analysis server answered with Success=false
type ServerError struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error for %s", e.Command)
	}
	return fmt.Sprintf("server error for %s: %s", e.Command, e.Message)
}

// ValidationError represents configuration or parameter validation errors
type ValidationError struct {
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for parameter '%s': %s", e.Parameter, e.Message)
}

// ProcessError represents analysis server process errors
type ProcessError struct {
	Command string `json:"command"`
	Cause   error  `json:"cause,omitempty"`
	Type    string `json:"type"` // "start", "stop", "communication"
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process error (%s): %s - %v", e.Type, e.Command, e.Cause)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// Error constructors

// NewServerError creates an error for a failed server response
func NewServerError(command, message string) *ServerError {
	return &ServerError{
		Command: command,
		Message: message,
	}
}

// NewValidationError creates a new validation error for the specified parameter
func NewValidationError(parameter, message string) *ValidationError {
	return &ValidationError{
		Parameter: parameter,
		Message:   message,
	}
}

// NewProcessError creates a new process error for server lifecycle operations
func NewProcessError(command, errorType string, cause error) *ProcessError {
	return &ProcessError{
		Command: command,
		Type:    errorType,
		Cause:   cause,
	}
}

// Error classification functions

// IsServerError checks if the error came back from the analysis server itself
func IsServerError(err error) bool {
	var serverErr *ServerError
	return stderrors.As(err, &serverErr)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return stderrors.As(err, &valErr)
}

// IsProcessError checks if the error is a process-related error
func IsProcessError(err error) bool {
	if err == nil {
		return false
	}

	var procErr *ProcessError
	if stderrors.As(err, &procErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "executable") ||
		strings.Contains(errMsg, "no such file")
}

// IsCancellationError checks if the error is a cancellation error
func IsCancellationError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, context.Canceled) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "canceled") ||
		strings.Contains(errMsg, "cancelled")
}

// IsTeardownError reports whether a request failed because the connection went away
func IsTeardownError(err error) bool {
	return stderrors.Is(err, ErrServerStopped) || stderrors.Is(err, ErrServerNotRunning)
}

// Error wrapping utilities

// WrapWithContext wraps an error with operation context
func WrapWithContext(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// GetErrorCategory returns a category string for error classification
func GetErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsCancellationError(err):
		return "cancellation"
	case IsTeardownError(err):
		return "teardown"
	case IsServerError(err):
		return "server"
	case IsValidationError(err):
		return "validation"
	case IsProcessError(err):
		return "process"
	default:
		return "general"
	}
}
