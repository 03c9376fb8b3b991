package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeConfig            = "CONFIG_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodePathNotFound      = "PATH_NOT_FOUND"
	ErrCodeInputResolution   = "INPUT_RESOLUTION"
	ErrCodeExecutorNotFound  = "EXECUTOR_NOT_FOUND"
	ErrCodePhaseExecution    = "PHASE_EXECUTION"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeTimeout           = "TIMEOUT_ERROR"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeNoProvider        = "NO_PROVIDER"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeStore             = "STORE_ERROR"
)

// PipelineError is the structured error type for all engine operations.
type PipelineError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	PhaseID string         `json:"phase_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.PhaseID != "" {
		return fmt.Sprintf("[%s] phase %s: %s", e.Code, e.PhaseID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PipelineError.
func NewError(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// NewErrorf creates a new PipelineError with a formatted message.
func NewErrorf(code, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPhase attaches a phase ID to the error.
func (e *PipelineError) WithPhase(phaseID string) *PipelineError {
	e.PhaseID = phaseID
	return e
}

// WithCause attaches an underlying cause.
func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PipelineError) WithDetails(details map[string]any) *PipelineError {
	e.Details = details
	return e
}

// HasCode reports whether err is (or wraps) a PipelineError with the given code.
func HasCode(err error, code string) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}
