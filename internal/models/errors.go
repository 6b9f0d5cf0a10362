package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindMissingInput    ErrorKind = "missing_input"
	ErrorKindTransient       ErrorKind = "transient"
	ErrorKindFatal           ErrorKind = "fatal"
	ErrorKindSchemaViolation ErrorKind = "schema_violation"
	ErrorKindInternal        ErrorKind = "internal"
)

// PipelineError carries a stable code and a failure kind so callers can
// decide between retrying, resuming an upstream stage, or aborting the run.
type PipelineError struct {
	Code     string
	Kind     ErrorKind
	Message  string
	Cause    error
	Metadata map[string]any
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Code, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Code, e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

func (e *PipelineError) WithMetadata(key string, value any) *PipelineError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

func newError(code string, kind ErrorKind, message string) *PipelineError {
	return &PipelineError{Code: code, Kind: kind, Message: message}
}

func NewMissingInputError(stage StageName, required StageName) *PipelineError {
	return newError("MISSING_INPUT", ErrorKindMissingInput,
		fmt.Sprintf("stage %s requires artifact from %s", stage, required)).
		WithMetadata("stage", string(stage)).
		WithMetadata("required", string(required))
}

func NewTransientError(code, message string) *PipelineError {
	return newError(code, ErrorKindTransient, message)
}

func NewTimeoutError(code, message string) *PipelineError {
	return newError(code, ErrorKindTransient, message)
}

func NewFatalError(code, message string) *PipelineError {
	return newError(code, ErrorKindFatal, message)
}

func NewSchemaViolationError(code, message string) *PipelineError {
	return newError(code, ErrorKindSchemaViolation, message)
}

func NewInternalError(code, message string) *PipelineError {
	return newError(code, ErrorKindInternal, message)
}

// WrapExternalError classifies an unknown provider error as transient so the
// gateway retry policy applies. Known-fatal conditions should be constructed
// explicitly with NewFatalError.
func WrapExternalError(code string, err error) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	return NewTransientError(code, "external call failed").WithCause(err)
}

func kindOf(err error) (ErrorKind, bool) {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return "", false
}

func IsMissingInput(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorKindMissingInput
}

func IsTransient(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorKindTransient
}

func IsFatal(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorKindFatal
}

func IsSchemaViolation(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == ErrorKindSchemaViolation
}
