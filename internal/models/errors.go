package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrInvalidInput         ErrorKind = "InvalidInput"
	ErrNotFound             ErrorKind = "NotFound"
	ErrConflictingOperation ErrorKind = "ConflictingOperation"
	ErrDataUnavailable      ErrorKind = "DataUnavailable"
	ErrStageExecution       ErrorKind = "StageExecutionError"
	ErrSynthesis            ErrorKind = "SynthesisError"
	ErrFallbackUnavailable  ErrorKind = "FallbackUnavailable"
)

// Error is the classified error returned by every orchestrator component.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// StageError names the analysis stage that crashed.
func StageError(stage string, err error) *Error {
	return &Error{
		Kind:    ErrStageExecution,
		Stage:   stage,
		Message: fmt.Sprintf("analysis stage %q crashed", stage),
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ViewOf converts err to its caller-facing form.
func ViewOf(err error) *ErrorView {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &ErrorView{Kind: e.Kind, Stage: e.Stage, Message: e.Error()}
	}
	return &ErrorView{Kind: ErrStageExecution, Message: err.Error()}
}
