// Package failure defines the typed failures returned by the measurement
// components. Callers branch on the kind with errors.Is against the
// exported sentinels.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies a class of measurement failure.
type Kind string

const (
	KindCalibration           Kind = "calibration_error"
	KindValidation            Kind = "validation_failure"
	KindDegenerateHistogram   Kind = "degenerate_histogram"
	KindInsufficientReference Kind = "insufficient_reference"
	KindEmptyROI              Kind = "empty_roi"
	KindInvalidInput          Kind = "invalid_input"
)

// Error is a measurement failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrCalibration           = &Error{Kind: KindCalibration}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrDegenerateHistogram   = &Error{Kind: KindDegenerateHistogram}
	ErrInsufficientReference = &Error{Kind: KindInsufficientReference}
	ErrEmptyROI              = &Error{Kind: KindEmptyROI}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
)

// New builds an *Error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return string(e.Kind)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the failure kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
