package dataset

import (
	"errors"
	"fmt"
)

// Kind is the stable tag carried by every engine error.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindParse       Kind = "parse_error"
	KindValidation  Kind = "validation_error"
	KindComputation Kind = "computation_error"
	KindInternal    Kind = "internal_error"
)

// opError is the shared payload of the typed errors below.
type opError struct {
	Msg string
	Err error
}

func (e *opError) message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// NotFoundError indicates a referenced file, sheet or column does not exist.
type NotFoundError struct{ opError }

func (e *NotFoundError) Error() string { return "not found: " + e.message() }
func (e *NotFoundError) Unwrap() error { return e.Err }
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// ParseError indicates the input is not well-formed tabular text.
type ParseError struct {
	opError
	// Line is the 1-based input line, 0 when unknown.
	Line int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.message())
	}
	return "parse error: " + e.message()
}
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Kind() Kind { return KindParse }

// ValidationError indicates operation parameters are inconsistent with the data.
type ValidationError struct{ opError }

func (e *ValidationError) Error() string { return "validation failed: " + e.message() }
func (e *ValidationError) Unwrap() error { return e.Err }
func (e *ValidationError) Kind() Kind { return KindValidation }

// ComputationError indicates a statistic could not be computed.
type ComputationError struct{ opError }

func (e *ComputationError) Error() string { return "computation failed: " + e.message() }
func (e *ComputationError) Unwrap() error { return e.Err }
func (e *ComputationError) Kind() Kind { return KindComputation }

func NotFound(err error, format string, args ...any) error {
	return &NotFoundError{opError{Msg: fmt.Sprintf(format, args...), Err: err}}
}

func ParseFailure(line int, err error, format string, args ...any) error {
	return &ParseError{opError: opError{Msg: fmt.Sprintf(format, args...), Err: err}, Line: line}
}

func Invalid(format string, args ...any) error {
	return &ValidationError{opError{Msg: fmt.Sprintf(format, args...)}}
}

func ComputationFailure(format string, args ...any) error {
	return &ComputationError{opError{Msg: fmt.Sprintf(format, args...)}}
}

// KindOf returns the kind tag of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Message returns the human-readable part of err without the kind prefix.
func Message(err error) string {
	var (
		nf *NotFoundError
		pe *ParseError
		ve *ValidationError
		ce *ComputationError
	)
	switch {
	case errors.As(err, &nf):
		return nf.message()
	case errors.As(err, &pe):
		if pe.Line > 0 {
			return fmt.Sprintf("line %d: %s", pe.Line, pe.message())
		}
		return pe.message()
	case errors.As(err, &ve):
		return ve.message()
	case errors.As(err, &ce):
		return ce.message()
	}
	return err.Error()
}
