// Package apperr defines the error taxonomy shared by the release pipeline.
//
// Every error that crosses a package boundary is wrapped in an *Error carrying one
// of the Kind values below. Callers classify failures with errors.Is against the
// sentinel values:
//
//	if errors.Is(err, apperr.ErrConfiguration) {
//	    // reject the request before any image is touched
//	}
//
// # Recovery Rules
//
//   - Configuration and Data errors abort a release before image processing starts.
//   - IO and Transform errors on a single unit are counted and logged, never fatal.
//   - Packaging errors fail the release.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for recovery decisions.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindData          Kind = "data"
	KindIO            Kind = "io"
	KindTransform     Kind = "transform"
	KindPackaging     Kind = "packaging"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrData          = errors.New("data error")
	ErrIO            = errors.New("io error")
	ErrTransform     = errors.New("transform error")
	ErrPackaging     = errors.New("packaging error")
)

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "planner.Plan".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindData:
		return ErrData
	case KindIO:
		return ErrIO
	case KindTransform:
		return ErrTransform
	case KindPackaging:
		return ErrPackaging
	}
	return nil
}

func newf(k Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Op: op, Err: fmt.Errorf(format, args...)}
}

// Configuration reports an invalid policy or transformation set.
func Configuration(op, format string, args ...interface{}) error {
	return newf(KindConfiguration, op, format, args...)
}

// Data reports a missing collection or an empty image pool.
func Data(op, format string, args ...interface{}) error {
	return newf(KindData, op, format, args...)
}

// IO wraps an unreadable or unwritable file error.
func IO(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// Transform reports an unknown kind or degenerate geometry.
func Transform(op, format string, args ...interface{}) error {
	return newf(KindTransform, op, format, args...)
}

// Packaging wraps an archive write failure.
func Packaging(op string, err error) error {
	return &Error{Kind: KindPackaging, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
