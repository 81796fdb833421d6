// Package errs defines the error taxonomy shared by the station core. Every
// failure a caller can act on carries one of the kinds below so the API layer
// can render them uniformly.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a station error.
type Kind int

const (
	// KindAdmission covers waiting-area rejections: area full, duplicate vehicle.
	KindAdmission Kind = iota + 1
	// KindState covers operations invalid for the current pile status.
	KindState
	// KindNotFound covers unknown queue numbers and pile ids.
	KindNotFound
	// KindValidation covers malformed input such as non-positive energy.
	KindValidation
	// KindScheduling covers rescheduling failures, e.g. no healthy sibling pile.
	KindScheduling
)

func (k Kind) String() string {
	switch k {
	case KindAdmission:
		return "admission"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindScheduling:
		return "scheduling"
	}
	return "unknown"
}

// Error is a classified station error.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

func newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Admissionf builds an admission error.
func Admissionf(format string, args ...any) error {
	return newf(KindAdmission, format, args...)
}

// Statef builds a state error.
func Statef(format string, args ...any) error {
	return newf(KindState, format, args...)
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

// Schedulingf builds a scheduling error.
func Schedulingf(format string, args ...any) error {
	return newf(KindScheduling, format, args...)
}

// Wrap attaches a kind to an existing error, keeping it unwrappable.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

// KindOf extracts the kind of err, or 0 if it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }
