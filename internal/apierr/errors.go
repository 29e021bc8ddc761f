// Package apierr defines the error taxonomy of the control plane and the
// normalizer that turns any backend failure into one uniform envelope.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation is bad input; it never reaches a backend.
	KindValidation Kind = "validation"
	// KindAuth means every authentication strategy was exhausted.
	KindAuth Kind = "auth"
	// KindUnreachable is a transient network or timeout failure.
	KindUnreachable Kind = "backend_unreachable"
	// KindNotFound means the resource is absent from every known backend.
	KindNotFound Kind = "not_found"
	// KindRejected is a definitive application error returned by a backend.
	KindRejected Kind = "backend_rejected"
	// KindPersistence is a local write failure after a backend mutation.
	KindPersistence Kind = "persistence"
)

// StatusCoder is implemented by backend errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Error is a classified failure. It wraps its cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation creates a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

// NotFound creates a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// KindOf returns the kind of the outermost classified error in the chain,
// or "" if err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any classified error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsValidation reports whether err is a KindValidation error.
func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

// StatusOf returns the HTTP status carried by a backend error in the chain,
// or 0.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
