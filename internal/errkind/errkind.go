// Package errkind models the error taxonomy of spec.md §7 as a typed kind
// attached to a wrapped error, so the dispatcher can branch on a type
// instead of matching on error-message prefixes the way the teacher's
// handlers.ErrorHandler does with *fiber.Error.
package errkind

import "errors"

// Kind is one taxonomy entry from spec.md §7.
type Kind string

const (
	PolicyValidation Kind = "policy-validation-error"
	CloudAPI         Kind = "cloud-api-error"
	Cache            Kind = "cache-error"
	Validation       Kind = "validation-error"
	SecurityViolation Kind = "security-violation"
	BudgetExhausted  Kind = "budget-exhausted"
	LoopDetected     Kind = "loop-detected"
	Timeout          Kind = "timeout"
	Cancelled        Kind = "cancelled"
)

// Error carries a Kind alongside the usual wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error of the given kind.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// As extracts the Kind of err if it (or something it wraps) is an *Error.
func As(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
