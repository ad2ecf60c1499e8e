package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindRateLimited
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a classified application error. Wrapped causes survive for
// errors.Is/errors.As inspection.
type Error struct {
	Kind    Kind
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

// Is makes two classified errors equal when their kinds match, so callers can
// compare against the exported sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons. Never returned directly; construct
// instances with the helpers so messages carry context.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrRateLimited  = &Error{Kind: KindRateLimited, Message: "rate limited"}
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
)

// NotFound reports that a referenced entity does not exist.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports that the actor is authenticated but lacks access.
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a state conflict such as a duplicate membership or an
// attempt to remove the last admin.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// RateLimited reports that an attempt ceiling was exceeded.
func RateLimited(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input rejected before any business logic ran.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error without changing its kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is classified NotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsForbidden reports whether err is classified Forbidden.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsUnauthorized reports whether err is classified Unauthorized.
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsConflict reports whether err is classified Conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRateLimited reports whether err is classified RateLimited.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsValidation reports whether err is classified Validation.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
