// Package apperr defines the error taxonomy shared by the purchase core and
// its collaborators. Callers wrap one of the sentinel errors with context:
//
//	return fmt.Errorf("%w: book %d", apperr.ErrNotFound, id)
//
// and the HTTP layer maps the sentinel back to a status code via KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindUnauthorized  Kind = "unauthorized"
	KindInvalidState  Kind = "invalid_state"
	KindPaymentFailed Kind = "payment_failed"
	KindConflict      Kind = "conflict"
	KindValidation    Kind = "validation"
	KindInternal      Kind = "internal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrPaymentFailed = errors.New("payment failed")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidState, KindInvalidState},
	{ErrPaymentFailed, KindPaymentFailed},
	{ErrConflict, KindConflict},
	{ErrValidation, KindValidation},
}

// KindOf reports the category of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// NotFound wraps ErrNotFound with a formatted detail.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Unauthorized wraps ErrUnauthorized with a formatted detail.
func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

// InvalidState wraps ErrInvalidState with a formatted detail.
func InvalidState(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}

// PaymentFailed wraps ErrPaymentFailed with a formatted detail.
func PaymentFailed(format string, args ...any) error {
	return wrap(ErrPaymentFailed, format, args...)
}

// Conflict wraps ErrConflict with a formatted detail.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Validation wraps ErrValidation with a formatted detail.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Detail returns the human-readable part of err without the sentinel prefix.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, k := range kinds {
		prefix := k.err.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
