package usererr

import (
	"errors"

	"dbusererr/internal/shared"
)

// Error replaces a database error that carried a user-error payload.
// Error() is the translated message. The database error stays reachable
// through errors.Is and errors.As, and shared.KindOf reports KindUserError.
type Error struct {
	// Message is the translated, end-user text.
	Message string
	// Key is the message or translation key taken from the payload.
	Key string
	// Params are the payload parameters keyed as %name%.
	Params map[string]string
	Source Source
	Code   string

	cause error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes both shared.ErrUserError and the original error.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{shared.ErrUserError}
	}
	return []error{shared.ErrUserError, e.cause}
}

// Cause returns the database error e was built from.
func (e *Error) Cause() error { return e.cause }

// As returns the first *Error in the chain of err.
func As(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
