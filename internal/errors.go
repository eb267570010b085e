package internal

import "errors"

// Categories. Handlers map these to HTTP statuses; every specific error below
// unwraps to exactly one of them.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrGone         = errors.New("gone")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrMissingFields      = newError(ErrValidation, "required fields are missing")
	ErrPasswordTooShort   = newError(ErrValidation, "password must be at least 6 characters")
	ErrPasswordTooLong    = newError(ErrValidation, "password must be at most 72 bytes")
	ErrInvalidURL         = newError(ErrValidation, "url must be an absolute http or https url")
	ErrInvalidShortCode   = newError(ErrValidation, "short code must be 3-20 letters, digits, '-' or '_'")
	ErrExpirationInPast   = newError(ErrValidation, "expiration must be in the future")
	ErrEmailTaken         = newError(ErrConflict, "email already registered")
	ErrShortCodeTaken     = newError(ErrConflict, "short code already exists")
	ErrUserNotFound       = newError(ErrNotFound, "user not found")
	ErrLinkNotFound       = newError(ErrNotFound, "link not found")
	ErrLinkGone           = newError(ErrGone, "link is expired or disabled")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid email or password")
	ErrInvalidToken       = newError(ErrUnauthorized, "invalid token")
	ErrAuthRequired       = newError(ErrUnauthorized, "authentication required")
)

// Error is a client-facing error. Its message is safe to return to callers.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }
