package service

import (
	"errors"
	"fmt"

	"github.com/bdt-io/bdt/internal/repository"
)

var (
	// ErrUnauthorized is returned for bad credentials or tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor lacks a permission.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited is returned while a login is blocked.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound aliases the repository sentinel so callers need one check.
	ErrNotFound = repository.ErrNotFound
	// ErrConflict aliases the repository sentinel.
	ErrConflict = repository.ErrConflict
)

// Error pairs a sentinel with a user facing French message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

func invalid(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s introuvable", what)
}

// UserMessage returns the message to show for err, or "" when err carries
// none.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
