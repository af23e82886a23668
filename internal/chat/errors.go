package chat

import (
	"errors"
	"fmt"
)

// Sentinel errors for the chat core. Handlers translate these into HTTP
// statuses or websocket error events; anything that doesn't match is a
// storage failure and must not leak internals to the client.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation error")
)

// FieldErrors carries field-level validation detail.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FieldErrors) Error() string {
	return "validation error"
}

func (e FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidOperation)...)
}
