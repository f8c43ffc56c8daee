package errs

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailTaken   = errors.New("email already taken")
	ErrLoginTaken   = errors.New("login already taken")
	ErrAccessDenied = errors.New("access denied")
	ErrNoData       = errors.New("no data to update")
)

// ValidationError is returned by entity constructors for malformed input.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
