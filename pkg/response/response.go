package response

import (
	"errors"
)

// Error carries the HTTP status an error maps to and a short machine-readable key
// that is safe to hand back to clients.
type Error struct {
	Code int
	Key  string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Key == t.Key
}

func NewError(code int, key string) error {
	return &Error{Code: code, Key: key, Err: errors.New(key)}
}

// KeyOf returns the client-facing key of err, or the error text when err is not an *Error.
func KeyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return err.Error()
}
