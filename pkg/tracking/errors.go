package tracking

import (
	"errors"
	"fmt"
)

// ErrNoOpenSession is returned when an operation requires an open session
// and the user has none.
var ErrNoOpenSession = errors.New("no open session")

// ErrSessionConflict is returned when a concurrent operation already opened
// a session for the user (uniqueness constraint violation).
var ErrSessionConflict = errors.New("user already has an open session")

// ValidationError marks a request that references unknown or unusable
// input, such as an unknown task type or an unrecognized break name.
// It maps to a 4xx response and never causes a mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
