package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTrace is returned when a statistic needs at least one sample.
	ErrEmptyTrace = errors.New("trace is empty")
	// ErrUndefinedStart is returned when the extrema scan closes an upward
	// run before any local minimum has been recorded.
	ErrUndefinedStart = errors.New("positive-slope zone closed without a recorded start")
)

// ValidationError reports input rejected before any analysis ran.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err means the input was rejected rather than a
// computation failure.
func IsRejected(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrEmptyTrace) || errors.Is(err, ErrUndefinedStart)
}
