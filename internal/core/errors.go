package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHorizon     = errors.New("invalid horizon")
	ErrInvalidAnchor      = errors.New("invalid anchor")
	ErrInvalidLags        = errors.New("invalid lag count")
	ErrInvalidTopK        = errors.New("invalid top_k")
	ErrInvalidGranularity = errors.New("invalid granularity")
)

// ValidationError is the only kind of error the forecasting core reports to callers.
// Everything else degrades to the baseline.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
