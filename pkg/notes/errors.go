package notes

import (
	"errors"
	"fmt"
)

// ErrEmptyKey is returned when a date key is blank.
var ErrEmptyKey = errors.New("note date key is empty")

// InvalidDateError reports a note key that is not a YYYY-MM-DD calendar date.
type InvalidDateError struct {
	Key string
	Err error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid note date %q: %v", e.Key, e.Err)
}

func (e *InvalidDateError) Unwrap() error {
	return e.Err
}

// MissingFieldError reports a payload lacking a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}
