package model

import (
	"errors"
	"fmt"
)

// Sentinel kinds for model errors.
var (
	ErrValidation    = errors.New("validation error")
	ErrUnknownStatus = errors.New("unknown status")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
