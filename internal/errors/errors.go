package errors

import (
	"errors"
	"fmt"
)

// Infrastructure errors shared by the storage backends and the HTTP layer.
var (
	// Storage errors
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrCorruptRecord      = errors.New("stored record could not be decoded")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingIDParam = errors.New("missing id parameter")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
