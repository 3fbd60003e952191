package errors

import (
	"errors"
	"fmt"
)

// Storage level errors shared by the repositories
var (
	ErrNotFound = errors.New("not found")
	ErrEmptyKey = errors.New("key cannot be empty")
	ErrNilValue = errors.New("value cannot be nil")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
