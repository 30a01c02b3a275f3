package validation

import (
	"errors"
	"fmt"
)

// ErrInvalid marks request validation failures
var ErrInvalid = errors.New("validation failed")

// Invalid wraps a validator error so callers can match it with errors.Is(err, ErrInvalid)
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
