package attempts

import "errors"

var (
	ErrNotFound = errors.New("attempt not found")
	// ErrOutOfOrder is returned when a transcript write would leave a gap,
	// repeat an index or answer a turn twice.
	ErrOutOfOrder = errors.New("transcript write out of order")
	ErrNotOpen    = errors.New("attempt is not in progress")
	ErrValidation = errors.New("validation failed")
)
