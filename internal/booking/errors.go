package booking

import "errors"

var (
	ErrNotFound          = errors.New("booking not found")
	ErrForbidden         = errors.New("not a party to this booking")
	ErrConflict          = errors.New("booking is no longer available")
	ErrInvalidTransition = errors.New("invalid status transition")
)
