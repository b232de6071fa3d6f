package exception

import "errors"

// Account errors
var (
	ErrInvalidTransition = errors.New("account: invalid status transition")
	ErrUnknownOrder      = errors.New("account: unknown order")
	ErrDuplicateOrder    = errors.New("account: duplicate order")
)
