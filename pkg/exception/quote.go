package exception

import "errors"

// Quote errors
var (
	ErrDegenerateBook = errors.New("quote: degenerate book")
)
