package exception

import "errors"

// Book errors
var (
	ErrOutOfOrderUpdate = errors.New("book: out of order update")
	ErrBookEmpty        = errors.New("book: side empty")
	ErrChecksumMismatch = errors.New("book: checksum mismatch")
)
