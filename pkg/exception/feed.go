package exception

import "errors"

// Feed errors
var (
	ErrFeedClosed      = errors.New("feed: closed")
	ErrSubscribeFailed = errors.New("feed: subscribe failed")
)
