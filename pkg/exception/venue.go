package exception

import "errors"

// Venue errors
var (
	ErrVenueRejected      = errors.New("venue: request rejected")
	ErrVenueRateLimited   = errors.New("venue: rate limited")
	ErrVenueUnavailable   = errors.New("venue: unavailable")
	ErrVenueEmptyResponse = errors.New("venue: empty response")
	ErrVenueOrderNotFound = errors.New("venue: order not found")
)
