package exception

import "errors"

// Gateway errors
var (
	ErrGatewayQueueFull    = errors.New("gateway: queue full")
	ErrGatewayClosed       = errors.New("gateway: closed")
	ErrGatewayNilVenue     = errors.New("gateway: nil venue")
	ErrInvalidWorkerConfig = errors.New("gateway: invalid worker config")
	ErrUnknownRequest      = errors.New("gateway: unknown request id")
)
