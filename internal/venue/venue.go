// Package venue defines the trading and streaming surfaces an exchange
// adapter has to implement. Concrete adapters live in subpackages.
package venue

import (
	"context"

	"main/internal/schema"
)

// MaxBatch is the most actions one trading request may carry.
const MaxBatch = 20

// Ack is the venue's per-action receipt. The adapter classifies its own
// result codes into Outcome; code zero means accepted.
type Ack struct {
	ClientID   uint64
	ExchangeID uint64
	Code       uint32
	Message    string
	Outcome    schema.ActionOutcome
}

// OrderState reports the venue's view of one order.
type OrderState struct {
	Known  bool
	Update schema.OrderUpdate
}

// Trader executes order actions. Each batch carries at most MaxBatch
// same-kind actions and the returned acks align with the request slice;
// a returned error means the whole batch never reached the venue.
type Trader interface {
	Place(ctx context.Context, reqs []schema.ActionRequest) ([]Ack, error)
	Amend(ctx context.Context, reqs []schema.ActionRequest) ([]Ack, error)
	Cancel(ctx context.Context, reqs []schema.ActionRequest) ([]Ack, error)
	// Query resolves an order by client id, used after a dispatch timeout
	// to avoid creating duplicates.
	Query(ctx context.Context, clientID uint64) (OrderState, error)
}

// PublicHandler receives decoded market-data events.
type PublicHandler interface {
	OnBook(schema.BookUpdate)
	OnTrade(schema.Trade)
}

// PublicFeed streams market data. Run blocks until the stream fails or
// the context ends; the supervisor owns reconnects.
type PublicFeed interface {
	Run(ctx context.Context, handler PublicHandler) error
	// Resubscribe tears down and re-establishes the book subscription so
	// the venue pushes a fresh snapshot.
	Resubscribe(ctx context.Context, instrumentID uint32) error
}

// PrivateHandler receives decoded account events.
type PrivateHandler interface {
	OnOrder(schema.OrderUpdate)
	OnPosition(schema.PositionUpdate)
	OnBalance(schema.BalanceUpdate)
}

// PrivateFeed streams the authenticated account channels.
type PrivateFeed interface {
	Run(ctx context.Context, handler PrivateHandler) error
}

// Chunk splits requests into venue-sized batches.
func Chunk(reqs []schema.ActionRequest) [][]schema.ActionRequest {
	if len(reqs) == 0 {
		return nil
	}
	out := make([][]schema.ActionRequest, 0, (len(reqs)+MaxBatch-1)/MaxBatch)
	for len(reqs) > MaxBatch {
		out = append(out, reqs[:MaxBatch])
		reqs = reqs[MaxBatch:]
	}
	return append(out, reqs)
}
