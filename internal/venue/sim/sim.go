// Package sim provides a deterministic in-process venue for paper runs
// and tests: orders rest in memory, acks are immediate and private
// pushes go straight to the registered handler.
package sim

import (
	"context"
	"sync"
	"time"

	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/exception"
)

type order struct {
	clientID   uint64
	exchangeID uint64
	side       schema.Side
	price      schema.Price
	size       schema.Quantity
	filled     schema.Quantity
	avgPrice   schema.Price
	status     schema.OrderStatus
}

// Venue implements venue.Trader and venue.PrivateFeed against in-memory
// state. The zero knobs make every action succeed instantly.
type Venue struct {
	mu       sync.Mutex
	inst     schema.Instrument
	nextExch uint64
	seq      uint64
	orders   map[uint64]*order
	handler  venue.PrivateHandler

	latency time.Duration
	scripts map[schema.ActionKind][]scripted

	placeCount  int
	amendCount  int
	cancelCount int
}

type scripted struct {
	ack     venue.Ack
	silent  bool
	failure error
}

// New creates a sim venue for one instrument.
func New(inst schema.Instrument) *Venue {
	return &Venue{
		inst:    inst,
		orders:  make(map[uint64]*order),
		scripts: make(map[schema.ActionKind][]scripted),
		seq:     1_000,
	}
}

// Run registers the private handler and blocks until the context ends.
func (v *Venue) Run(ctx context.Context, handler venue.PrivateHandler) error {
	v.mu.Lock()
	v.handler = handler
	v.mu.Unlock()
	<-ctx.Done()
	v.mu.Lock()
	v.handler = nil
	v.mu.Unlock()
	return ctx.Err()
}

// SetHandler wires the private handler directly, for tests that do not
// run the feed loop.
func (v *Venue) SetHandler(handler venue.PrivateHandler) {
	v.mu.Lock()
	v.handler = handler
	v.mu.Unlock()
}

// SetLatency delays every trading call, for timeout tests.
func (v *Venue) SetLatency(d time.Duration) {
	v.mu.Lock()
	v.latency = d
	v.mu.Unlock()
}

// ScriptAck makes the next action of the given kind resolve with the
// given ack instead of succeeding.
func (v *Venue) ScriptAck(kind schema.ActionKind, ack venue.Ack) {
	v.mu.Lock()
	v.scripts[kind] = append(v.scripts[kind], scripted{ack: ack})
	v.mu.Unlock()
}

// ScriptSilence makes the next action of the given kind block until its
// context expires, simulating a venue that never answers.
func (v *Venue) ScriptSilence(kind schema.ActionKind) {
	v.mu.Lock()
	v.scripts[kind] = append(v.scripts[kind], scripted{silent: true})
	v.mu.Unlock()
}

// ScriptError makes the next batch of the given kind fail in transport.
func (v *Venue) ScriptError(kind schema.ActionKind, err error) {
	v.mu.Lock()
	v.scripts[kind] = append(v.scripts[kind], scripted{failure: err})
	v.mu.Unlock()
}

// Counts reports how many place/amend/cancel requests arrived.
func (v *Venue) Counts() (places, amends, cancels int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.placeCount, v.amendCount, v.cancelCount
}

// OpenOrders reports the resting order count.
func (v *Venue) OpenOrders() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, o := range v.orders {
		if o.status == schema.OrderStatusLive {
			n++
		}
	}
	return n
}

func (v *Venue) takeScript(kind schema.ActionKind) (scripted, bool) {
	q := v.scripts[kind]
	if len(q) == 0 {
		return scripted{}, false
	}
	v.scripts[kind] = q[1:]
	return q[0], true
}

// preamble applies latency and scripted behavior shared by all calls.
// The caller holds no lock.
func (v *Venue) preamble(ctx context.Context, kind schema.ActionKind) (venue.Ack, bool, error) {
	v.mu.Lock()
	latency := v.latency
	script, hasScript := v.takeScript(kind)
	v.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return venue.Ack{}, false, ctx.Err()
		case <-timer.C:
		}
	}
	if !hasScript {
		return venue.Ack{}, false, nil
	}
	if script.silent {
		<-ctx.Done()
		return venue.Ack{}, false, ctx.Err()
	}
	if script.failure != nil {
		return venue.Ack{}, false, script.failure
	}
	return script.ack, true, nil
}

// Place accepts a batch of new orders.
func (v *Venue) Place(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	scriptedAck, hasScript, err := v.preamble(ctx, schema.ActionPlace)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.placeCount += len(reqs)

	acks := make([]venue.Ack, len(reqs))
	for i, req := range reqs {
		if hasScript {
			ack := scriptedAck
			ack.ClientID = req.ClientID
			acks[i] = ack
			hasScript = false
			continue
		}
		if _, exists := v.orders[req.ClientID]; exists {
			acks[i] = venue.Ack{ClientID: req.ClientID, Code: 51008, Message: "duplicate client order id", Outcome: schema.OutcomeFailedTerminal}
			continue
		}
		v.nextExch++
		o := &order{
			clientID:   req.ClientID,
			exchangeID: v.nextExch,
			side:       req.Side,
			price:      req.Price,
			size:       req.Size,
			status:     schema.OrderStatusLive,
		}
		v.orders[req.ClientID] = o
		acks[i] = venue.Ack{ClientID: req.ClientID, ExchangeID: o.exchangeID, Outcome: schema.OutcomeAcked}
		v.pushLocked(o)
	}
	return acks, nil
}

// Amend moves a resting order to a new price and total size.
func (v *Venue) Amend(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	scriptedAck, hasScript, err := v.preamble(ctx, schema.ActionAmend)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.amendCount += len(reqs)

	acks := make([]venue.Ack, len(reqs))
	for i, req := range reqs {
		if hasScript {
			ack := scriptedAck
			ack.ClientID = req.ClientID
			acks[i] = ack
			hasScript = false
			continue
		}
		o, exists := v.orders[req.ClientID]
		if !exists || o.status != schema.OrderStatusLive {
			acks[i] = venue.Ack{ClientID: req.ClientID, Code: 51503, Message: "order not found or completed", Outcome: schema.OutcomeFailedTerminal}
			continue
		}
		if req.Size > 0 && req.Size <= o.filled {
			acks[i] = venue.Ack{ClientID: req.ClientID, Code: 51506, Message: "size below filled amount", Outcome: schema.OutcomeFailedTerminal}
			continue
		}
		if req.Price > 0 {
			o.price = req.Price
		}
		if req.Size > 0 {
			o.size = req.Size
		}
		acks[i] = venue.Ack{ClientID: req.ClientID, ExchangeID: o.exchangeID, Outcome: schema.OutcomeAcked}
		v.pushLocked(o)
	}
	return acks, nil
}

// Cancel removes resting orders.
func (v *Venue) Cancel(ctx context.Context, reqs []schema.ActionRequest) ([]venue.Ack, error) {
	scriptedAck, hasScript, err := v.preamble(ctx, schema.ActionCancel)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelCount += len(reqs)

	acks := make([]venue.Ack, len(reqs))
	for i, req := range reqs {
		if hasScript {
			ack := scriptedAck
			ack.ClientID = req.ClientID
			acks[i] = ack
			hasScript = false
			continue
		}
		o, exists := v.orders[req.ClientID]
		if !exists || o.status != schema.OrderStatusLive {
			acks[i] = venue.Ack{ClientID: req.ClientID, Code: 51400, Message: "cancellation failed", Outcome: schema.OutcomeFailedTerminal}
			continue
		}
		o.status = schema.OrderStatusCanceled
		acks[i] = venue.Ack{ClientID: req.ClientID, ExchangeID: o.exchangeID, Outcome: schema.OutcomeAcked}
		v.pushLocked(o)
	}
	return acks, nil
}

// Query looks an order up by client id.
func (v *Venue) Query(ctx context.Context, clientID uint64) (venue.OrderState, error) {
	if err := ctx.Err(); err != nil {
		return venue.OrderState{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	o, exists := v.orders[clientID]
	if !exists {
		return venue.OrderState{}, nil
	}
	return venue.OrderState{Known: true, Update: v.updateLocked(o)}, nil
}

// Fill executes part of a resting order, pushing the update like the
// real private stream would.
func (v *Venue) Fill(clientID uint64, qty schema.Quantity, price schema.Price) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, exists := v.orders[clientID]
	if !exists || o.status != schema.OrderStatusLive {
		return exception.ErrVenueOrderNotFound
	}
	if qty > o.size-o.filled {
		qty = o.size - o.filled
	}
	prevNotional := int64(o.avgPrice) * int64(o.filled)
	o.filled += qty
	if o.filled > 0 {
		o.avgPrice = schema.Price((prevNotional + int64(price)*int64(qty)) / int64(o.filled))
	}
	if o.filled >= o.size {
		o.status = schema.OrderStatusFilled
	}
	v.pushLocked(o)
	return nil
}

// MatchBook fills every resting order the given top of book crosses,
// at the order's own price. Paper runs drive this from the feed.
func (v *Venue) MatchBook(bestBid, bestAsk schema.Price) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, o := range v.orders {
		if o.status != schema.OrderStatusLive {
			continue
		}
		crossed := (o.side == schema.SideBuy && bestAsk > 0 && bestAsk <= o.price) ||
			(o.side == schema.SideSell && bestBid > 0 && bestBid >= o.price)
		if !crossed {
			continue
		}
		qty := o.size - o.filled
		prevNotional := int64(o.avgPrice) * int64(o.filled)
		o.filled = o.size
		o.avgPrice = schema.Price((prevNotional + int64(o.price)*int64(qty)) / int64(o.filled))
		o.status = schema.OrderStatusFilled
		v.pushLocked(o)
	}
}

func (v *Venue) updateLocked(o *order) schema.OrderUpdate {
	v.seq++
	return schema.OrderUpdate{
		ClientID:     o.clientID,
		ExchangeID:   o.exchangeID,
		InstrumentID: uint32(v.inst.ID),
		Status:       o.status,
		Side:         o.side,
		Seq:          v.seq,
		Price:        o.price,
		Size:         o.size,
		Remaining:    o.size - o.filled,
		Filled:       o.filled,
		AvgPrice:     o.avgPrice,
		Ts:           time.Now().UTC().UnixNano(),
	}
}

func (v *Venue) pushLocked(o *order) {
	if v.handler == nil {
		return
	}
	v.handler.OnOrder(v.updateLocked(o))
}
