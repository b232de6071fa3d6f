// Package account is the authoritative local replica of this engine's
// orders, position and balances, built from the private event stream.
package account

import (
	"sort"
	"sync"
	"time"

	"main/internal/schema"
	"main/pkg/exception"
)

// Order is one order row. Filled is the venue-reported accumulated
// filled size; Remaining is in original-size units.
type Order struct {
	ClientID     uint64
	ExchangeID   uint64
	InstrumentID schema.InstrumentID
	Side         schema.Side
	Price        schema.Price
	Size         schema.Quantity
	Remaining    schema.Quantity
	Filled       schema.Quantity
	AvgPrice     schema.Price
	Status       schema.OrderStatus
	Seq          uint64
	CreatedTs    int64
	UpdatedTs    int64
}

// Measurement accumulates traded size since process start, in base
// units. NetFilled is signed (buys minus sells).
type Measurement struct {
	NetFilled  schema.Quantity
	BuyFilled  schema.Quantity
	SellFilled schema.Quantity
	Volume     schema.Quantity
}

// UpsertResult reports what an order update did to the store.
type UpsertResult struct {
	Applied   bool
	FillDelta schema.Quantity
	Order     Order
}

// Store owns order, position and balance state. One mutex guards all
// mutations; reads hand out copies.
type Store struct {
	mu     sync.Mutex
	orders map[uint64]*Order

	position    schema.Quantity
	posAvgPrice schema.Price
	posSeq      uint64

	balances map[string]Balance

	measurement Measurement

	lastPrivateTs int64
}

// Balance is one currency row.
type Balance struct {
	Currency  string
	Available schema.Notional
	Frozen    schema.Notional
	Seq       uint64
	Ts        int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:   make(map[uint64]*Order),
		balances: make(map[string]Balance),
	}
}

// Track registers a locally created order, normally in pending-new,
// before the venue has seen it. Duplicate client ids are rejected.
func (s *Store) Track(order Order) error {
	if order.ClientID == 0 {
		return exception.ErrUnknownOrder
	}
	if order.Status == schema.OrderStatusUnknown {
		order.Status = schema.OrderStatusPendingNew
	}
	if order.Remaining == 0 {
		order.Remaining = order.Size
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ClientID]; ok {
		return exception.ErrDuplicateOrder
	}
	cp := order
	s.orders[order.ClientID] = &cp
	return nil
}

// UpsertOrder applies one private order event. Events are idempotent by
// sequence: an event not newer than the stored order's sequence is a
// no-op, and a terminal status repeating itself is absorbed without
// error. Invalid status transitions return ErrInvalidTransition and
// leave the store untouched. Unknown open orders are adopted (they
// exist on the venue, so the reconciler must see them); unknown
// terminal events are dropped.
func (s *Store) UpsertOrder(u schema.OrderUpdate) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked(u.Ts)

	existing, ok := s.orders[u.ClientID]
	if !ok {
		if !u.Status.Open() {
			return UpsertResult{}, nil
		}
		adopted := &Order{
			ClientID:     u.ClientID,
			ExchangeID:   u.ExchangeID,
			InstrumentID: schema.InstrumentID(u.InstrumentID),
			Side:         u.Side,
			Price:        u.Price,
			Size:         u.Size,
			Remaining:    u.Remaining,
			Filled:       u.Filled,
			AvgPrice:     u.AvgPrice,
			Status:       u.Status,
			Seq:          u.Seq,
			CreatedTs:    u.Ts,
			UpdatedTs:    u.Ts,
		}
		// fills that happened before adoption were never observed as
		// deltas, so they stay out of the measurement
		s.orders[u.ClientID] = adopted
		return UpsertResult{Applied: true, Order: *adopted}, nil
	}

	if u.Seq <= existing.Seq {
		return UpsertResult{}, nil
	}
	if existing.Status.Terminal() && u.Status == existing.Status {
		// the venue confirming a locally closed order, e.g. its own
		// canceled push after a shutdown cancel already ran MarkCanceled
		existing.Seq = u.Seq
		return UpsertResult{}, nil
	}
	if !validTransition(existing.Status, u.Status) {
		return UpsertResult{}, exception.ErrInvalidTransition
	}

	fillDelta := u.Filled - existing.Filled
	if fillDelta < 0 {
		fillDelta = 0
	}

	if u.ExchangeID != 0 {
		existing.ExchangeID = u.ExchangeID
	}
	if u.Price != 0 {
		existing.Price = u.Price
	}
	if u.Size != 0 {
		existing.Size = u.Size
	}
	existing.Remaining = u.Remaining
	if u.Filled > existing.Filled {
		existing.Filled = u.Filled
	}
	if u.AvgPrice != 0 {
		existing.AvgPrice = u.AvgPrice
	}
	existing.Status = u.Status
	existing.Seq = u.Seq
	existing.UpdatedTs = u.Ts

	s.recordFillLocked(u.Side, fillDelta)
	return UpsertResult{Applied: true, FillDelta: fillDelta, Order: *existing}, nil
}

// SetPending applies a local transition when the gateway dispatches an
// amend or cancel. The venue sequence is untouched.
func (s *Store) SetPending(clientID uint64, status schema.OrderStatus, now int64) error {
	if status != schema.OrderStatusPendingAmend && status != schema.OrderStatusPendingCancel {
		return exception.ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[clientID]
	if !ok {
		return exception.ErrUnknownOrder
	}
	if !validTransition(order.Status, status) {
		return exception.ErrInvalidTransition
	}
	order.Status = status
	order.UpdatedTs = now
	return nil
}

// RevertPending undoes a local pending-amend or pending-cancel after the
// venue refused the action: the order is still resting, so it goes back
// to live. Venue-driven transitions are not affected.
func (s *Store) RevertPending(clientID uint64, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[clientID]
	if !ok {
		return exception.ErrUnknownOrder
	}
	if order.Status != schema.OrderStatusPendingAmend && order.Status != schema.OrderStatusPendingCancel {
		return exception.ErrInvalidTransition
	}
	order.Status = schema.OrderStatusLive
	order.UpdatedTs = now
	return nil
}

// MarkCanceled locally closes an open order after a shutdown cancel went
// out. The process is exiting, so no venue push will confirm it; terminal
// orders are left alone.
func (s *Store) MarkCanceled(clientID uint64, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[clientID]
	if !ok {
		return exception.ErrUnknownOrder
	}
	if order.Status.Terminal() {
		return nil
	}
	order.Status = schema.OrderStatusCanceled
	order.UpdatedTs = now
	return nil
}

// validTransition encodes the order status machine. Same-status repeats
// are allowed for open statuses (richer data under a newer sequence).
func validTransition(from, to schema.OrderStatus) bool {
	switch from {
	case schema.OrderStatusPendingNew:
		switch to {
		case schema.OrderStatusPendingNew, schema.OrderStatusLive, schema.OrderStatusRejected,
			schema.OrderStatusFilled, schema.OrderStatusCanceled:
			return true
		}
	case schema.OrderStatusLive:
		switch to {
		case schema.OrderStatusLive, schema.OrderStatusPendingAmend, schema.OrderStatusPendingCancel,
			schema.OrderStatusFilled, schema.OrderStatusCanceled:
			return true
		}
	case schema.OrderStatusPendingAmend:
		switch to {
		case schema.OrderStatusPendingAmend, schema.OrderStatusLive, schema.OrderStatusCanceled,
			schema.OrderStatusRejected, schema.OrderStatusFilled:
			return true
		}
	case schema.OrderStatusPendingCancel:
		switch to {
		case schema.OrderStatusPendingCancel, schema.OrderStatusCanceled, schema.OrderStatusFilled:
			return true
		}
	}
	return false
}

// recordFillLocked folds a fill delta into the measurement.
func (s *Store) recordFillLocked(side schema.Side, delta schema.Quantity) {
	if delta <= 0 {
		return
	}
	s.measurement.Volume += delta
	switch side {
	case schema.SideBuy:
		s.measurement.NetFilled += delta
		s.measurement.BuyFilled += delta
	case schema.SideSell:
		s.measurement.NetFilled -= delta
		s.measurement.SellFilled += delta
	}
}

// Order returns a copy of one order.
func (s *Store) Order(clientID uint64) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[clientID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// OpenOrders returns copies of every order that still rests (or may
// rest) on the venue, sorted by client id for determinism.
func (s *Store) OpenOrders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, order := range s.orders {
		if order.Status.Open() {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// OrderCount returns total and open order counts.
func (s *Store) OrderCount() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := 0
	for _, order := range s.orders {
		if order.Status.Open() {
			open++
		}
	}
	return len(s.orders), open
}

// PruneTerminal drops terminal orders last updated before the cutoff.
// Terminal rows are kept for a while so late acknowledgements still
// correlate.
func (s *Store) PruneTerminal(cutoff int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, order := range s.orders {
		if order.Status.Terminal() && order.UpdatedTs < cutoff {
			delete(s.orders, id)
			pruned++
		}
	}
	return pruned
}

// Measurement returns the cumulative trade measurement.
func (s *Store) Measurement() Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measurement
}

// Staleness reports time since the last private event.
func (s *Store) Staleness(now int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastPrivateTs == 0 {
		return 0
	}
	return time.Duration(now - s.lastPrivateTs)
}

func (s *Store) touchLocked(ts int64) {
	if ts > s.lastPrivateTs {
		s.lastPrivateTs = ts
	}
}
