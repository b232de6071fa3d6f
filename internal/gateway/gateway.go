// Package gateway dispatches order actions to the venue asynchronously.
// Every action runs a small state machine: dispatched, then acked,
// failed-retryable (backoff and redispatch), failed-terminal or
// timed-out (re-queried once before any retry).
package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/errors"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/backoff"
	"main/pkg/exception"
)

// Config tunes the dispatch pool.
type Config struct {
	Workers     int
	QueueCap    int
	MaxAttempts int
	AckTimeout  time.Duration
	Retry       backoff.Backoff
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 2 * time.Second
	}
	if c.Retry == (backoff.Backoff{}) {
		c.Retry = backoff.Default()
	}
	return c
}

// Hooks receives dispatch lifecycle notifications. Nil funcs are skipped.
type Hooks struct {
	Request func(schema.ActionRequest)
	Result  func(schema.ActionRequest, schema.ActionResult)
}

type job struct {
	kind    schema.ActionKind
	reqs    []schema.ActionRequest
	attempt int
}

type flight struct {
	req        schema.ActionRequest
	dispatched int64
}

// Gateway owns the worker pool between the reconciler and the venue.
type Gateway struct {
	cfg     Config
	trader  venue.Trader
	store   *account.Store
	ids     *obs.IDGen
	metrics *obs.Metrics
	hooks   Hooks

	mu       sync.Mutex
	inFlight map[uint64]*flight

	queue     chan job
	running   atomic.Bool
	closed    atomic.Bool
	suspended atomic.Bool
}

// New builds a gateway over the given trader and account store.
func New(cfg Config, trader venue.Trader, store *account.Store, ids *obs.IDGen, metrics *obs.Metrics, hooks Hooks) (*Gateway, error) {
	if trader == nil {
		return nil, exception.ErrGatewayNilVenue
	}
	if cfg.Workers < 0 || cfg.QueueCap < 0 {
		return nil, exception.ErrInvalidWorkerConfig
	}
	cfg = cfg.withDefaults()
	if ids == nil {
		ids = obs.NewIDGen(0)
	}
	return &Gateway{
		cfg:      cfg,
		trader:   trader,
		store:    store,
		ids:      ids,
		metrics:  metrics,
		hooks:    hooks,
		inFlight: make(map[uint64]*flight),
		queue:    make(chan job, cfg.QueueCap),
	}, nil
}

// Run starts the dispatch workers. It does not block.
func (g *Gateway) Run(ctx context.Context) {
	if g.running.Swap(true) {
		return
	}
	for range g.cfg.Workers {
		go g.worker(ctx)
	}
}

// Close stops Submit from accepting new plans; queued jobs still drain.
// The last Submit must have returned before Close.
func (g *Gateway) Close() {
	if !g.closed.Swap(true) {
		close(g.queue)
	}
}

// Suspend fences the queue: workers resolve staged places and amends
// locally instead of dispatching them, while cancels still go out. The
// reconciler sets this when withdrawing quotes so a place staged before
// the withdrawal cannot re-rest an order behind the cancel-all pass.
func (g *Gateway) Suspend() {
	g.suspended.Store(true)
}

// Resume lifts Suspend.
func (g *Gateway) Resume() {
	g.suspended.Store(false)
}

// InFlight returns the client ids with an unresolved action, for the
// reconciler's level exclusion.
func (g *Gateway) InFlight() map[uint64]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[uint64]struct{}, len(g.inFlight))
	for id := range g.inFlight {
		out[id] = struct{}{}
	}
	return out
}

// InFlightCount reports the number of unresolved actions.
func (g *Gateway) InFlightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}

// Submit enqueues the requests without blocking: cancels first, then
// amends, then places, each split into venue-sized batches. Either the
// whole set is accepted or nothing is mutated and
// exception.ErrGatewayQueueFull comes back. Place requests get their
// client and request ids here; the correlated outcomes arrive through
// the account store and Hooks.
func (g *Gateway) Submit(reqs []schema.ActionRequest) error {
	if g.closed.Load() {
		return exception.ErrGatewayClosed
	}
	if len(reqs) == 0 {
		return nil
	}

	byKind := map[schema.ActionKind][]schema.ActionRequest{}
	for _, req := range reqs {
		byKind[req.Kind] = append(byKind[req.Kind], req)
	}

	batches := 0
	for _, kindReqs := range byKind {
		batches += (len(kindReqs) + venue.MaxBatch - 1) / venue.MaxBatch
	}
	if len(g.queue)+batches > cap(g.queue) {
		return exception.ErrGatewayQueueFull
	}

	now := time.Now().UTC().UnixNano()
	for _, kind := range []schema.ActionKind{schema.ActionCancel, schema.ActionAmend, schema.ActionPlace} {
		kindReqs := byKind[kind]
		if len(kindReqs) == 0 {
			continue
		}
		accepted := make([]schema.ActionRequest, 0, len(kindReqs))
		for _, req := range kindReqs {
			req.Kind = kind
			req.RequestID = g.ids.Next()
			req.Ts = now
			if staged, ok := g.stage(req, now); ok {
				accepted = append(accepted, staged)
			}
		}
		for _, chunk := range venue.Chunk(accepted) {
			g.queue <- job{kind: kind, reqs: chunk, attempt: 1}
		}
	}
	return nil
}

// stage applies the local side effects of one request before dispatch.
func (g *Gateway) stage(req schema.ActionRequest, now int64) (schema.ActionRequest, bool) {
	switch req.Kind {
	case schema.ActionPlace:
		req.ClientID = g.ids.Next()
		if err := g.store.Track(account.Order{
			ClientID:     req.ClientID,
			InstrumentID: schema.InstrumentID(req.InstrumentID),
			Side:         req.Side,
			Price:        req.Price,
			Size:         req.Size,
			Remaining:    req.Size,
			Status:       schema.OrderStatusPendingNew,
			CreatedTs:    now,
			UpdatedTs:    now,
		}); err != nil {
			logs.Errorf("track new order %d, err: %+v", req.ClientID, err)
			return req, false
		}
	case schema.ActionAmend:
		if err := g.store.SetPending(req.ClientID, schema.OrderStatusPendingAmend, now); err != nil {
			// The order changed between diff and submit; the next cycle
			// sees the new state.
			logs.Infof("skip amend for order %d, err: %+v", req.ClientID, err)
			return req, false
		}
	case schema.ActionCancel:
		if err := g.store.SetPending(req.ClientID, schema.OrderStatusPendingCancel, now); err != nil {
			logs.Infof("skip cancel for order %d, err: %+v", req.ClientID, err)
			return req, false
		}
	default:
		return req, false
	}

	g.mu.Lock()
	g.inFlight[req.ClientID] = &flight{req: req, dispatched: now}
	g.mu.Unlock()

	g.metrics.IncAction(req.Kind)
	if g.hooks.Request != nil {
		g.hooks.Request(req)
	}
	return req, true
}

func (g *Gateway) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-g.queue:
			if !ok {
				return
			}
			g.dispatch(ctx, j)
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, j job) {
	if g.suspended.Load() && j.kind != schema.ActionCancel {
		for _, req := range j.reqs {
			g.resolveTerminal(req, venue.Ack{Message: "quotes withdrawn before dispatch"})
		}
		return
	}

	cctx, cancel := context.WithTimeout(ctx, g.cfg.AckTimeout)
	defer cancel()

	var (
		acks []venue.Ack
		err  error
	)
	switch j.kind {
	case schema.ActionPlace:
		acks, err = g.trader.Place(cctx, j.reqs)
	case schema.ActionAmend:
		acks, err = g.trader.Amend(cctx, j.reqs)
	case schema.ActionCancel:
		acks, err = g.trader.Cancel(cctx, j.reqs)
	default:
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; the cancel-all pass owns whatever is left.
			g.resolveAll(j, schema.OutcomeTimedOut, 0)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			g.requeryBatch(ctx, j)
			return
		}
		logs.Errorf("dispatch %s batch of %d, err: %+v", j.kind, len(j.reqs), err)
		g.retryBatch(ctx, j.kind, j.reqs, j.attempt)
		return
	}

	if len(acks) != len(j.reqs) {
		logs.Errorf("dispatch %s: %d acks for %d requests", j.kind, len(acks), len(j.reqs))
		g.retryBatch(ctx, j.kind, j.reqs, j.attempt)
		return
	}

	retry := j.reqs[:0:0]
	for i, ack := range acks {
		req := j.reqs[i]
		switch ack.Outcome {
		case schema.OutcomeAcked, schema.OutcomeUnknown:
			g.resolveAck(req, ack)
		case schema.OutcomeFailedRetryable:
			retry = append(retry, req)
		default:
			g.resolveTerminal(req, ack)
		}
	}
	if len(retry) > 0 {
		g.retryBatch(ctx, j.kind, retry, j.attempt)
	}
}

// resolveAck clears the flight for an accepted action. Order status moves
// on the private stream; only the exchange id is recorded here so a
// restart can correlate before the first push arrives. Seq 1 keeps the
// ack below every venue-stamped sequence regardless of clock skew.
func (g *Gateway) resolveAck(req schema.ActionRequest, ack venue.Ack) {
	if req.Kind == schema.ActionPlace && ack.ExchangeID != 0 {
		if _, err := g.store.UpsertOrder(schema.OrderUpdate{
			ClientID:     req.ClientID,
			ExchangeID:   ack.ExchangeID,
			InstrumentID: req.InstrumentID,
			Status:       schema.OrderStatusPendingNew,
			Side:         req.Side,
			Seq:          1,
			Price:        req.Price,
			Size:         req.Size,
			Remaining:    req.Size,
			Ts:           time.Now().UTC().UnixNano(),
		}); err != nil {
			logs.Infof("record exchange id for order %d, err: %+v", req.ClientID, err)
		}
	}
	g.finish(req, schema.ActionResult{
		RequestID:  req.RequestID,
		ClientID:   req.ClientID,
		ExchangeID: ack.ExchangeID,
		Outcome:    schema.OutcomeAcked,
		Code:       ack.Code,
	})
}

// resolveTerminal surfaces a terminal venue refusal: a failed place is a
// rejection, a failed amend or cancel leaves the order resting.
func (g *Gateway) resolveTerminal(req schema.ActionRequest, ack venue.Ack) {
	now := time.Now().UTC()
	logs.Errorf("%s for order %d failed terminally, code: %d, msg: %s", req.Kind, req.ClientID, ack.Code, ack.Message)
	switch req.Kind {
	case schema.ActionPlace:
		if _, err := g.store.UpsertOrder(schema.OrderUpdate{
			ClientID:     req.ClientID,
			InstrumentID: req.InstrumentID,
			Status:       schema.OrderStatusRejected,
			Side:         req.Side,
			Seq:          2,
			Ts:           now.UnixNano(),
		}); err != nil {
			logs.Errorf("mark order %d rejected, err: %+v", req.ClientID, err)
		}
	case schema.ActionAmend, schema.ActionCancel:
		if err := g.store.RevertPending(req.ClientID, now.UnixNano()); err != nil {
			logs.Errorf("revert pending order %d, err: %+v", req.ClientID, err)
		}
	}
	g.finish(req, schema.ActionResult{
		RequestID:  req.RequestID,
		ClientID:   req.ClientID,
		ExchangeID: ack.ExchangeID,
		Outcome:    schema.OutcomeFailedTerminal,
		Code:       ack.Code,
	})
}

// requeryBatch handles a dispatch timeout: each action is re-queried once
// by id, and only actions whose fate stays unknown are retried. This is
// what keeps a timed-out place from creating a duplicate order.
func (g *Gateway) requeryBatch(ctx context.Context, j job) {
	retry := j.reqs[:0:0]
	for _, req := range j.reqs {
		state, err := g.trader.Query(ctx, req.ClientID)
		if err != nil {
			logs.Infof("requery order %d, err: %+v", req.ClientID, err)
			retry = append(retry, req)
			continue
		}
		if !state.Known {
			if req.Kind == schema.ActionPlace {
				// The venue never saw the order; safe to redispatch
				// under the same client id.
				retry = append(retry, req)
				continue
			}
			// Amend or cancel target vanished; put the order back to
			// live so the terminal push can transition it.
			if err := g.store.RevertPending(req.ClientID, time.Now().UTC().UnixNano()); err != nil {
				logs.Infof("revert pending order %d after requery, err: %+v", req.ClientID, err)
			}
			g.finish(req, schema.ActionResult{
				RequestID: req.RequestID,
				ClientID:  req.ClientID,
				Outcome:   schema.OutcomeTimedOut,
			})
			continue
		}
		if _, err := g.store.UpsertOrder(state.Update); err != nil {
			logs.Infof("apply requeried state for order %d, err: %+v", req.ClientID, err)
		}
		g.finish(req, schema.ActionResult{
			RequestID:  req.RequestID,
			ClientID:   req.ClientID,
			ExchangeID: state.Update.ExchangeID,
			Outcome:    schema.OutcomeTimedOut,
		})
	}
	if len(retry) > 0 {
		g.retryBatch(ctx, j.kind, retry, j.attempt)
	}
}

// retryBatch redispatches retryable failures with backoff until the
// attempt budget runs out.
func (g *Gateway) retryBatch(ctx context.Context, kind schema.ActionKind, reqs []schema.ActionRequest, attempt int) {
	if attempt >= g.cfg.MaxAttempts {
		for _, req := range reqs {
			g.resolveTerminal(req, venue.Ack{Message: "retry budget exhausted"})
		}
		return
	}
	if err := g.cfg.Retry.Sleep(ctx, attempt); err != nil {
		g.resolveAll(job{kind: kind, reqs: reqs}, schema.OutcomeTimedOut, 0)
		return
	}
	g.metrics.IncOutcome(schema.OutcomeFailedRetryable)
	g.dispatch(ctx, job{kind: kind, reqs: reqs, attempt: attempt + 1})
}

func (g *Gateway) resolveAll(j job, outcome schema.ActionOutcome, code uint32) {
	for _, req := range j.reqs {
		g.finish(req, schema.ActionResult{
			RequestID: req.RequestID,
			ClientID:  req.ClientID,
			Outcome:   outcome,
			Code:      code,
		})
	}
}

// finish clears the flight and reports the result.
func (g *Gateway) finish(req schema.ActionRequest, result schema.ActionResult) {
	now := time.Now().UTC().UnixNano()
	result.Ts = now

	g.mu.Lock()
	fl, ok := g.inFlight[req.ClientID]
	if ok {
		delete(g.inFlight, req.ClientID)
	}
	g.mu.Unlock()

	if ok {
		g.metrics.ObserveAck(time.Duration(now - fl.dispatched))
	}
	g.metrics.IncOutcome(result.Outcome)
	if g.hooks.Result != nil {
		g.hooks.Result(req, result)
	}
}

// ShutdownCancelAll issues a best-effort cancel for every open order and
// returns how many cancels went out. Venue failures are logged, not
// retried; the process is exiting.
func (g *Gateway) ShutdownCancelAll(ctx context.Context) int {
	open := g.store.OpenOrders()
	now := time.Now().UTC().UnixNano()
	reqs := make([]schema.ActionRequest, 0, len(open))
	for _, ord := range open {
		req := schema.ActionRequest{
			RequestID:    g.ids.Next(),
			ClientID:     ord.ClientID,
			InstrumentID: uint32(ord.InstrumentID),
			Kind:         schema.ActionCancel,
			Side:         ord.Side,
			Price:        ord.Price,
			Ts:           now,
		}
		g.metrics.IncAction(schema.ActionCancel)
		if g.hooks.Request != nil {
			g.hooks.Request(req)
		}
		reqs = append(reqs, req)
	}

	for _, chunk := range venue.Chunk(reqs) {
		acks, err := g.trader.Cancel(ctx, chunk)
		if err != nil {
			logs.Errorf("shutdown cancel batch of %d, err: %+v", len(chunk), err)
			continue
		}
		for i, ack := range acks {
			if i >= len(chunk) {
				break
			}
			if ack.Outcome == schema.OutcomeFailedTerminal || ack.Outcome == schema.OutcomeFailedRetryable {
				logs.Errorf("shutdown cancel order %d, code: %d, msg: %s", chunk[i].ClientID, ack.Code, ack.Message)
				continue
			}
			if err := g.store.MarkCanceled(chunk[i].ClientID, time.Now().UTC().UnixNano()); err != nil {
				logs.Infof("mark order %d canceled, err: %+v", chunk[i].ClientID, err)
			}
		}
	}
	return len(reqs)
}
