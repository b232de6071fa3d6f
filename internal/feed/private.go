package feed

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/errors"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/backoff"
	"main/pkg/exception"
)

// PrivateConfig tunes the account-stream supervisor.
type PrivateConfig struct {
	QueueCap       int
	StaleAfter     time.Duration
	HealthInterval time.Duration
	Reconnect      backoff.Backoff
}

func (c PrivateConfig) withDefaults() PrivateConfig {
	if c.QueueCap <= 0 {
		c.QueueCap = 256
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 5 * time.Second
	}
	if c.Reconnect == (backoff.Backoff{}) {
		c.Reconnect = backoff.Default()
	}
	return c
}

// Private drives the authenticated account stream into the account
// store. Unlike market data, account events are never dropped: the
// producer blocks when the queue is full.
type Private struct {
	cfg     PrivateConfig
	feed    venue.PrivateFeed
	store   *account.Store
	queue   *bus.Queue
	metrics *obs.Metrics
	journal Journal

	state  state
	onFill func(schema.Fill)

	mu   sync.Mutex
	kick context.CancelFunc
}

// NewPrivate builds the account-stream supervisor.
func NewPrivate(cfg PrivateConfig, priv venue.PrivateFeed, store *account.Store, metrics *obs.Metrics, journal Journal) *Private {
	cfg = cfg.withDefaults()
	return &Private{
		cfg:     cfg,
		feed:    priv,
		store:   store,
		queue:   bus.NewQueue(cfg.QueueCap),
		metrics: metrics,
		journal: journal,
	}
}

// State reports the current reconnect phase.
func (p *Private) State() State {
	return p.state.get()
}

// OnFill registers a callback for fill deltas derived from applied
// order updates. Set before Run; it fires on the apply goroutine.
func (p *Private) OnFill(fn func(schema.Fill)) {
	p.onFill = fn
}

// Run blocks until the context ends. Each connection runs under its own
// cancelable context so the health check can force a reconnect when the
// stream goes quiet past the staleness threshold.
func (p *Private) Run(ctx context.Context) {
	go p.queue.Run(ctx, p.apply)
	go p.health(ctx)

	for attempt := 1; ctx.Err() == nil; attempt++ {
		p.state.set(StateConnecting)

		runCtx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.kick = cancel
		p.mu.Unlock()

		p.state.set(StateLive)
		err := p.feed.Run(runCtx, &privateHandler{p: p, ctx: runCtx})
		cancel()
		if ctx.Err() != nil {
			break
		}
		attemptBefore := attempt
		if err == nil || errors.Is(err, context.Canceled) {
			attempt = 0
		}
		p.state.set(StateDisconnected)
		p.metrics.IncReconnect()
		logs.Warnf("private feed disconnected, attempt: %d, err: %+v", attemptBefore, err)
		if err := p.cfg.Reconnect.Sleep(ctx, attemptBefore); err != nil {
			break
		}
	}
	p.state.set(StateDisconnected)
}

// Reconnect drops the current connection; Run re-establishes it.
func (p *Private) Reconnect() {
	p.mu.Lock()
	kick := p.kick
	p.mu.Unlock()
	if kick != nil {
		kick()
	}
}

func (p *Private) health(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.state.get() != StateLive {
				continue
			}
			stale := p.store.Staleness(time.Now().UTC().UnixNano())
			if stale > p.cfg.StaleAfter {
				logs.Warnf("private stream quiet for %s, reconnecting", stale)
				p.Reconnect()
			}
		}
	}
}

// apply is the single consumer of the private queue; per-stream order
// is exactly queue order.
func (p *Private) apply(e bus.Event) {
	p.metrics.ObserveEvent(e.Header)

	switch e.Header.Type {
	case schema.EventOrderUpdate:
		u, ok := codec.DecodeOrderUpdate(e.Payload)
		if !ok {
			logs.Errorf("decode order update failed, len: %d", len(e.Payload))
			return
		}
		res, err := p.store.UpsertOrder(u)
		if err != nil {
			if errors.Is(err, exception.ErrInvalidTransition) {
				// Venue model mismatch must never corrupt local state:
				// log it, drop it, keep running.
				p.metrics.IncInvalidTransition()
				logs.Warnf("drop order event for %d, status: %s, err: %+v", u.ClientID, u.Status, err)
				return
			}
			logs.Errorf("apply order event for %d, err: %+v", u.ClientID, err)
			return
		}
		if res.Applied && res.FillDelta > 0 {
			fill := schema.Fill{
				ClientID:     u.ClientID,
				ExchangeID:   u.ExchangeID,
				InstrumentID: u.InstrumentID,
				Side:         u.Side,
				Price:        u.AvgPrice,
				Qty:          res.FillDelta,
				Ts:           u.Ts,
			}
			journalAppend(p.journal, schema.NewHeader(schema.EventFill, schema.SourcePrivateFeed, u.Seq, u.Ts, time.Now().UTC().UnixNano()), codec.EncodeFill(nil, fill))
			if p.onFill != nil {
				p.onFill(fill)
			}
		}
	case schema.EventPositionUpdate:
		u, ok := codec.DecodePositionUpdate(e.Payload)
		if !ok {
			logs.Errorf("decode position update failed, len: %d", len(e.Payload))
			return
		}
		p.store.ApplyPosition(u)
	case schema.EventBalanceUpdate:
		u, ok := codec.DecodeBalanceUpdate(e.Payload)
		if !ok {
			logs.Errorf("decode balance update failed, len: %d", len(e.Payload))
			return
		}
		p.store.ApplyBalance(u)
	default:
	}
}

// privateHandler is the producer side: normalize, journal, enqueue.
// Publish blocks rather than lose an account event.
type privateHandler struct {
	p   *Private
	ctx context.Context
}

func (h *privateHandler) OnOrder(u schema.OrderUpdate) {
	header := schema.NewHeader(schema.EventOrderUpdate, schema.SourcePrivateFeed, u.Seq, u.Ts, time.Now().UTC().UnixNano())
	payload := codec.EncodeOrderUpdate(nil, u)
	journalAppend(h.p.journal, header, payload)
	if err := h.p.queue.Publish(h.ctx, bus.Event{Header: header, Payload: payload}); err != nil {
		h.p.metrics.IncQueueDrop()
	}
}

func (h *privateHandler) OnPosition(u schema.PositionUpdate) {
	header := schema.NewHeader(schema.EventPositionUpdate, schema.SourcePrivateFeed, u.Seq, u.Ts, time.Now().UTC().UnixNano())
	payload := codec.EncodePositionUpdate(nil, u)
	journalAppend(h.p.journal, header, payload)
	if err := h.p.queue.Publish(h.ctx, bus.Event{Header: header, Payload: payload}); err != nil {
		h.p.metrics.IncQueueDrop()
	}
}

func (h *privateHandler) OnBalance(u schema.BalanceUpdate) {
	header := schema.NewHeader(schema.EventBalanceUpdate, schema.SourcePrivateFeed, u.Seq, u.Ts, time.Now().UTC().UnixNano())
	payload := codec.EncodeBalanceUpdate(nil, u)
	journalAppend(h.p.journal, header, payload)
	if err := h.p.queue.Publish(h.ctx, bus.Event{Header: header, Payload: payload}); err != nil {
		h.p.metrics.IncQueueDrop()
	}
}

var _ venue.PrivateHandler = (*privateHandler)(nil)
