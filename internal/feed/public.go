package feed

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/book"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
	"main/pkg/backoff"
)

// PublicConfig tunes the market-data supervisor.
type PublicConfig struct {
	QueueCap       int
	StaleAfter     time.Duration
	HealthInterval time.Duration
	Reconnect      backoff.Backoff
	VerifyChecksum bool
}

func (c PublicConfig) withDefaults() PublicConfig {
	if c.QueueCap <= 0 {
		c.QueueCap = 1024
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = time.Second
	}
	if c.Reconnect == (backoff.Backoff{}) {
		c.Reconnect = backoff.Default()
	}
	return c
}

// Public drives one market-data stream into the book store. Producers
// use TryPublish and tolerate drops; a drop breaks delta continuity, so
// the sequence check forces a resync on the next event.
type Public struct {
	cfg     PublicConfig
	inst    schema.Instrument
	feed    venue.PublicFeed
	books   *book.Store
	queue   *bus.Queue
	metrics *obs.Metrics
	journal Journal

	// onChange fires after a top-of-book move, to trigger a reconcile
	// cycle without waiting for the timer. Nil is allowed.
	onChange func()

	state state
}

// NewPublic builds the market-data supervisor.
func NewPublic(cfg PublicConfig, inst schema.Instrument, pub venue.PublicFeed, books *book.Store, metrics *obs.Metrics, journal Journal, onChange func()) *Public {
	cfg = cfg.withDefaults()
	return &Public{
		cfg:      cfg,
		inst:     inst,
		feed:     pub,
		books:    books,
		queue:    bus.NewQueue(cfg.QueueCap),
		metrics:  metrics,
		journal:  journal,
		onChange: onChange,
	}
}

// State reports the current reconnect phase.
func (p *Public) State() State {
	return p.state.get()
}

// Run blocks until the context ends, reconnecting with backoff whenever
// the stream fails. Delta continuity is never assumed across reconnects:
// the book is invalidated and rebuilt from the next snapshot.
func (p *Public) Run(ctx context.Context) {
	go p.queue.Run(ctx, func(e bus.Event) { p.apply(ctx, e) })
	go p.health(ctx)

	for attempt := 1; ctx.Err() == nil; attempt++ {
		p.state.set(StateConnecting)
		p.books.Invalidate()

		err := p.feed.Run(ctx, &publicHandler{p: p, ctx: ctx})
		if ctx.Err() != nil {
			break
		}
		attemptBefore := attempt
		if err == nil {
			// Clean stream end still needs a fresh snapshot.
			attempt = 0
		}
		p.state.set(StateDisconnected)
		p.metrics.IncReconnect()
		logs.Warnf("public feed for %s disconnected, attempt: %d, err: %+v", p.inst.Name, attemptBefore, err)
		if err := p.cfg.Reconnect.Sleep(ctx, attemptBefore); err != nil {
			break
		}
	}
	p.state.set(StateDisconnected)
}

// Resync tears the book subscription down so the venue pushes a fresh
// snapshot. The book stays invalid until it arrives.
func (p *Public) Resync(ctx context.Context) {
	p.state.set(StateSyncing)
	p.books.Invalidate()
	p.metrics.IncResync()
	if err := p.feed.Resubscribe(ctx, uint32(p.inst.ID)); err != nil {
		logs.Errorf("resubscribe books for %s, err: %+v", p.inst.Name, err)
	}
}

// health watches book staleness on a ticker.
func (p *Public) health(ctx context.Context) {
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
			if p.books.Staleness(time.Now().UTC().UnixNano()) > p.cfg.StaleAfter {
				logs.Warnf("book for %s stale beyond %s, resyncing", p.inst.Name, p.cfg.StaleAfter)
				p.Resync(ctx)
			}
		}
	}
}

// apply is the single consumer of the market-data queue.
func (p *Public) apply(ctx context.Context, e bus.Event) {
	p.metrics.ObserveEvent(e.Header)

	switch e.Header.Type {
	case schema.EventBookSnapshot, schema.EventBookDelta:
		u, ok := codec.DecodeBookUpdate(e.Payload)
		if !ok {
			logs.Errorf("decode book update for %s failed, len: %d", p.inst.Name, len(e.Payload))
			return
		}
		p.applyBook(ctx, u)
	case schema.EventTrade:
		// Trades carry no book state; journaled at publish time.
	default:
	}
}

func (p *Public) applyBook(ctx context.Context, u schema.BookUpdate) {
	before := p.books.View()

	if u.IsSnapshot() {
		p.books.ApplySnapshot(u)
		p.state.set(StateLive)
	} else {
		if !p.books.Synced() {
			// Waiting for the post-resync snapshot; deltas from the old
			// stream are meaningless now.
			return
		}
		if u.Seq <= p.books.Seq() {
			p.books.CountDuplicate()
			return
		}
		if err := p.books.ApplyDelta(u); err != nil {
			logs.Warnf("book delta gap for %s, have: %d, got: %d", p.inst.Name, p.books.Seq(), u.Seq)
			p.Resync(ctx)
			return
		}
	}

	if p.cfg.VerifyChecksum && u.Checksum != 0 {
		if err := p.books.VerifyChecksum(u.Checksum); err != nil {
			p.metrics.IncChecksumFailure()
			logs.Warnf("book checksum mismatch for %s, seq: %d", p.inst.Name, u.Seq)
			p.Resync(ctx)
			return
		}
	}

	after := p.books.View()
	if p.onChange != nil && topMoved(before, after) {
		p.onChange()
	}
}

func topMoved(before, after book.View) bool {
	return before.HasBid != after.HasBid ||
		before.HasAsk != after.HasAsk ||
		before.BestBid.Price != after.BestBid.Price ||
		before.BestAsk.Price != after.BestAsk.Price
}

// publicHandler is the producer side: normalize, journal, enqueue.
type publicHandler struct {
	p   *Public
	ctx context.Context
}

func (h *publicHandler) OnBook(u schema.BookUpdate) {
	p := h.p
	eventType := schema.EventBookDelta
	if u.IsSnapshot() {
		eventType = schema.EventBookSnapshot
	}
	header := schema.NewHeader(eventType, schema.SourcePublicFeed, u.Seq, u.Ts, time.Now().UTC().UnixNano())
	payload := codec.EncodeBookUpdate(make([]byte, 0, codec.BookUpdateSize(u)), u)

	journalAppend(p.journal, header, payload)

	if err := p.queue.TryPublish(bus.Event{Header: header, Payload: payload}); err != nil {
		p.metrics.IncQueueDrop()
		if err == bus.ErrQueueFull {
			// A dropped delta breaks continuity; resync rather than let
			// the sequence check trip later.
			p.Resync(h.ctx)
		}
	}
}

func (h *publicHandler) OnTrade(t schema.Trade) {
	p := h.p
	header := schema.NewHeader(schema.EventTrade, schema.SourcePublicFeed, 0, t.Ts, time.Now().UTC().UnixNano())
	payload := codec.EncodeTrade(nil, t)

	journalAppend(p.journal, header, payload)

	if err := p.queue.TryPublish(bus.Event{Header: header, Payload: payload}); err != nil {
		p.metrics.IncQueueDrop()
	}
}

var _ venue.PublicHandler = (*publicHandler)(nil)
