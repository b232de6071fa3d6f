package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/book"
	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/quote"
	"main/internal/schema"
	"main/internal/venue/sim"
)

type pushApplier struct {
	store *account.Store
}

func (p *pushApplier) OnOrder(u schema.OrderUpdate) {
	_, _ = p.store.UpsertOrder(u)
}

func (p *pushApplier) OnPosition(schema.PositionUpdate) {}

func (p *pushApplier) OnBalance(schema.BalanceUpdate) {}

func testInstrument() schema.Instrument {
	return schema.Instrument{
		ID:       1,
		Name:     "BTC-USDT",
		TickSize: 1,
		LotSize:  1,
		MinSize:  1,
	}
}

type harness struct {
	engine  *Engine
	venue   *sim.Venue
	books   *book.Store
	store   *account.Store
	metrics *obs.Metrics
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	inst := testInstrument()

	v := sim.New(inst)
	store := account.NewStore()
	v.SetHandler(&pushApplier{store: store})

	metrics := obs.NewMetrics()
	gw, err := gateway.New(gateway.Config{Workers: 1, QueueCap: 64}, v, store, obs.NewIDGen(1), metrics, gateway.Hooks{})
	require.NoError(t, err)
	go gw.Run(t.Context())

	quotes, err := quote.NewEngine(inst, quote.Params{
		Depth:        2,
		SpacingBps:   10,
		SizeMultiple: 1,
		MaxNetBuy:    100,
		MaxNetSell:   100,
	})
	require.NoError(t, err)

	books := book.NewStore(inst)
	return &harness{
		engine:  New(cfg, inst, books, store, quotes, gw, metrics),
		venue:   v,
		books:   books,
		store:   store,
		metrics: metrics,
	}
}

func (h *harness) syncBook() {
	h.books.ApplySnapshot(schema.BookUpdate{
		InstrumentID: 1,
		Flags:        schema.BookFlagSnapshot,
		Seq:          1,
		Ts:           time.Now().UTC().UnixNano(),
		Bids:         []schema.BookLevel{{Price: 26400, Size: 5}},
		Asks:         []schema.BookLevel{{Price: 26410, Size: 5}},
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestCycleSubmitsLadder(t *testing.T) {
	h := newHarness(t, Config{})
	h.syncBook()

	h.engine.cycle(t.Context())

	// depth 2 per side
	waitFor(t, func() bool { return h.venue.OpenOrders() == 4 })
}

func TestCycleSkipsWhenBookNotSynced(t *testing.T) {
	h := newHarness(t, Config{})

	h.engine.cycle(t.Context())

	require.Equal(t, uint64(1), h.metrics.Snapshot().SkippedCycles)
	places, _, _ := h.venue.Counts()
	require.Zero(t, places)
}

func TestCycleIsIdempotentWhenLadderMatches(t *testing.T) {
	h := newHarness(t, Config{})
	h.syncBook()

	h.engine.cycle(t.Context())
	waitFor(t, func() bool { return h.venue.OpenOrders() == 4 })
	waitFor(t, func() bool {
		open := 0
		for _, ord := range h.store.OpenOrders() {
			if ord.Status == schema.OrderStatusLive {
				open++
			}
		}
		return open == 4
	})

	h.engine.cycle(t.Context())
	time.Sleep(50 * time.Millisecond)

	places, amends, cancels := h.venue.Counts()
	require.Equal(t, 4, places)
	require.Zero(t, amends)
	require.Zero(t, cancels)
}

func TestStormWithdrawsAndCoolsOff(t *testing.T) {
	h := newHarness(t, Config{StormThreshold: 3, StormWindow: time.Minute, CoolOff: time.Minute})
	h.syncBook()

	h.engine.cycle(t.Context())
	waitFor(t, func() bool { return h.venue.OpenOrders() == 4 })
	waitFor(t, func() bool {
		open := 0
		for _, ord := range h.store.OpenOrders() {
			if ord.Status == schema.OrderStatusLive {
				open++
			}
		}
		return open == 4
	})

	for i := 0; i < 3; i++ {
		h.engine.ObserveResult(schema.ActionRequest{}, schema.ActionResult{Outcome: schema.OutcomeFailedTerminal})
	}

	// withdrawal cycle cancels everything resting
	h.engine.cycle(t.Context())
	require.Zero(t, h.venue.OpenOrders())

	// cool-off cycles place nothing
	before := h.metrics.Snapshot().SkippedCycles
	h.engine.cycle(t.Context())
	require.Equal(t, before+1, h.metrics.Snapshot().SkippedCycles)
	require.Zero(t, h.venue.OpenOrders())
}

func TestKickCoalesces(t *testing.T) {
	h := newHarness(t, Config{})
	h.engine.Kick()
	h.engine.Kick()
	h.engine.Kick()

	require.Len(t, h.engine.trigger, 1)
}
