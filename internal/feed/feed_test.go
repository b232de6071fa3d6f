package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/book"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
)

func testInstrument() schema.Instrument {
	return schema.Instrument{
		ID:       1,
		Name:     "BTC-USDT-SWAP",
		TickSize: 1,
		LotSize:  1,
		Scale:    schema.ScaleSpec{PriceScale: 1, QuantityScale: 0, NotionalScale: 2},
	}
}

// stubPublic records resubscriptions and never connects.
type stubPublic struct {
	resyncs atomic.Int64
}

func (s *stubPublic) Run(ctx context.Context, handler venue.PublicHandler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubPublic) Resubscribe(ctx context.Context, instrumentID uint32) error {
	s.resyncs.Add(1)
	return nil
}

func snapshot(seq uint64) schema.BookUpdate {
	return schema.BookUpdate{
		InstrumentID: 1,
		Flags:        schema.BookFlagSnapshot,
		Seq:          seq,
		Ts:           time.Now().UTC().UnixNano(),
		Bids:         []schema.BookLevel{{Price: 264414, Size: 2}},
		Asks:         []schema.BookLevel{{Price: 264945, Size: 2}},
	}
}

func delta(seq uint64, bids, asks []schema.BookLevel) schema.BookUpdate {
	return schema.BookUpdate{
		InstrumentID: 1,
		Seq:          seq,
		Ts:           time.Now().UTC().UnixNano(),
		Bids:         bids,
		Asks:         asks,
	}
}

func TestPublicSnapshotGoesLive(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	stub := &stubPublic{}
	p := NewPublic(PublicConfig{}, inst, stub, books, obs.NewMetrics(), nil, nil)

	require.Equal(t, StateDisconnected, p.State())
	p.applyBook(t.Context(), snapshot(10))
	require.Equal(t, StateLive, p.State())
	require.True(t, books.Synced())
	require.EqualValues(t, 10, books.Seq())
}

func TestPublicDeltaGapForcesResync(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	stub := &stubPublic{}
	p := NewPublic(PublicConfig{}, inst, stub, books, obs.NewMetrics(), nil, nil)

	ctx := t.Context()
	p.applyBook(ctx, snapshot(10))
	p.applyBook(ctx, delta(12, []schema.BookLevel{{Price: 264404, Size: 1}}, nil))

	require.Equal(t, StateSyncing, p.State())
	require.EqualValues(t, 1, stub.resyncs.Load())
	require.False(t, books.Synced())

	// Deltas from the stale stream are ignored until the snapshot lands.
	p.applyBook(ctx, delta(13, []schema.BookLevel{{Price: 264404, Size: 1}}, nil))
	require.Equal(t, StateSyncing, p.State())

	p.applyBook(ctx, snapshot(20))
	require.Equal(t, StateLive, p.State())
	require.EqualValues(t, 20, books.Seq())
}

func TestPublicDuplicateDeltaDropped(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	stub := &stubPublic{}
	p := NewPublic(PublicConfig{}, inst, stub, books, obs.NewMetrics(), nil, nil)

	ctx := t.Context()
	p.applyBook(ctx, snapshot(10))
	p.applyBook(ctx, delta(10, []schema.BookLevel{{Price: 1, Size: 1}}, nil))

	require.Equal(t, StateLive, p.State())
	require.EqualValues(t, 1, books.Duplicates())
	require.EqualValues(t, 0, stub.resyncs.Load())
}

func TestPublicChecksumMismatchForcesResync(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	stub := &stubPublic{}
	metrics := obs.NewMetrics()
	p := NewPublic(PublicConfig{VerifyChecksum: true}, inst, stub, books, metrics, nil, nil)

	ctx := t.Context()
	p.applyBook(ctx, snapshot(10))

	bad := delta(11, []schema.BookLevel{{Price: 264404, Size: 1}}, nil)
	bad.Checksum = 0xDEADBEEF
	p.applyBook(ctx, bad)

	require.Equal(t, StateSyncing, p.State())
	require.EqualValues(t, 1, stub.resyncs.Load())
	require.EqualValues(t, 1, metrics.Snapshot().ChecksumFailures)
}

func TestPublicTopMoveTriggersChange(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	var changes atomic.Int64
	p := NewPublic(PublicConfig{}, inst, &stubPublic{}, books, obs.NewMetrics(), nil, func() {
		changes.Add(1)
	})

	ctx := t.Context()
	p.applyBook(ctx, snapshot(10))
	require.EqualValues(t, 1, changes.Load())

	// Size-only refresh at the same top does not trigger a cycle.
	p.applyBook(ctx, delta(11, []schema.BookLevel{{Price: 264414, Size: 5}}, nil))
	require.EqualValues(t, 1, changes.Load())

	p.applyBook(ctx, delta(12, []schema.BookLevel{{Price: 264424, Size: 1}}, nil))
	require.EqualValues(t, 2, changes.Load())
}

func TestPublicQueueOverflowDrops(t *testing.T) {
	inst := testInstrument()
	books := book.NewStore(inst)
	stub := &stubPublic{}
	metrics := obs.NewMetrics()
	p := NewPublic(PublicConfig{QueueCap: 1}, inst, stub, books, metrics, nil, nil)

	h := &publicHandler{p: p, ctx: t.Context()}
	h.OnBook(snapshot(1))
	h.OnBook(delta(2, []schema.BookLevel{{Price: 1, Size: 1}}, nil))

	require.EqualValues(t, 1, metrics.Snapshot().QueueDrops)
	require.EqualValues(t, 1, stub.resyncs.Load())
}

func TestPrivateInvalidTransitionDropped(t *testing.T) {
	store := account.NewStore()
	metrics := obs.NewMetrics()
	p := NewPrivate(PrivateConfig{}, nil, store, metrics, nil)

	require.NoError(t, store.Track(account.Order{
		ClientID: 7,
		Side:     schema.SideBuy,
		Price:    264414,
		Size:     2,
		Status:   schema.OrderStatusLive,
	}))

	// canceled -> live is not a valid transition; the event must be
	// logged and dropped without corrupting the store.
	p.apply(busEvent(t, schema.OrderUpdate{
		ClientID: 7,
		Status:   schema.OrderStatusCanceled,
		Side:     schema.SideBuy,
		Seq:      5,
		Ts:       1,
	}))
	p.apply(busEvent(t, schema.OrderUpdate{
		ClientID: 7,
		Status:   schema.OrderStatusLive,
		Side:     schema.SideBuy,
		Seq:      6,
		Ts:       2,
	}))

	require.EqualValues(t, 1, metrics.Snapshot().InvalidTransitions)
	got, ok := store.Order(7)
	require.True(t, ok)
	require.Equal(t, schema.OrderStatusCanceled, got.Status)
}

func busEvent(t *testing.T, u schema.OrderUpdate) bus.Event {
	t.Helper()
	return bus.Event{
		Header:  schema.NewHeader(schema.EventOrderUpdate, schema.SourcePrivateFeed, u.Seq, u.Ts, u.Ts),
		Payload: codec.EncodeOrderUpdate(nil, u),
	}
}
