package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/book"
	"main/internal/schema"
)

func simInstrument() schema.Instrument {
	return schema.Instrument{
		ID:       3,
		Name:     "ETH-USDT",
		TickSize: 25,
		LotSize:  10,
		MinSize:  10,
	}
}

type pushRecorder struct {
	mu      sync.Mutex
	updates []schema.OrderUpdate
}

func (r *pushRecorder) OnOrder(u schema.OrderUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *pushRecorder) OnPosition(schema.PositionUpdate) {}

func (r *pushRecorder) OnBalance(schema.BalanceUpdate) {}

func (r *pushRecorder) last(t *testing.T) schema.OrderUpdate {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.updates)
	return r.updates[len(r.updates)-1]
}

func placeReq(clientID uint64, side schema.Side, price schema.Price, size schema.Quantity) schema.ActionRequest {
	return schema.ActionRequest{
		ClientID:     clientID,
		InstrumentID: 3,
		Kind:         schema.ActionPlace,
		Side:         side,
		Price:        price,
		Size:         size,
	}
}

func TestVenueFillAveragesPrice(t *testing.T) {
	v := New(simInstrument())
	rec := &pushRecorder{}
	v.SetHandler(rec)

	acks, err := v.Place(t.Context(), []schema.ActionRequest{placeReq(7, schema.SideBuy, 100, 40)})
	require.NoError(t, err)
	require.Len(t, acks, 1)
	assert.Equal(t, schema.OutcomeAcked, acks[0].Outcome)
	assert.NotZero(t, acks[0].ExchangeID)

	require.NoError(t, v.Fill(7, 20, 100))
	partial := rec.last(t)
	assert.Equal(t, schema.OrderStatusLive, partial.Status)
	assert.Equal(t, schema.Quantity(20), partial.Filled)
	assert.Equal(t, schema.Price(100), partial.AvgPrice)

	require.NoError(t, v.Fill(7, 20, 102))
	full := rec.last(t)
	assert.Equal(t, schema.OrderStatusFilled, full.Status)
	assert.Zero(t, full.Remaining)
	assert.Equal(t, schema.Price(101), full.AvgPrice)
	assert.Zero(t, v.OpenOrders())
}

func TestVenueAmendRules(t *testing.T) {
	v := New(simInstrument())
	v.SetHandler(&pushRecorder{})

	_, err := v.Place(t.Context(), []schema.ActionRequest{placeReq(1, schema.SideSell, 200, 40)})
	require.NoError(t, err)

	acks, err := v.Amend(t.Context(), []schema.ActionRequest{{
		ClientID: 1, Kind: schema.ActionAmend, Price: 225, Size: 40,
	}})
	require.NoError(t, err)
	assert.Equal(t, schema.OutcomeAcked, acks[0].Outcome)

	require.NoError(t, v.Fill(1, 20, 225))
	acks, err = v.Amend(t.Context(), []schema.ActionRequest{{
		ClientID: 1, Kind: schema.ActionAmend, Size: 20,
	}})
	require.NoError(t, err)
	assert.Equal(t, schema.OutcomeFailedTerminal, acks[0].Outcome)
	assert.Equal(t, uint32(51506), acks[0].Code)

	acks, err = v.Amend(t.Context(), []schema.ActionRequest{{
		ClientID: 99, Kind: schema.ActionAmend, Price: 225,
	}})
	require.NoError(t, err)
	assert.Equal(t, uint32(51503), acks[0].Code)
}

func TestVenueDuplicateClientID(t *testing.T) {
	v := New(simInstrument())
	v.SetHandler(&pushRecorder{})

	_, err := v.Place(t.Context(), []schema.ActionRequest{placeReq(5, schema.SideBuy, 100, 10)})
	require.NoError(t, err)
	acks, err := v.Place(t.Context(), []schema.ActionRequest{placeReq(5, schema.SideBuy, 100, 10)})
	require.NoError(t, err)
	assert.Equal(t, schema.OutcomeFailedTerminal, acks[0].Outcome)
	assert.Equal(t, uint32(51008), acks[0].Code)
	assert.Equal(t, 1, v.OpenOrders())
}

func TestMatchBookFillsCrossedOrders(t *testing.T) {
	v := New(simInstrument())
	rec := &pushRecorder{}
	v.SetHandler(rec)

	_, err := v.Place(t.Context(), []schema.ActionRequest{
		placeReq(1, schema.SideBuy, 100, 10),
		placeReq(2, schema.SideSell, 110, 10),
	})
	require.NoError(t, err)

	// Neither side crossed, nothing fills.
	v.MatchBook(99, 111)
	assert.Equal(t, 2, v.OpenOrders())

	// Both sides crossed, fills happen at the orders' own prices.
	v.MatchBook(112, 99)
	assert.Zero(t, v.OpenOrders())

	rec.mu.Lock()
	prices := map[uint64]schema.Price{}
	for _, u := range rec.updates {
		if u.Status == schema.OrderStatusFilled {
			prices[u.ClientID] = u.AvgPrice
		}
	}
	rec.mu.Unlock()
	assert.Equal(t, schema.Price(100), prices[1])
	assert.Equal(t, schema.Price(110), prices[2])
}

type bookCollector struct {
	mu        sync.Mutex
	store     *book.Store
	snapshots int
	deltas    int
	trades    int
	failures  []error
}

func (c *bookCollector) OnBook(u schema.BookUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u.IsSnapshot() {
		c.store.ApplySnapshot(u)
		c.snapshots++
	} else {
		if err := c.store.ApplyDelta(u); err != nil {
			c.failures = append(c.failures, err)
			return
		}
		c.deltas++
	}
	if err := c.store.VerifyChecksum(u.Checksum); err != nil {
		c.failures = append(c.failures, err)
	}
}

func (c *bookCollector) OnTrade(schema.Trade) {
	c.mu.Lock()
	c.trades++
	c.mu.Unlock()
}

func TestFeedSnapshotDeltaStream(t *testing.T) {
	inst := simInstrument()
	feed := NewFeed(inst, 10_000, time.Millisecond, 42)
	col := &bookCollector{store: book.NewStore(inst)}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = feed.Run(ctx, col)
	}()

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, feed.Resubscribe(ctx, uint32(inst.ID)))
	time.Sleep(40 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-t.Context().Done():
		t.Fatal("feed did not stop")
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Empty(t, col.failures)
	assert.GreaterOrEqual(t, col.snapshots, 2)
	assert.GreaterOrEqual(t, col.deltas, 10)

	bidDepth, askDepth := col.store.Depth()
	assert.Equal(t, 5, bidDepth)
	assert.Equal(t, 5, askDepth)
}
