package book

import (
	"errors"
	"testing"

	"main/internal/schema"
	"main/pkg/exception"
)

func testInstrument() schema.Instrument {
	return schema.Instrument{
		ID:       1,
		Name:     "BTC-USDT-SWAP",
		TickSize: 1,
		LotSize:  10,
		Scale:    schema.ScaleSpec{PriceScale: 1, QuantityScale: 1},
	}
}

func snapshot(seq uint64, bids, asks []schema.BookLevel) schema.BookUpdate {
	return schema.BookUpdate{
		InstrumentID: 1,
		Flags:        schema.BookFlagSnapshot,
		Seq:          seq,
		Ts:           int64(seq) * 1000,
		Bids:         bids,
		Asks:         asks,
	}
}

func delta(seq uint64, bids, asks []schema.BookLevel) schema.BookUpdate {
	return schema.BookUpdate{
		InstrumentID: 1,
		Seq:          seq,
		Ts:           int64(seq) * 1000,
		Bids:         bids,
		Asks:         asks,
	}
}

func TestSnapshotThenDeltas(t *testing.T) {
	s := NewStore(testInstrument())
	s.ApplySnapshot(snapshot(10,
		[]schema.BookLevel{{Price: 264414, Size: 20}, {Price: 264413, Size: 10}},
		[]schema.BookLevel{{Price: 264945, Size: 10}, {Price: 264946, Size: 30}},
	))

	bid, err := s.BestBid()
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if bid.Price != 264414 || bid.Size != 20 {
		t.Fatalf("best bid = %+v", bid)
	}

	// replace best bid size, add a deeper ask, remove second bid
	if err := s.ApplyDelta(delta(11,
		[]schema.BookLevel{{Price: 264414, Size: 25}, {Price: 264413, Size: 0}},
		[]schema.BookLevel{{Price: 264950, Size: 5}},
	)); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}

	bid, err = s.BestBid()
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if bid.Price != 264414 || bid.Size != 25 {
		t.Fatalf("best bid after delta = %+v", bid)
	}
	nBids, nAsks := s.Depth()
	if nBids != 1 || nAsks != 3 {
		t.Fatalf("depth = %d/%d, want 1/3", nBids, nAsks)
	}
	if s.Seq() != 11 {
		t.Fatalf("seq = %d, want 11", s.Seq())
	}
}

func TestDeltaGapFails(t *testing.T) {
	s := NewStore(testInstrument())
	s.ApplySnapshot(snapshot(10, []schema.BookLevel{{Price: 100, Size: 1}}, []schema.BookLevel{{Price: 101, Size: 1}}))

	err := s.ApplyDelta(delta(12, nil, nil))
	if !errors.Is(err, exception.ErrOutOfOrderUpdate) {
		t.Fatalf("gap delta err = %v, want ErrOutOfOrderUpdate", err)
	}
	// duplicate of the stored sequence is also not the successor
	err = s.ApplyDelta(delta(10, nil, nil))
	if !errors.Is(err, exception.ErrOutOfOrderUpdate) {
		t.Fatalf("duplicate delta err = %v, want ErrOutOfOrderUpdate", err)
	}
	// applying before any snapshot fails too
	fresh := NewStore(testInstrument())
	if err := fresh.ApplyDelta(delta(1, nil, nil)); !errors.Is(err, exception.ErrOutOfOrderUpdate) {
		t.Fatalf("unsynced delta err = %v, want ErrOutOfOrderUpdate", err)
	}
}

func TestBookNeverCrosses(t *testing.T) {
	s := NewStore(testInstrument())
	s.ApplySnapshot(snapshot(1,
		[]schema.BookLevel{{Price: 100, Size: 1}, {Price: 99, Size: 1}},
		[]schema.BookLevel{{Price: 101, Size: 1}, {Price: 102, Size: 1}},
	))

	// a bid that crosses the best ask consumes it
	if err := s.ApplyDelta(delta(2, []schema.BookLevel{{Price: 101, Size: 3}}, nil)); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	assertUncrossed(t, s)
	bid, _ := s.BestBid()
	if bid.Price != 101 {
		t.Fatalf("best bid = %+v, want price 101", bid)
	}
	ask, err := s.BestAsk()
	if err != nil {
		t.Fatalf("BestAsk: %v", err)
	}
	if ask.Price != 102 {
		t.Fatalf("best ask = %+v, want price 102", ask)
	}

	// an ask that crosses the best bid consumes it
	if err := s.ApplyDelta(delta(3, nil, []schema.BookLevel{{Price: 100, Size: 2}})); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	assertUncrossed(t, s)
	ask, _ = s.BestAsk()
	if ask.Price != 100 {
		t.Fatalf("best ask = %+v, want price 100", ask)
	}
}

func assertUncrossed(t *testing.T, s *Store) {
	t.Helper()
	bid, bidErr := s.BestBid()
	ask, askErr := s.BestAsk()
	if bidErr != nil || askErr != nil {
		return
	}
	if bid.Price >= ask.Price {
		t.Fatalf("book crossed: bid %d >= ask %d", bid.Price, ask.Price)
	}
}

func TestMidFloorsToTick(t *testing.T) {
	inst := testInstrument()
	inst.TickSize = 10
	s := NewStore(inst)
	s.ApplySnapshot(snapshot(1,
		[]schema.BookLevel{{Price: 100, Size: 1}},
		[]schema.BookLevel{{Price: 115, Size: 1}},
	))
	mid, err := s.Mid()
	if err != nil {
		t.Fatalf("Mid: %v", err)
	}
	// (100+115)/2 = 107, floored to tick 10
	if mid != 100 {
		t.Fatalf("mid = %d, want 100", mid)
	}
}

func TestEmptyAndInvalidate(t *testing.T) {
	s := NewStore(testInstrument())
	if _, err := s.BestBid(); !errors.Is(err, exception.ErrBookEmpty) {
		t.Fatalf("empty BestBid err = %v", err)
	}
	if _, err := s.Mid(); !errors.Is(err, exception.ErrBookEmpty) {
		t.Fatalf("empty Mid err = %v", err)
	}

	s.ApplySnapshot(snapshot(1, []schema.BookLevel{{Price: 100, Size: 1}}, nil))
	if _, err := s.BestBid(); err != nil {
		t.Fatalf("BestBid after snapshot: %v", err)
	}
	if _, err := s.Mid(); !errors.Is(err, exception.ErrBookEmpty) {
		t.Fatalf("one-sided Mid err = %v", err)
	}

	s.Invalidate()
	if s.Synced() {
		t.Fatalf("store still synced after Invalidate")
	}
	if _, err := s.BestBid(); !errors.Is(err, exception.ErrBookEmpty) {
		t.Fatalf("invalidated BestBid err = %v", err)
	}
}

func TestViewConsistency(t *testing.T) {
	s := NewStore(testInstrument())
	v := s.View()
	if v.HasBid || v.HasAsk {
		t.Fatalf("empty view = %+v", v)
	}
	s.ApplySnapshot(snapshot(5,
		[]schema.BookLevel{{Price: 100, Size: 2}},
		[]schema.BookLevel{{Price: 103, Size: 4}},
	))
	v = s.View()
	if !v.HasBid || !v.HasAsk || v.Seq != 5 {
		t.Fatalf("view = %+v", v)
	}
	if v.BestBid.Price != 100 || v.BestAsk.Price != 103 {
		t.Fatalf("view top = %+v", v)
	}
}

func TestChecksumStability(t *testing.T) {
	build := func() *Store {
		s := NewStore(testInstrument())
		s.ApplySnapshot(snapshot(1,
			[]schema.BookLevel{{Price: 264414, Size: 20}, {Price: 264413, Size: 10}},
			[]schema.BookLevel{{Price: 264945, Size: 10}, {Price: 264946, Size: 30}},
		))
		return s
	}

	a := build()
	b := build()
	if a.Checksum() != b.Checksum() {
		t.Fatalf("identical books disagree: %d vs %d", a.Checksum(), b.Checksum())
	}
	if err := a.VerifyChecksum(b.Checksum()); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}

	// a changed level must change the checksum
	if err := b.ApplyDelta(delta(2, []schema.BookLevel{{Price: 264414, Size: 21}}, nil)); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if a.Checksum() == b.Checksum() {
		t.Fatalf("changed book kept checksum %d", a.Checksum())
	}
	if err := a.VerifyChecksum(b.Checksum()); !errors.Is(err, exception.ErrChecksumMismatch) {
		t.Fatalf("VerifyChecksum mismatch err = %v", err)
	}

	// a book rebuilt from deltas matches the same book from a snapshot
	c := NewStore(testInstrument())
	c.ApplySnapshot(snapshot(1,
		[]schema.BookLevel{{Price: 264413, Size: 10}},
		[]schema.BookLevel{{Price: 264945, Size: 10}, {Price: 264946, Size: 30}},
	))
	if err := c.ApplyDelta(delta(2, []schema.BookLevel{{Price: 264414, Size: 20}}, nil)); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if a.Checksum() != c.Checksum() {
		t.Fatalf("snapshot vs delta built books disagree: %d vs %d", a.Checksum(), c.Checksum())
	}
}

func TestStaleness(t *testing.T) {
	s := NewStore(testInstrument())
	if d := s.Staleness(1_000_000); d != 0 {
		t.Fatalf("staleness before any update = %v", d)
	}
	s.ApplySnapshot(schema.BookUpdate{Seq: 1, Ts: 1_000, Bids: []schema.BookLevel{{Price: 1, Size: 1}}})
	if d := s.Staleness(61_000); d != 60_000 {
		t.Fatalf("staleness = %v, want 60000", d)
	}
}
