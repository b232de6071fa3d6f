// Package book maintains a local replica of one instrument's
// depth-of-book from a stream of snapshot and delta updates.
package book

import (
	"sort"
	"sync"
	"time"

	"main/internal/schema"
	"main/pkg/exception"
)

// View is a consistent top-of-book snapshot for readers.
type View struct {
	BestBid schema.BookLevel
	BestAsk schema.BookLevel
	HasBid  bool
	HasAsk  bool
	Seq     uint64
	Ts      int64
}

// Store is the order book for a single instrument. All mutations happen
// under one mutex; readers only see fully applied updates.
type Store struct {
	mu    sync.Mutex
	inst  schema.Instrument
	bids  []schema.BookLevel
	asks  []schema.BookLevel
	seq   uint64
	ts    int64
	valid bool

	duplicates uint64
}

// NewStore creates an empty, unsynced store.
func NewStore(inst schema.Instrument) *Store {
	return &Store{inst: inst}
}

// Instrument returns the instrument this store replicates.
func (s *Store) Instrument() schema.Instrument {
	return s.inst
}

// ApplySnapshot replaces both sides atomically and resets the sequence
// counter to the snapshot's.
func (s *Store) ApplySnapshot(u schema.BookUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bids = s.bids[:0]
	s.asks = s.asks[:0]
	for _, row := range u.Bids {
		if row.Size > 0 {
			s.bids = append(s.bids, row)
		}
	}
	for _, row := range u.Asks {
		if row.Size > 0 {
			s.asks = append(s.asks, row)
		}
	}
	sort.Slice(s.bids, func(i, j int) bool { return s.bids[i].Price > s.bids[j].Price })
	sort.Slice(s.asks, func(i, j int) bool { return s.asks[i].Price < s.asks[j].Price })

	s.seq = u.Seq
	s.ts = u.Ts
	s.valid = true
}

// ApplyDelta applies one incremental update. The update's sequence must
// be exactly one greater than the stored sequence; anything else
// returns ErrOutOfOrderUpdate and the caller must resync from a fresh
// snapshot. Duplicate filtering happens upstream (see Seq).
func (s *Store) ApplyDelta(u schema.BookUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid || u.Seq != s.seq+1 {
		return exception.ErrOutOfOrderUpdate
	}

	for _, row := range u.Bids {
		s.applyBid(row)
	}
	for _, row := range u.Asks {
		s.applyAsk(row)
	}

	s.seq = u.Seq
	s.ts = u.Ts
	return nil
}

// applyBid sets, replaces or removes a bid level. A bid at or above the
// best ask consumes the crossed ask levels, keeping the book uncrossed.
func (s *Store) applyBid(row schema.BookLevel) {
	idx := sort.Search(len(s.bids), func(i int) bool { return s.bids[i].Price <= row.Price })
	if row.Size == 0 {
		if idx < len(s.bids) && s.bids[idx].Price == row.Price {
			s.bids = append(s.bids[:idx], s.bids[idx+1:]...)
		}
		return
	}

	for len(s.asks) > 0 && s.asks[0].Price <= row.Price {
		s.asks = s.asks[1:]
	}

	if idx < len(s.bids) && s.bids[idx].Price == row.Price {
		s.bids[idx].Size = row.Size
		return
	}
	s.bids = append(s.bids, schema.BookLevel{})
	copy(s.bids[idx+1:], s.bids[idx:])
	s.bids[idx] = row
}

// applyAsk mirrors applyBid for the ask side.
func (s *Store) applyAsk(row schema.BookLevel) {
	idx := sort.Search(len(s.asks), func(i int) bool { return s.asks[i].Price >= row.Price })
	if row.Size == 0 {
		if idx < len(s.asks) && s.asks[idx].Price == row.Price {
			s.asks = append(s.asks[:idx], s.asks[idx+1:]...)
		}
		return
	}

	for len(s.bids) > 0 && s.bids[0].Price >= row.Price {
		s.bids = s.bids[1:]
	}

	if idx < len(s.asks) && s.asks[idx].Price == row.Price {
		s.asks[idx].Size = row.Size
		return
	}
	s.asks = append(s.asks, schema.BookLevel{})
	copy(s.asks[idx+1:], s.asks[idx:])
	s.asks[idx] = row
}

// BestBid returns the top bid level, or ErrBookEmpty.
func (s *Store) BestBid() (schema.BookLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid || len(s.bids) == 0 {
		return schema.BookLevel{}, exception.ErrBookEmpty
	}
	return s.bids[0], nil
}

// BestAsk returns the top ask level, or ErrBookEmpty.
func (s *Store) BestAsk() (schema.BookLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid || len(s.asks) == 0 {
		return schema.BookLevel{}, exception.ErrBookEmpty
	}
	return s.asks[0], nil
}

// Mid returns the mid price floored to tick, or ErrBookEmpty when
// either side has no levels.
func (s *Store) Mid() (schema.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid || len(s.bids) == 0 || len(s.asks) == 0 {
		return 0, exception.ErrBookEmpty
	}
	mid := (int64(s.bids[0].Price) + int64(s.asks[0].Price)) / 2
	if tick := int64(s.inst.TickSize); tick > 0 {
		mid -= mid % tick
	}
	return schema.Price(mid), nil
}

// View returns a consistent top-of-book snapshot.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{Seq: s.seq, Ts: s.ts}
	if !s.valid {
		return v
	}
	if len(s.bids) > 0 {
		v.BestBid = s.bids[0]
		v.HasBid = true
	}
	if len(s.asks) > 0 {
		v.BestAsk = s.asks[0]
		v.HasAsk = true
	}
	return v
}

// Seq returns the last applied sequence. Callers use it to drop
// duplicate deltas (sequence <= Seq) before ApplyDelta.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Synced reports whether a snapshot has been applied since the last
// Invalidate.
func (s *Store) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// Invalidate marks the book unusable until the next snapshot. Readers
// get ErrBookEmpty in the meantime.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}

// CountDuplicate records an upstream duplicate drop.
func (s *Store) CountDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates++
}

// Duplicates returns the number of duplicate deltas dropped upstream.
func (s *Store) Duplicates() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicates
}

// Staleness reports the time since the last applied update.
func (s *Store) Staleness(now int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ts == 0 {
		return 0
	}
	return time.Duration(now - s.ts)
}

// Depth returns the current number of bid and ask levels.
func (s *Store) Depth() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bids), len(s.asks)
}
