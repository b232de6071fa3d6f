package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"main/internal/book"
	"main/internal/schema"
	"main/internal/venue"
)

const feedDepth = 5

// Feed synthesizes a random-walk order book as a venue.PublicFeed.
// Updates go out as proper snapshot-then-delta streams with checksums,
// so the consuming side runs exactly the code a live venue would hit.
type Feed struct {
	mu       sync.Mutex
	inst     schema.Instrument
	mid      schema.Price
	interval time.Duration
	seq      uint64
	rng      *rand.Rand
	resync   bool

	shadow *book.Store
	levels map[schema.Price]schema.Quantity // bids and asks share the map, sides never overlap
}

// NewFeed creates a feed walking around the start price. The seed makes
// runs reproducible.
func NewFeed(inst schema.Instrument, start schema.Price, interval time.Duration, seed int64) *Feed {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Feed{
		inst:     inst,
		mid:      start,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		shadow:   book.NewStore(inst),
		levels:   make(map[schema.Price]schema.Quantity),
		resync:   true,
	}
}

// Resubscribe forces the next emission to be a fresh snapshot.
func (f *Feed) Resubscribe(ctx context.Context, instrumentID uint32) error {
	f.mu.Lock()
	f.resync = true
	f.mu.Unlock()
	return nil
}

// Run emits book updates until the context ends.
func (f *Feed) Run(ctx context.Context, handler venue.PublicHandler) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			update, trade := f.step()
			handler.OnBook(update)
			if trade != nil {
				handler.OnTrade(*trade)
			}
		}
	}
}

// step advances the walk one tick and builds the next update.
func (f *Feed) step() (schema.BookUpdate, *schema.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tick := f.inst.TickSize
	// Walk the mid up to three ticks either way.
	f.mid += schema.Price(int64(f.rng.Intn(7)-3) * int64(tick))
	floor := schema.Price(int64(feedDepth+1) * int64(tick))
	if f.mid < floor {
		f.mid = floor
	}

	bids, asks := f.ladder()
	now := time.Now().UTC().UnixNano()
	f.seq++

	var update schema.BookUpdate
	if f.resync {
		f.resync = false
		f.levels = make(map[schema.Price]schema.Quantity)
		for _, lv := range bids {
			f.levels[lv.Price] = lv.Size
		}
		for _, lv := range asks {
			f.levels[-lv.Price] = lv.Size
		}
		update = schema.BookUpdate{
			InstrumentID: uint32(f.inst.ID),
			Flags:        schema.BookFlagSnapshot,
			Seq:          f.seq,
			Ts:           now,
			Bids:         bids,
			Asks:         asks,
		}
		f.shadow = book.NewStore(f.inst)
		f.shadow.ApplySnapshot(update)
	} else {
		update = schema.BookUpdate{
			InstrumentID: uint32(f.inst.ID),
			Seq:          f.seq,
			Ts:           now,
			Bids:         f.diffSide(bids, false),
			Asks:         f.diffSide(asks, true),
		}
		if err := f.shadow.ApplyDelta(update); err != nil {
			// Shadow fell out of step; resnapshot next round.
			f.resync = true
		}
	}
	update.Checksum = f.shadow.Checksum()

	var trade *schema.Trade
	if f.rng.Intn(4) == 0 {
		trade = &schema.Trade{
			InstrumentID: uint32(f.inst.ID),
			Side:         schema.Side(f.rng.Intn(2) + 1),
			Price:        f.mid,
			Size:         f.inst.LotSize,
			Ts:           now,
		}
	}
	return update, trade
}

// ladder builds both sides around the current mid.
func (f *Feed) ladder() (bids, asks []schema.BookLevel) {
	tick := int64(f.inst.TickSize)
	lot := int64(f.inst.LotSize)
	for i := 0; i < feedDepth; i++ {
		qty := schema.Quantity(lot * int64(1+f.rng.Intn(5)))
		bids = append(bids, schema.BookLevel{
			Price: f.mid - schema.Price(tick*int64(i+1)),
			Size:  qty,
		})
		asks = append(asks, schema.BookLevel{
			Price: f.mid + schema.Price(tick*int64(i+1)),
			Size:  schema.Quantity(lot * int64(1+f.rng.Intn(5))),
		})
	}
	return bids, asks
}

// diffSide turns the new ladder into delta levels: vanished prices get
// size zero, new and resized prices carry their size. Ask prices are
// keyed negative in the shared map.
func (f *Feed) diffSide(next []schema.BookLevel, ask bool) []schema.BookLevel {
	sign := schema.Price(1)
	if ask {
		sign = -1
	}

	seen := make(map[schema.Price]struct{}, len(next))
	var out []schema.BookLevel
	for _, lv := range next {
		key := sign * lv.Price
		seen[key] = struct{}{}
		if f.levels[key] != lv.Size {
			f.levels[key] = lv.Size
			out = append(out, lv)
		}
	}
	for key := range f.levels {
		if ask != (key < 0) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		delete(f.levels, key)
		out = append(out, schema.BookLevel{Price: sign * key})
	}
	return out
}
