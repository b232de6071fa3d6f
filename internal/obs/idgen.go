package obs

import (
	"sync/atomic"
	"time"
)

// IDGen creates monotonically increasing ids, shared by client order ids
// and request correlation ids so every wire artifact traces back to one
// counter.
type IDGen struct {
	next uint64
}

// NewIDGen returns a generator seeded with the given value. A zero seed
// falls back to the wall clock so restarts do not reuse ids.
func NewIDGen(seed uint64) *IDGen {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &IDGen{next: seed}
}

// Next returns the next id.
func (g *IDGen) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}

// Bump raises the counter to at least floor. Journal replay calls this
// with the highest id it saw so fresh ids never collide with recovered
// orders.
func (g *IDGen) Bump(floor uint64) {
	if g == nil {
		return
	}
	for {
		cur := atomic.LoadUint64(&g.next)
		if cur >= floor {
			return
		}
		if atomic.CompareAndSwapUint64(&g.next, cur, floor) {
			return
		}
	}
}
