package okx

// seqClock issues the idempotence sequence for one private channel. The
// venue stamps pushes with uTime in milliseconds, which repeats when two
// updates land in the same millisecond; feeding uTime straight through
// would make the account store drop the second as stale. The clock keeps
// the sequence strictly increasing while still tracking uTime whenever
// it advances.
type seqClock struct {
	last uint64
}

// Next returns max(last+1, ms) and remembers it.
func (c *seqClock) Next(ms uint64) uint64 {
	if ms <= c.last {
		c.last++
	} else {
		c.last = ms
	}
	return c.last
}
