package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const (
	maxEventType  = int(schema.EventRiskSample)
	maxActionKind = int(schema.ActionCancel)
	maxOutcome    = int(schema.OutcomeTimedOut)
)

// Metrics collects lightweight counters and latency stats for the quoting
// pipeline.
type Metrics struct {
	eventCounts   [maxEventType + 1]uint64
	actionCounts  [maxActionKind + 1]uint64
	outcomeCounts [maxOutcome + 1]uint64

	queueDrops         uint64
	queueClosed        uint64
	resyncs            uint64
	checksumFailures   uint64
	invalidTransitions uint64
	reconnects         uint64
	skippedCycles      uint64

	eventLatency LatencyStats
	ackLatency   LatencyStats
	cycleLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts        map[schema.EventType]uint64
	ActionCounts       map[schema.ActionKind]uint64
	OutcomeCounts      map[schema.ActionOutcome]uint64
	QueueDrops         uint64
	QueueClosed        uint64
	Resyncs            uint64
	ChecksumFailures   uint64
	InvalidTransitions uint64
	Reconnects         uint64
	SkippedCycles      uint64
	EventLatency       LatencySnapshot
	AckLatency         LatencySnapshot
	CycleLatency       LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments counters and tracks feed latency when both
// timestamps are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.eventLatency.Observe(time.Duration(delta))
		}
	}
}

// IncAction counts a dispatched order action.
func (m *Metrics) IncAction(kind schema.ActionKind) {
	if m == nil {
		return
	}
	idx := int(kind)
	if idx >= 0 && idx < len(m.actionCounts) {
		atomic.AddUint64(&m.actionCounts[idx], 1)
	}
}

// IncOutcome counts a resolved action outcome.
func (m *Metrics) IncOutcome(outcome schema.ActionOutcome) {
	if m == nil {
		return
	}
	idx := int(outcome)
	if idx >= 0 && idx < len(m.outcomeCounts) {
		atomic.AddUint64(&m.outcomeCounts[idx], 1)
	}
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncResync records a book resnapshot.
func (m *Metrics) IncResync() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.resyncs, 1)
}

// IncChecksumFailure records a book checksum mismatch.
func (m *Metrics) IncChecksumFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.checksumFailures, 1)
}

// IncInvalidTransition records a dropped order-status event.
func (m *Metrics) IncInvalidTransition() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.invalidTransitions, 1)
}

// IncReconnect records a feed reconnect.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// IncSkippedCycle records a reconcile cycle skipped for a degenerate or
// stale book.
func (m *Metrics) IncSkippedCycle() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.skippedCycles, 1)
}

// ObserveAck measures dispatch-to-resolution latency for one action.
func (m *Metrics) ObserveAck(d time.Duration) {
	if m == nil {
		return
	}
	m.ackLatency.Observe(d)
}

// ObserveCycle measures one reconcile cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	actionCounts := make(map[schema.ActionKind]uint64)
	for i := range m.actionCounts {
		if v := atomic.LoadUint64(&m.actionCounts[i]); v > 0 {
			actionCounts[schema.ActionKind(i)] = v
		}
	}
	outcomeCounts := make(map[schema.ActionOutcome]uint64)
	for i := range m.outcomeCounts {
		if v := atomic.LoadUint64(&m.outcomeCounts[i]); v > 0 {
			outcomeCounts[schema.ActionOutcome(i)] = v
		}
	}
	return Snapshot{
		EventCounts:        eventCounts,
		ActionCounts:       actionCounts,
		OutcomeCounts:      outcomeCounts,
		QueueDrops:         atomic.LoadUint64(&m.queueDrops),
		QueueClosed:        atomic.LoadUint64(&m.queueClosed),
		Resyncs:            atomic.LoadUint64(&m.resyncs),
		ChecksumFailures:   atomic.LoadUint64(&m.checksumFailures),
		InvalidTransitions: atomic.LoadUint64(&m.invalidTransitions),
		Reconnects:         atomic.LoadUint64(&m.reconnects),
		SkippedCycles:      atomic.LoadUint64(&m.skippedCycles),
		EventLatency:       m.eventLatency.Snapshot(),
		AckLatency:         m.ackLatency.Snapshot(),
		CycleLatency:       m.cycleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
