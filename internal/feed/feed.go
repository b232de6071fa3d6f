// Package feed supervises the two inbound streams. Each supervisor is
// an explicit reconnect state machine (disconnected, connecting,
// syncing, live) feeding a bounded queue into a single-consumer apply
// loop, so per-stream ordering holds without a lock shared across
// streams.
package feed

import (
	"sync/atomic"

	"main/internal/schema"
)

// State is one phase of the reconnect machine.
type State uint32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSyncing
	StateLive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "syncing"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Journal receives every normalized inbound event. recorder.Writer
// satisfies it; nil disables journaling.
type Journal interface {
	TryAppend(header schema.EventHeader, payload []byte) error
}

type state struct {
	v atomic.Uint32
}

func (s *state) set(next State) {
	s.v.Store(uint32(next))
}

func (s *state) get() State {
	return State(s.v.Load())
}

func journalAppend(j Journal, header schema.EventHeader, payload []byte) {
	if j == nil {
		return
	}
	// Best effort from the hot path; the journal reports its own drops.
	_ = j.TryAppend(header, payload)
}
