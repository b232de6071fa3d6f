package chaos

import (
	"testing"
	"time"

	"main/internal/schema"
)

func event(seq uint64) Event {
	return Event{Header: schema.NewHeader(schema.EventTrade, schema.SourcePublicFeed, seq, int64(seq), int64(seq))}
}

func TestValidateRejectsBadRates(t *testing.T) {
	if _, err := NewEngine(Config{DropRate: 1.5}); err == nil {
		t.Fatal("expected drop rate error")
	}
	if _, err := NewEngine(Config{DuplicateRate: -0.1}); err == nil {
		t.Fatal("expected duplicate rate error")
	}
	if _, err := NewEngine(Config{MaxDelay: -time.Second}); err == nil {
		t.Fatal("expected max delay error")
	}
}

func TestPassthroughKeepsEveryEvent(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var out []Event
	for seq := uint64(1); seq <= 10; seq++ {
		out = append(out, e.Process(event(seq))...)
	}
	out = append(out, e.Flush()...)

	if len(out) != 10 {
		t.Fatalf("expected 10 events, got %d", len(out))
	}
	for i, ev := range out {
		if ev.Header.Seq != uint64(i+1) {
			t.Fatalf("event %d reordered without a reorder window: seq %d", i, ev.Header.Seq)
		}
	}
}

func TestDropRateOneDropsEverything(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, DropRate: 1})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for seq := uint64(1); seq <= 5; seq++ {
		if out := e.Process(event(seq)); len(out) != 0 {
			t.Fatalf("seq %d survived a full drop rate", seq)
		}
	}
	if out := e.Flush(); len(out) != 0 {
		t.Fatalf("flush produced %d events", len(out))
	}
}

func TestReorderWindowPreservesTheSet(t *testing.T) {
	e, err := NewEngine(Config{Seed: 7, ReorderWindow: 4})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var out []Event
	for seq := uint64(1); seq <= 20; seq++ {
		out = append(out, e.Process(event(seq))...)
	}
	out = append(out, e.Flush()...)

	if len(out) != 20 {
		t.Fatalf("expected 20 events, got %d", len(out))
	}
	seen := make(map[uint64]bool, len(out))
	for _, ev := range out {
		if seen[ev.Header.Seq] {
			t.Fatalf("seq %d emitted twice", ev.Header.Seq)
		}
		seen[ev.Header.Seq] = true
	}
	for seq := uint64(1); seq <= 20; seq++ {
		if !seen[seq] {
			t.Fatalf("seq %d missing", seq)
		}
	}
}

func TestDelayOnlyMovesReceiveTime(t *testing.T) {
	e, err := NewEngine(Config{Seed: 3, MaxDelay: time.Second})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	in := Event{Header: schema.NewHeader(schema.EventTrade, schema.SourcePublicFeed, 1, 100, 100)}
	out := e.Process(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out))
	}
	if out[0].Header.TsEvent != 100 {
		t.Fatalf("event time changed: %d", out[0].Header.TsEvent)
	}
	if out[0].Header.TsRecv < 100 {
		t.Fatalf("receive time moved backwards: %d", out[0].Header.TsRecv)
	}
}
