package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNextGrowsAndCaps(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	waits := []time.Duration{
		b.Next(1), b.Next(2), b.Next(3), b.Next(4), b.Next(5), b.Next(10),
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("attempt %d: expected %v, got %v", i+1, want[i], waits[i])
		}
	}
}

func TestJitterBounds(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		wait := b.Next(2)
		if wait < 100*time.Millisecond || wait > 300*time.Millisecond {
			t.Fatalf("jittered wait %v outside [100ms, 300ms]", wait)
		}
	}
}

func TestZeroValueDefaults(t *testing.T) {
	var b Backoff
	if w := b.Next(1); w != 100*time.Millisecond {
		t.Fatalf("expected min fallback 100ms, got %v", w)
	}
	if w := b.Next(20); w != 5*time.Second {
		t.Fatalf("expected max fallback 5s, got %v", w)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	b := Backoff{Min: time.Minute, Max: time.Minute, Factor: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Sleep(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
