// Package chaos perturbs a recorded journal stream: events can be
// dropped, duplicated, reordered inside a bounded window, or delayed on
// their receive timestamp. A fixed seed makes a run reproducible, so a
// replay failure found under perturbation can be studied event by event.
package chaos

import (
	"math/rand"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// Event is one journal record moving through the perturbation pipeline.
type Event struct {
	Header  schema.EventHeader
	Payload []byte
}

// Config sets the perturbation rates. Rates are probabilities in
// [0, 1]; a ReorderWindow of one leaves ordering untouched.
type Config struct {
	Seed          int64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
	MaxDelay      time.Duration
}

func (c Config) validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Errorf("drop rate %v outside [0, 1]", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.Errorf("duplicate rate %v outside [0, 1]", c.DuplicateRate)
	}
	if c.MaxDelay < 0 {
		return errors.Errorf("max delay %s is negative", c.MaxDelay)
	}
	return nil
}

// Engine holds the seeded rng and the reorder window. Not safe for
// concurrent use; the chaos tool feeds it from one goroutine.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	window []Event
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Process runs one event through the pipeline. It returns nothing when
// the event is dropped or held back in the reorder window, and two
// copies when the event is duplicated.
func (e *Engine) Process(ev Event) []Event {
	if e.roll(e.cfg.DropRate) {
		return nil
	}
	ev = e.delay(ev)
	if e.cfg.ReorderWindow > 1 {
		e.window = append(e.window, ev)
		if len(e.window) < e.cfg.ReorderWindow {
			return nil
		}
		ev = e.takeRandom()
	}
	return e.emit(ev)
}

// Flush drains the reorder window in random order after the last
// Process call.
func (e *Engine) Flush() []Event {
	var out []Event
	for len(e.window) > 0 {
		out = append(out, e.emit(e.takeRandom())...)
	}
	return out
}

func (e *Engine) roll(rate float64) bool {
	return rate > 0 && e.rng.Float64() < rate
}

func (e *Engine) takeRandom() Event {
	i := e.rng.Intn(len(e.window))
	ev := e.window[i]
	e.window[i] = e.window[len(e.window)-1]
	e.window = e.window[:len(e.window)-1]
	return ev
}

// emit applies duplication last so both copies carry the same delay.
func (e *Engine) emit(ev Event) []Event {
	if e.roll(e.cfg.DuplicateRate) {
		return []Event{ev, ev}
	}
	return []Event{ev}
}

// delay pushes the receive timestamp forward. The event timestamp is
// the venue's and stays put.
func (e *Engine) delay(ev Event) Event {
	if e.cfg.MaxDelay <= 0 {
		return ev
	}
	d := e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1)
	if d == 0 {
		return ev
	}
	if ev.Header.TsRecv > 0 {
		ev.Header.TsRecv += d
	} else if ev.Header.TsEvent > 0 {
		ev.Header.TsRecv = ev.Header.TsEvent + d
	}
	return ev
}
