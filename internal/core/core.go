// Package core runs the reconcile loop: book view in, quote ladder
// out, diffed against open orders and handed to the gateway. One
// goroutine owns the loop, so cycles never overlap.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/book"
	"main/internal/errors"
	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/quote"
	"main/internal/reconcile"
	"main/internal/schema"
	"main/pkg/exception"
)

// Config shapes the loop timing and the rejection-storm guard.
type Config struct {
	// Interval is the ticker period between forced cycles; book changes
	// trigger extra cycles in between.
	Interval time.Duration
	// Tolerance is the reconcile price tolerance. Zero means one tick.
	Tolerance schema.Price
	// StormThreshold failures within StormWindow withdraw all quotes
	// and pause quoting for CoolOff.
	StormThreshold int
	StormWindow    time.Duration
	CoolOff        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 250 * time.Millisecond
	}
	if c.StormThreshold <= 0 {
		c.StormThreshold = 8
	}
	if c.StormWindow <= 0 {
		c.StormWindow = 10 * time.Second
	}
	if c.CoolOff <= 0 {
		c.CoolOff = 30 * time.Second
	}
	return c
}

// Engine drives quoting for one instrument.
type Engine struct {
	cfg     Config
	inst    schema.Instrument
	books   *book.Store
	store   *account.Store
	quotes  *quote.Engine
	gw      *gateway.Gateway
	metrics *obs.Metrics

	trigger chan struct{}

	mu           sync.Mutex
	failures     int
	windowStart  time.Time
	coolOffUntil time.Time
	withdraw     bool
}

func New(cfg Config, inst schema.Instrument, books *book.Store, store *account.Store, quotes *quote.Engine, gw *gateway.Gateway, metrics *obs.Metrics) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		inst:    inst,
		books:   books,
		store:   store,
		quotes:  quotes,
		gw:      gw,
		metrics: metrics,
		trigger: make(chan struct{}, 1),
	}
}

// Kick requests an extra cycle; safe from any goroutine, coalesced.
// The public feed supervisor calls this on material book changes.
func (e *Engine) Kick() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// ObserveResult feeds gateway outcomes into the storm guard. Wire it
// to the gateway result hook.
func (e *Engine) ObserveResult(_ schema.ActionRequest, res schema.ActionResult) {
	if res.Outcome != schema.OutcomeFailedTerminal && res.Outcome != schema.OutcomeTimedOut {
		return
	}

	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	if now.Sub(e.windowStart) > e.cfg.StormWindow {
		e.windowStart = now
		e.failures = 0
	}
	e.failures++
	if e.failures >= e.cfg.StormThreshold {
		logs.Warnf("rejection storm, %d failures in %s, withdrawing quotes for %s",
			e.failures, e.cfg.StormWindow, e.cfg.CoolOff)
		e.failures = 0
		e.coolOffUntil = now.Add(e.cfg.CoolOff)
		e.withdraw = true
	}
}

// Run blocks until the context ends. The caller issues the final
// cancel-all after Run returns.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	logs.Infof("reconcile loop started for %s, interval: %s", e.inst.Name, e.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.trigger:
		}
		e.cycle(ctx)
	}
}

func (e *Engine) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("reconcile cycle panic: %+v", r)
			e.mu.Lock()
			e.coolOffUntil = time.Now().Add(e.cfg.CoolOff)
			e.mu.Unlock()
			e.gw.Suspend()
			e.cancelAll(ctx)
		}
	}()

	e.mu.Lock()
	withdraw := e.withdraw
	e.withdraw = false
	coolingOff := time.Now().Before(e.coolOffUntil)
	e.mu.Unlock()

	if withdraw {
		// fence the dispatch queue first so a place staged before the
		// storm tripped cannot re-rest an order behind the cancel pass
		e.gw.Suspend()
		e.cancelAll(ctx)
		return
	}
	if coolingOff {
		e.metrics.IncSkippedCycle()
		return
	}
	e.gw.Resume()

	if !e.books.Synced() {
		e.metrics.IncSkippedCycle()
		return
	}

	meas := e.store.Measurement()
	targets, err := e.quotes.Targets(e.books.View(), meas.NetFilled)
	if err != nil {
		if errors.Is(err, exception.ErrDegenerateBook) {
			e.metrics.IncSkippedCycle()
			return
		}
		logs.Errorf("compute quote targets, err: %+v", err)
		return
	}

	plan := reconcile.Diff(targets, e.store.OpenOrders(), e.inst, reconcile.Options{
		Tolerance: e.cfg.Tolerance,
		InFlight:  e.gw.InFlight(),
	})
	if plan.Empty() {
		return
	}

	if err := e.gw.Submit(plan.Requests()); err != nil {
		if errors.Is(err, exception.ErrGatewayQueueFull) {
			e.metrics.IncSkippedCycle()
			return
		}
		logs.Errorf("submit reconcile plan, err: %+v", err)
	}
}

// SetParams forwards a hot-reloaded parameter set to the quote engine.
func (e *Engine) SetParams(p quote.Params) {
	if err := e.quotes.SetParams(p); err != nil {
		logs.Warnf("reject quote params: %+v, err: %+v", p, err)
	}
}

func (e *Engine) cancelAll(ctx context.Context) {
	n := e.gw.ShutdownCancelAll(ctx)
	logs.Warnf("withdrew quotes, canceled %d open orders", n)
}
