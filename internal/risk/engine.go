// Package risk derives exposure and profit-and-loss from the account
// store and the latest mark price. It reads and reports, never mutates.
package risk

import (
	"context"
	"sync"
	"time"

	"main/internal/account"
	"main/internal/book"
	"main/internal/schema"
)

const maxInt64 = int64(^uint64(0) >> 1)

// Config tunes the sampling loop.
type Config struct {
	Interval   time.Duration `json:"interval"`
	StaleAfter time.Duration `json:"staleAfter"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Second
	}
	return c
}

// Inputs is everything one sample computation reads.
type Inputs struct {
	Position    schema.Quantity
	PosAvgPrice schema.Price
	Measurement account.Measurement
	Balances    map[string]account.Balance
	Mark        schema.Price
	MarkStale   bool
	Now         int64
}

// Monitor samples the account and book stores on a fixed cadence. The
// first sample with a usable mark price becomes the inception baseline
// for P&L reporting.
type Monitor struct {
	cfg   Config
	inst  schema.Instrument
	store *account.Store
	books *book.Store

	mu           sync.Mutex
	lastMark     schema.Price
	inception    schema.RiskSample
	hasInception bool

	onSample func(schema.RiskSample)
}

// NewMonitor builds a monitor over the two stores. onSample receives
// every sample; nil is allowed.
func NewMonitor(cfg Config, inst schema.Instrument, store *account.Store, books *book.Store, onSample func(schema.RiskSample)) *Monitor {
	return &Monitor{
		cfg:      cfg.withDefaults(),
		inst:     inst,
		store:    store,
		books:    books,
		onSample: onSample,
	}
}

// Run samples on the configured interval until the context ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := m.Sample(time.Now().UTC().UnixNano())
			if m.onSample != nil {
				m.onSample(sample)
			}
		}
	}
}

// Sample reads both stores and computes one risk sample. A missing or
// stale mark price falls back to the last known value with the
// staleness flag set; the sample itself never fails.
func (m *Monitor) Sample(now int64) schema.RiskSample {
	position, avgPrice := m.store.Position()
	measurement := m.store.Measurement()
	balances := m.store.Balances()

	mark, err := m.books.Mid()
	stale := err != nil || m.books.Staleness(now) > m.cfg.StaleAfter

	m.mu.Lock()
	if err != nil || mark <= 0 {
		mark = m.lastMark
	} else {
		m.lastMark = mark
	}
	m.mu.Unlock()

	sample := Compute(m.inst, Inputs{
		Position:    position,
		PosAvgPrice: avgPrice,
		Measurement: measurement,
		Balances:    balances,
		Mark:        mark,
		MarkStale:   stale,
		Now:         now,
	})

	m.mu.Lock()
	if !m.hasInception && mark > 0 {
		m.inception = sample
		m.hasInception = true
	}
	if m.hasInception {
		sample.InceptionTs = m.inception.Ts
		sample.PnL = schema.Notional(int64(sample.AssetValue) - int64(m.inception.AssetValue))
	}
	m.mu.Unlock()

	return sample
}

// MarkInception resets the P&L baseline to the next sample.
func (m *Monitor) MarkInception() {
	m.mu.Lock()
	m.hasInception = false
	m.mu.Unlock()
}

// Compute builds a risk sample from explicit inputs. Sample wires the
// live stores into it; tests drive it directly.
func Compute(inst schema.Instrument, in Inputs) schema.RiskSample {
	sample := schema.RiskSample{
		InstrumentID: uint32(inst.ID),
		Ts:           in.Now,
		MarkPrice:    in.Mark,
		Position:     in.Position,
		NetFilled:    in.Measurement.NetFilled,
		Volume:       in.Measurement.Volume,
	}
	if in.MarkStale {
		sample.Flags |= schema.RiskFlagStaleMark
	}

	// Contracts convert to base units through the multiplier; spot
	// positions already are base units.
	exposure := int64(in.Position)
	if inst.Type.Derivative() && inst.Multiplier > 0 {
		exposure = mulRescale(int64(in.Position), int64(inst.Multiplier), inst.Scale.QuantityScale)
	}
	sample.ExposureBase = schema.Quantity(exposure)

	if in.Mark > 0 {
		drop := inst.Scale.PriceScale + inst.Scale.QuantityScale - inst.Scale.NotionalScale
		sample.ExposureQuote = schema.Notional(mulRescale(exposure, int64(in.Mark), drop))
	}

	sample.AssetValue = assetValue(inst, in, sample.ExposureQuote)
	return sample
}

// assetValue marks the whole account in quote currency: quote balances
// at face value, base balances at the mark, plus derivative exposure.
func assetValue(inst schema.Instrument, in Inputs, exposureQuote schema.Notional) schema.Notional {
	total := int64(0)
	for ccy, b := range in.Balances {
		held := int64(b.Available) + int64(b.Frozen)
		switch ccy {
		case inst.QuoteCcy:
			total += held
		case inst.BaseCcy:
			if in.Mark > 0 {
				total += mulRescale(held, int64(in.Mark), inst.Scale.PriceScale)
			}
		}
	}
	if inst.Type.Derivative() {
		total += int64(exposureQuote)
	}
	return schema.Notional(total)
}

// mulRescale multiplies two scaled integers and drops the given number
// of decimal places, saturating instead of overflowing.
func mulRescale(a, b int64, drop schema.Scale) int64 {
	neg := (a < 0) != (b < 0)
	ua, ub := absInt64(a), absInt64(b)
	div := pow10(drop)
	if ua != 0 && ub > maxInt64/ua {
		// Divide the larger factor first; exact for the magnitudes
		// this engine trades.
		if div == 0 {
			return saturate(neg)
		}
		if ua >= ub {
			ua /= div
		} else {
			ub /= div
		}
		div = 1
		if ua != 0 && ub > maxInt64/ua {
			return saturate(neg)
		}
	}
	v := ua * ub
	if div > 1 {
		v /= div
	}
	if neg {
		return -v
	}
	return v
}

func pow10(n schema.Scale) int64 {
	if n < 0 {
		return 0
	}
	v := int64(1)
	for i := schema.Scale(0); i < n; i++ {
		if v > maxInt64/10 {
			return 0
		}
		v *= 10
	}
	return v
}

func saturate(neg bool) int64 {
	if neg {
		return -maxInt64
	}
	return maxInt64
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
