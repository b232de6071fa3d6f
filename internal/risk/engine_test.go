package risk

import (
	"testing"
	"time"

	"main/internal/account"
	"main/internal/book"
	"main/internal/schema"
)

func swapInstrument() schema.Instrument {
	return schema.Instrument{
		ID:         1,
		Name:       "BTC-USDT-SWAP",
		Type:       schema.InstTypeSwap,
		BaseCcy:    "BTC",
		QuoteCcy:   "USDT",
		TickSize:   1,     // 0.1 at price scale 1
		LotSize:    100,   // 1 contract at qty scale 2
		Multiplier: 1,     // 0.01 BTC at qty scale 2
		Scale: schema.ScaleSpec{
			PriceScale:    1,
			QuantityScale: 2,
			NotionalScale: 2,
		},
	}
}

func TestComputeContractExposure(t *testing.T) {
	inst := swapInstrument()
	// Net fill of -6 contracts on a 0.01-multiplier instrument.
	sample := Compute(inst, Inputs{
		Position: -600, // -6.00 contracts
		Mark:     264414,
		Measurement: account.Measurement{
			NetFilled: -600,
			Volume:    600,
		},
		Now: 1,
	})

	if got, want := sample.ExposureBase, schema.Quantity(-6); got != want {
		t.Fatalf("exposure base = %d, want %d (position x multiplier)", got, want)
	}
	if sample.ExposureQuote >= 0 {
		t.Fatalf("short position must carry negative quote exposure, got %d", sample.ExposureQuote)
	}
	// -0.06 BTC x 26441.4 = -1586.484 quote, floored at notional scale 2.
	if got, want := sample.ExposureQuote, schema.Notional(-158648); got != want {
		t.Fatalf("exposure quote = %d, want %d", got, want)
	}
	if sample.NetFilled != -600 || sample.Volume != 600 {
		t.Fatalf("measurement passthrough broken: %+v", sample)
	}
}

func TestComputeSpotExposureIsPosition(t *testing.T) {
	inst := swapInstrument()
	inst.Type = schema.InstTypeSpot
	sample := Compute(inst, Inputs{Position: 250, Mark: 1000, Now: 1})
	if sample.ExposureBase != 250 {
		t.Fatalf("spot exposure = %d, want raw position", sample.ExposureBase)
	}
}

func TestComputeStaleMarkFlag(t *testing.T) {
	sample := Compute(swapInstrument(), Inputs{Mark: 100, MarkStale: true, Now: 1})
	if sample.Flags&schema.RiskFlagStaleMark == 0 {
		t.Fatal("stale mark must set the staleness flag")
	}
}

func TestMonitorFallsBackToLastMark(t *testing.T) {
	inst := swapInstrument()
	store := account.NewStore()
	books := book.NewStore(inst)
	m := NewMonitor(Config{Interval: time.Second, StaleAfter: time.Second}, inst, store, books, nil)

	books.ApplySnapshot(schema.BookUpdate{
		Seq:  1,
		Ts:   1,
		Bids: []schema.BookLevel{{Price: 264414, Size: 100}},
		Asks: []schema.BookLevel{{Price: 264945, Size: 100}},
	})
	first := m.Sample(2)
	if first.MarkPrice == 0 {
		t.Fatal("expected a mark price from a synced book")
	}
	if first.Flags&schema.RiskFlagStaleMark != 0 {
		t.Fatalf("fresh book must not be stale: %+v", first)
	}

	books.Invalidate()
	second := m.Sample(3)
	if second.MarkPrice != first.MarkPrice {
		t.Fatalf("expected last known mark %d, got %d", first.MarkPrice, second.MarkPrice)
	}
	if second.Flags&schema.RiskFlagStaleMark == 0 {
		t.Fatal("invalidated book must report a stale mark")
	}
}

func TestMonitorPnLAgainstInception(t *testing.T) {
	inst := swapInstrument()
	store := account.NewStore()
	books := book.NewStore(inst)
	m := NewMonitor(Config{}, inst, store, books, nil)

	books.ApplySnapshot(schema.BookUpdate{
		Seq:  1,
		Ts:   1,
		Bids: []schema.BookLevel{{Price: 264414, Size: 100}},
		Asks: []schema.BookLevel{{Price: 264945, Size: 100}},
	})
	store.ApplyBalance(schema.BalanceUpdate{
		Currency:  schema.NewCcy("USDT"),
		Kind:      schema.UpdateKindSnapshot,
		Seq:       1,
		Available: 10_000_00,
		Ts:        1,
	})

	first := m.Sample(2)
	if first.PnL != 0 {
		t.Fatalf("inception sample must report zero P&L, got %d", first.PnL)
	}

	store.ApplyBalance(schema.BalanceUpdate{
		Currency:  schema.NewCcy("USDT"),
		Kind:      schema.UpdateKindSnapshot,
		Seq:       2,
		Available: 10_050_00,
		Ts:        2,
	})
	second := m.Sample(3)
	if second.PnL != 50_00 {
		t.Fatalf("PnL = %d, want 5000 (50.00 quote gain)", second.PnL)
	}
	if second.InceptionTs != first.Ts {
		t.Fatalf("inception ts = %d, want %d", second.InceptionTs, first.Ts)
	}
}

func TestMulRescaleSaturates(t *testing.T) {
	if got := mulRescale(maxInt64, 3, 0); got != maxInt64 {
		t.Fatalf("overflow must saturate, got %d", got)
	}
	if got := mulRescale(-maxInt64, 3, 0); got != -maxInt64 {
		t.Fatalf("negative overflow must saturate, got %d", got)
	}
	if got := mulRescale(1234, 1000, 3); got != 1234 {
		t.Fatalf("rescale broken: got %d, want 1234", got)
	}
}
