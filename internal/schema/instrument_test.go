package schema

import "testing"

func TestInstTypeFromName(t *testing.T) {
	cases := []struct {
		name string
		want InstrumentType
	}{
		{"BTC-USDT", InstTypeSpot},
		{"BTC-USDT-SWAP", InstTypeSwap},
		{"BTC-USDT-230630", InstTypeFutures},
		{"BTC-USD-230630-30000-C", InstTypeOption},
	}
	for _, c := range cases {
		got, err := InstTypeFromName(c.name)
		if err != nil {
			t.Fatalf("InstTypeFromName(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("InstTypeFromName(%q) = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestInstTypeFromNameRejects(t *testing.T) {
	for _, name := range []string{"BTC", "BTC-USD-230630-30000", "A-B-C-D-E-F"} {
		if _, err := InstTypeFromName(name); err == nil {
			t.Fatalf("InstTypeFromName(%q) expected error", name)
		}
	}
}

func TestDecideTradeModeCashAccount(t *testing.T) {
	mode, err := DecideTradeMode(AccountModeCash, InstTypeSpot, TradeModeUnknown)
	if err != nil {
		t.Fatalf("spot in cash account: %v", err)
	}
	if mode != TradeModeCash {
		t.Fatalf("spot in cash account = %s, want cash", mode)
	}
	if _, err := DecideTradeMode(AccountModeCash, InstTypeSwap, TradeModeUnknown); err == nil {
		t.Fatalf("swap in cash account expected error")
	}
}

func TestDecideTradeModeSingleCcyMargin(t *testing.T) {
	cases := []struct {
		instType   InstrumentType
		preference TradeMode
		want       TradeMode
	}{
		{InstTypeSwap, TradeModeCash, TradeModeCross},
		{InstTypeSpot, TradeModeIsolated, TradeModeCash},
		{InstTypeSwap, TradeModeIsolated, TradeModeIsolated},
		{InstTypeSwap, TradeModeUnknown, TradeModeCross},
		{InstTypeSpot, TradeModeUnknown, TradeModeCash},
	}
	for _, c := range cases {
		got, err := DecideTradeMode(AccountModeSingleCcyMargin, c.instType, c.preference)
		if err != nil {
			t.Fatalf("DecideTradeMode(single, %s, %s): %v", c.instType, c.preference, err)
		}
		if got != c.want {
			t.Fatalf("DecideTradeMode(single, %s, %s) = %s, want %s", c.instType, c.preference, got, c.want)
		}
	}
}

func TestDecideTradeModeMultiCcyMargin(t *testing.T) {
	cases := []struct {
		account    AccountMode
		instType   InstrumentType
		preference TradeMode
		want       TradeMode
	}{
		{AccountModeMultiCcyMargin, InstTypeSwap, TradeModeCash, TradeModeCross},
		{AccountModeMultiCcyMargin, InstTypeMargin, TradeModeCross, TradeModeIsolated},
		{AccountModeMultiCcyMargin, InstTypeSpot, TradeModeIsolated, TradeModeCross},
		{AccountModeMultiCcyMargin, InstTypeSwap, TradeModeIsolated, TradeModeIsolated},
		{AccountModePortfolioMargin, InstTypeSwap, TradeModeUnknown, TradeModeCross},
		{AccountModePortfolioMargin, InstTypeMargin, TradeModeUnknown, TradeModeIsolated},
	}
	for _, c := range cases {
		got, err := DecideTradeMode(c.account, c.instType, c.preference)
		if err != nil {
			t.Fatalf("DecideTradeMode(%s, %s, %s): %v", c.account, c.instType, c.preference, err)
		}
		if got != c.want {
			t.Fatalf("DecideTradeMode(%s, %s, %s) = %s, want %s", c.account, c.instType, c.preference, got, c.want)
		}
	}
}

func TestRegistryInstrument(t *testing.T) {
	reg := NewRegistry()
	venueID, err := reg.AddVenue("OKX")
	if err != nil {
		t.Fatalf("AddVenue: %v", err)
	}
	id, err := reg.AddInstrument(Instrument{
		VenueID:    venueID,
		Name:       "BTC-USDT-SWAP",
		TickSize:   10000000,
		LotSize:    100000000,
		MinSize:    100000000,
		Multiplier: 1000000,
		Scale:      ScaleSpec{PriceScale: 8, QuantityScale: 8, NotionalScale: 8, FeeScale: 8},
	})
	if err != nil {
		t.Fatalf("AddInstrument: %v", err)
	}

	inst, ok := reg.Instrument(id)
	if !ok {
		t.Fatalf("Instrument(%d) not found", id)
	}
	if inst.Type != InstTypeSwap {
		t.Fatalf("derived type = %s, want SWAP", inst.Type)
	}
	if inst.BaseCcy != "BTC" || inst.QuoteCcy != "USDT" {
		t.Fatalf("derived ccys = %s/%s, want BTC/USDT", inst.BaseCcy, inst.QuoteCcy)
	}
	if got, ok := reg.InstrumentIDByName("BTC-USDT-SWAP"); !ok || got != id {
		t.Fatalf("InstrumentIDByName = %d/%v, want %d/true", got, ok, id)
	}
	if _, err := reg.AddInstrument(Instrument{VenueID: venueID, Name: "BTC-USDT-SWAP", TickSize: 1, LotSize: 1}); err == nil {
		t.Fatalf("duplicate instrument expected error")
	}
}
