package ops

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"main/internal/quote"
	"main/internal/schema"
)

const validConfig = `{
	"venue": {"name": "okx", "simulated": true},
	"instrument": {
		"name": "BTC-USDT-SWAP",
		"type": "SWAP",
		"baseCcy": "BTC",
		"quoteCcy": "USDT",
		"settleCcy": "USDT",
		"tickSize": "0.1",
		"lotSize": "0.01",
		"minSize": "0.01",
		"multiplier": "0.01",
		"scale": {"price": 1, "quantity": 2, "notional": 2, "fee": 4}
	},
	"account": {"mode": "multi-ccy-margin", "tradeMode": "cross"},
	"quote": {
		"depth": 5,
		"spacingBps": 10,
		"sizeMultiple": 2,
		"maxNetBuy": "6",
		"maxNetSell": "6",
		"reloadInterval": "10ms"
	},
	"gateway": {"workers": 2, "queueCap": 64, "maxAttempts": 4, "ackTimeout": "2s"},
	"feed": {"publicQueueCap": 1024, "privateQueueCap": 256, "publicStaleAfter": "5s", "privateStaleAfter": "30s", "healthInterval": "1s"},
	"risk": {"interval": "10s", "staleAfter": "5s"},
	"journal": {"dir": "journal", "segmentMaxBytes": 1048576, "segmentMaxDuration": "1h"}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadResolvesEverything(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Inst.Name != "BTC-USDT-SWAP" || cfg.Inst.Type != schema.InstTypeSwap {
		t.Fatalf("instrument = %+v", cfg.Inst)
	}
	if cfg.Inst.TickSize != 1 || cfg.Inst.LotSize != 1 || cfg.Inst.Multiplier != 1 {
		t.Fatalf("scaled sizes = %d/%d/%d", cfg.Inst.TickSize, cfg.Inst.LotSize, cfg.Inst.Multiplier)
	}
	if cfg.Inst.TradeMode != schema.TradeModeCross {
		t.Fatalf("trade mode = %s", cfg.Inst.TradeMode)
	}
	if cfg.QuoteParams.Depth != 5 || cfg.QuoteParams.MaxNetBuy != 600 {
		t.Fatalf("quote params = %+v", cfg.QuoteParams)
	}

	gw := cfg.GatewayConfig()
	if gw.Workers != 2 || gw.AckTimeout != 2*time.Second {
		t.Fatalf("gateway = %+v", gw)
	}
	if cfg.RiskConfig().Interval != 10*time.Second {
		t.Fatalf("risk = %+v", cfg.RiskConfig())
	}

	journal, enabled := cfg.JournalConfig()
	if !enabled || journal.Dir != "journal" || journal.SegmentMaxBytes != 1048576 {
		t.Fatalf("journal = %+v enabled=%v", journal, enabled)
	}

	pub := cfg.PublicFeedConfig()
	if pub.QueueCap != 1024 || !pub.VerifyChecksum || pub.StaleAfter != 5*time.Second {
		t.Fatalf("public feed = %+v", pub)
	}
}

func TestLedgerConfigMapsDiscreteFields(t *testing.T) {
	cfg := &Config{Ledger: LedgerConfig{
		Host:          "db.internal",
		Port:          5433,
		User:          "quoter",
		Password:      "secret",
		Database:      "ledger",
		SSLMode:       "require",
		BatchSize:     8,
		FlushInterval: Duration(time.Second),
	}}
	lc := cfg.LedgerConfig()
	if lc.Host != "db.internal" || lc.Port != 5433 || lc.User != "quoter" ||
		lc.Password != "secret" || lc.Database != "ledger" || lc.SSLMode != "require" {
		t.Fatalf("ledger config = %+v", lc)
	}
	if lc.BatchSize != 8 || lc.FlushInterval != time.Second {
		t.Fatalf("batching = %+v", lc)
	}
}

func TestLoadAggregatesProblems(t *testing.T) {
	bad := `{
		"venue": {"name": "bogus"},
		"instrument": {"name": "BTC-USDT-SWAP", "type": "SWAP", "tickSize": "0", "lotSize": "0.01", "minSize": "0.01", "scale": {"price": 1, "quantity": 2}},
		"account": {"mode": "nope"},
		"quote": {"depth": 0, "maxNetBuy": "1", "maxNetSell": "1"}
	}`
	_, err := Load(writeConfig(t, bad))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"venue.name", "tickSize", "account.mode", "depth"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q misses %q", msg, want)
		}
	}
}

func TestLoadRejectsLiveWithoutCredentials(t *testing.T) {
	body := strings.Replace(validConfig, `"simulated": true`, `"simulated": false`, 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "credentialsFile") {
		t.Fatalf("err = %v", err)
	}
}

func TestCashAccountRejectsSwap(t *testing.T) {
	body := strings.Replace(validConfig, `"mode": "multi-ccy-margin", "tradeMode": "cross"`, `"mode": "cash"`, 1)
	_, err := Load(writeConfig(t, body))
	if err == nil {
		t.Fatal("expected trade mode error for swap in cash account")
	}
}

func TestWatchQuoteParamsAppliesValidEdit(t *testing.T) {
	path := writeConfig(t, validConfig)

	var applied atomic.Int64
	var last atomic.Value
	go WatchQuoteParams(t.Context(), path, 5*time.Millisecond, func(p quote.Params) {
		last.Store(p)
		applied.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	body := strings.Replace(validConfig, `"depth": 5`, `"depth": 3`, 1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for applied.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if applied.Load() == 0 {
		t.Fatal("reload never applied")
	}
	if p := last.Load().(quote.Params); p.Depth != 3 {
		t.Fatalf("applied depth = %d", p.Depth)
	}
}

func TestWatchQuoteParamsKeepsOldOnInvalidEdit(t *testing.T) {
	path := writeConfig(t, validConfig)

	var applied atomic.Int64
	go WatchQuoteParams(t.Context(), path, 5*time.Millisecond, func(quote.Params) {
		applied.Add(1)
	})

	time.Sleep(20 * time.Millisecond)
	body := strings.Replace(validConfig, `"depth": 5`, `"depth": 0`, 1)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if applied.Load() != 0 {
		t.Fatal("invalid reload was applied")
	}
}
