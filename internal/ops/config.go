// Package ops loads and validates the engine configuration. Everything
// fails fast here; after Load succeeds, nothing downstream should need
// to terminate the process over configuration.
package ops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/ledger"
	"main/internal/quote"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/venue/okx"
	"main/pkg/backoff"
)

// Duration accepts Go duration strings in JSON ("250ms", "5s").
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// VenueConfig selects and addresses the trading venue.
type VenueConfig struct {
	// Name is "okx" or "sim".
	Name            string `json:"name"`
	RestURL         string `json:"restUrl"`
	PublicWsURL     string `json:"publicWsUrl"`
	PrivateWsURL    string `json:"privateWsUrl"`
	CredentialsFile string `json:"credentialsFile"`
	Simulated       bool   `json:"simulated"`
}

// InstrumentConfig describes the quoted instrument. Sizes and prices
// are decimal strings interpreted at the configured scales.
type InstrumentConfig struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	BaseCcy    string `json:"baseCcy"`
	QuoteCcy   string `json:"quoteCcy"`
	SettleCcy  string `json:"settleCcy"`
	TickSize   string `json:"tickSize"`
	LotSize    string `json:"lotSize"`
	MinSize    string `json:"minSize"`
	Multiplier string `json:"multiplier"`
	Scale      struct {
		Price    schema.Scale `json:"price"`
		Quantity schema.Scale `json:"quantity"`
		Notional schema.Scale `json:"notional"`
		Fee      schema.Scale `json:"fee"`
	} `json:"scale"`
}

// AccountConfig resolves the trade mode.
type AccountConfig struct {
	Mode      string `json:"mode"`
	TradeMode string `json:"tradeMode"`
}

// QuoteConfig carries the running ladder parameters. Net limits are
// decimal strings at the quantity scale.
type QuoteConfig struct {
	Depth        int    `json:"depth"`
	SpacingBps   int64  `json:"spacingBps"`
	SizeMultiple int64  `json:"sizeMultiple"`
	MaxNetBuy    string `json:"maxNetBuy"`
	MaxNetSell   string `json:"maxNetSell"`
	// ReloadInterval is the mtime polling period for hot reload.
	ReloadInterval Duration `json:"reloadInterval"`
}

// GatewayConfig shapes the order gateway.
type GatewayConfig struct {
	Workers     int      `json:"workers"`
	QueueCap    int      `json:"queueCap"`
	MaxAttempts int      `json:"maxAttempts"`
	AckTimeout  Duration `json:"ackTimeout"`
}

// FeedConfig shapes both stream supervisors.
type FeedConfig struct {
	PublicQueueCap    int      `json:"publicQueueCap"`
	PrivateQueueCap   int      `json:"privateQueueCap"`
	PublicStaleAfter  Duration `json:"publicStaleAfter"`
	PrivateStaleAfter Duration `json:"privateStaleAfter"`
	HealthInterval    Duration `json:"healthInterval"`
	VerifyChecksum    *bool    `json:"verifyChecksum"`
}

// RiskConfig shapes the risk monitor.
type RiskConfig struct {
	Interval   Duration `json:"interval"`
	StaleAfter Duration `json:"staleAfter"`
}

// JournalConfig shapes the event journal.
type JournalConfig struct {
	Dir                string   `json:"dir"`
	SegmentMaxBytes    int64    `json:"segmentMaxBytes"`
	SegmentMaxDuration Duration `json:"segmentMaxDuration"`
}

// LedgerConfig enables the Postgres ledger. Either a full connString
// or the discrete fields name the database; both empty keeps the
// ledger off.
type LedgerConfig struct {
	ConnString    string   `json:"connString"`
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	User          string   `json:"user"`
	Password      string   `json:"password"`
	Database      string   `json:"database"`
	SSLMode       string   `json:"sslMode"`
	BatchSize     int      `json:"batchSize"`
	FlushInterval Duration `json:"flushInterval"`
}

// Config mirrors the JSON config file.
type Config struct {
	Venue      VenueConfig      `json:"venue"`
	Instrument InstrumentConfig `json:"instrument"`
	Account    AccountConfig    `json:"account"`
	Quote      QuoteConfig      `json:"quote"`
	Gateway    GatewayConfig    `json:"gateway"`
	Feed       FeedConfig       `json:"feed"`
	Risk       RiskConfig       `json:"risk"`
	Journal    JournalConfig    `json:"journal"`
	Ledger     LedgerConfig     `json:"ledger"`

	// resolved during Load
	Inst        schema.Instrument  `json:"-"`
	QuoteParams quote.Params       `json:"-"`
	AccountMode schema.AccountMode `json:"-"`
}

// Load reads and validates the config file. Validation problems are
// aggregated so one round trip reports everything wrong.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var cfg Config
	if err := sonic.ConfigFastest.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Venue.Name {
	case "okx", "sim":
	case "":
		fail("venue.name is required")
	default:
		fail("venue.name %q is not supported", c.Venue.Name)
	}
	if c.Venue.Name == "okx" && !c.Venue.Simulated && c.Venue.CredentialsFile == "" {
		fail("venue.credentialsFile is required for live trading")
	}

	inst, err := c.resolveInstrument()
	if err != nil {
		fail("%v", err)
	}

	mode, ok := schema.ParseAccountMode(c.Account.Mode)
	if !ok {
		fail("account.mode %q is not valid", c.Account.Mode)
	}
	c.AccountMode = mode

	preference := schema.TradeModeUnknown
	if c.Account.TradeMode != "" {
		preference, ok = schema.ParseTradeMode(c.Account.TradeMode)
		if !ok {
			fail("account.tradeMode %q is not valid", c.Account.TradeMode)
		}
	}
	if mode != schema.AccountModeUnknown && inst.Type != schema.InstTypeUnknown {
		tradeMode, err := schema.DecideTradeMode(mode, inst.Type, preference)
		if err != nil {
			fail("%v", err)
		}
		inst.TradeMode = tradeMode
	}
	c.Inst = inst

	params, err := c.resolveQuoteParams(inst)
	if err != nil {
		fail("%v", err)
	} else if err := params.Validate(); err != nil {
		fail("%v", err)
	}
	c.QuoteParams = params

	if c.Risk.Interval < 0 {
		fail("risk.interval must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) resolveInstrument() (schema.Instrument, error) {
	ic := c.Instrument
	if ic.Name == "" {
		return schema.Instrument{}, fmt.Errorf("instrument.name is required")
	}

	instType, ok := schema.ParseInstrumentType(ic.Type)
	if !ok {
		if instType, _ = schema.InstTypeFromName(ic.Name); instType == schema.InstTypeUnknown {
			return schema.Instrument{}, fmt.Errorf("instrument.type %q is not valid", ic.Type)
		}
	}

	scale := schema.ScaleSpec{
		PriceScale:    ic.Scale.Price,
		QuantityScale: ic.Scale.Quantity,
		NotionalScale: ic.Scale.Notional,
		FeeScale:      ic.Scale.Fee,
	}

	tick, err := schema.ParseScaled(ic.TickSize, scale.PriceScale)
	if err != nil {
		return schema.Instrument{}, fmt.Errorf("instrument.tickSize: %v", err)
	}
	lot, err := schema.ParseScaled(ic.LotSize, scale.QuantityScale)
	if err != nil {
		return schema.Instrument{}, fmt.Errorf("instrument.lotSize: %v", err)
	}
	minSize, err := schema.ParseScaled(ic.MinSize, scale.QuantityScale)
	if err != nil {
		return schema.Instrument{}, fmt.Errorf("instrument.minSize: %v", err)
	}
	multiplier := int64(0)
	if ic.Multiplier != "" {
		if multiplier, err = schema.ParseScaled(ic.Multiplier, scale.QuantityScale); err != nil {
			return schema.Instrument{}, fmt.Errorf("instrument.multiplier: %v", err)
		}
	}
	if tick <= 0 {
		return schema.Instrument{}, fmt.Errorf("instrument.tickSize must be positive")
	}
	if lot <= 0 {
		return schema.Instrument{}, fmt.Errorf("instrument.lotSize must be positive")
	}

	return schema.Instrument{
		ID:         1,
		VenueID:    1,
		Name:       ic.Name,
		Type:       instType,
		BaseCcy:    ic.BaseCcy,
		QuoteCcy:   ic.QuoteCcy,
		SettleCcy:  ic.SettleCcy,
		TickSize:   schema.Price(tick),
		LotSize:    schema.Quantity(lot),
		MinSize:    schema.Quantity(minSize),
		Multiplier: schema.Quantity(multiplier),
		Scale:      scale,
	}, nil
}

func (c *Config) resolveQuoteParams(inst schema.Instrument) (quote.Params, error) {
	maxNetBuy, err := schema.ParseScaled(c.Quote.MaxNetBuy, inst.Scale.QuantityScale)
	if err != nil {
		return quote.Params{}, fmt.Errorf("quote.maxNetBuy: %v", err)
	}
	maxNetSell, err := schema.ParseScaled(c.Quote.MaxNetSell, inst.Scale.QuantityScale)
	if err != nil {
		return quote.Params{}, fmt.Errorf("quote.maxNetSell: %v", err)
	}
	return quote.Params{
		Depth:        c.Quote.Depth,
		SpacingBps:   c.Quote.SpacingBps,
		SizeMultiple: c.Quote.SizeMultiple,
		MaxNetBuy:    schema.Quantity(maxNetBuy),
		MaxNetSell:   schema.Quantity(maxNetSell),
	}, nil
}

// OKXConfig assembles the venue adapter config, loading credentials
// from the referenced file when set.
func (c *Config) OKXConfig() (okx.Config, error) {
	cfg := okx.Config{
		RestURL:      c.Venue.RestURL,
		PublicWsURL:  c.Venue.PublicWsURL,
		PrivateWsURL: c.Venue.PrivateWsURL,
		Simulated:    c.Venue.Simulated,
	}
	if c.Venue.CredentialsFile == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(c.Venue.CredentialsFile)
	if err != nil {
		return okx.Config{}, errors.Wrap(err, "read credentials file")
	}
	if err := sonic.ConfigFastest.Unmarshal(raw, &cfg.Credentials); err != nil {
		return okx.Config{}, errors.Wrap(err, "parse credentials file")
	}
	return cfg, nil
}

// GatewayConfig maps onto the gateway package config.
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		Workers:     c.Gateway.Workers,
		QueueCap:    c.Gateway.QueueCap,
		MaxAttempts: c.Gateway.MaxAttempts,
		AckTimeout:  c.Gateway.AckTimeout.Std(),
		Retry:       backoff.Default(),
	}
}

// JournalConfig maps onto the recorder config. Returns false when the
// journal is disabled.
func (c *Config) JournalConfig() (recorder.Config, bool) {
	if c.Journal.Dir == "" {
		return recorder.Config{}, false
	}
	cfg := recorder.DefaultConfig(c.Journal.Dir)
	if c.Journal.SegmentMaxBytes > 0 {
		cfg.SegmentMaxBytes = c.Journal.SegmentMaxBytes
	}
	if c.Journal.SegmentMaxDuration > 0 {
		cfg.SegmentMaxDuration = c.Journal.SegmentMaxDuration.Std()
	}
	return cfg, true
}

// PublicFeedConfig maps onto the public supervisor config.
func (c *Config) PublicFeedConfig() feed.PublicConfig {
	verify := true
	if c.Feed.VerifyChecksum != nil {
		verify = *c.Feed.VerifyChecksum
	}
	return feed.PublicConfig{
		QueueCap:       c.Feed.PublicQueueCap,
		StaleAfter:     c.Feed.PublicStaleAfter.Std(),
		HealthInterval: c.Feed.HealthInterval.Std(),
		Reconnect:      backoff.Default(),
		VerifyChecksum: verify,
	}
}

// PrivateFeedConfig maps onto the private supervisor config.
func (c *Config) PrivateFeedConfig() feed.PrivateConfig {
	return feed.PrivateConfig{
		QueueCap:       c.Feed.PrivateQueueCap,
		StaleAfter:     c.Feed.PrivateStaleAfter.Std(),
		HealthInterval: c.Feed.HealthInterval.Std(),
		Reconnect:      backoff.Default(),
	}
}

// RiskConfig maps onto the risk monitor config.
func (c *Config) RiskConfig() risk.Config {
	return risk.Config{
		Interval:   c.Risk.Interval.Std(),
		StaleAfter: c.Risk.StaleAfter.Std(),
	}
}

// LedgerConfig maps onto the ledger config.
func (c *Config) LedgerConfig() ledger.Config {
	return ledger.Config{
		ConnString:    c.Ledger.ConnString,
		Host:          c.Ledger.Host,
		Port:          c.Ledger.Port,
		User:          c.Ledger.User,
		Password:      c.Ledger.Password,
		Database:      c.Ledger.Database,
		SSLMode:       c.Ledger.SSLMode,
		BatchSize:     c.Ledger.BatchSize,
		FlushInterval: c.Ledger.FlushInterval.Std(),
	}
}

const defaultReloadInterval = 5 * time.Second

// WatchQuoteParams polls the config file's mtime and applies validated
// ladder parameter changes. Invalid edits are logged and skipped; the
// engine keeps the previous parameters.
func WatchQuoteParams(ctx context.Context, path string, reloadInterval time.Duration, apply func(quote.Params)) {
	if reloadInterval <= 0 {
		reloadInterval = defaultReloadInterval
	}

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("stat config file, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			cfg, err := Load(path)
			if err != nil {
				logs.Warnf("reject config reload, err: %+v", err)
				continue
			}
			logs.Infof("reload quote params: %+v", cfg.QuoteParams)
			apply(cfg.QuoteParams)
		}
	}
}
