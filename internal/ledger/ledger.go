// Package ledger persists fills and risk samples to Postgres for
// offline analysis. The sink batches rows off the hot path; the engine
// runs identically with the ledger disabled.
package ledger

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/schema"
	"main/pkg/conn"
)

const (
	defaultBatchSize     = 256
	defaultFlushInterval = time.Second
	defaultQueueCap      = 4096
)

// Config selects the database and batching behavior. ConnString wins
// when set; otherwise the discrete fields name the database. Both left
// empty disables the ledger.
type Config struct {
	ConnString string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string

	BatchSize     int
	FlushInterval time.Duration
	QueueCap      int
}

func (c Config) enabled() bool {
	return c.ConnString != "" || c.Database != ""
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.QueueCap <= 0 {
		c.QueueCap = defaultQueueCap
	}
	return c
}

// FillRow is one executed fill.
type FillRow struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ClientID     uint64 `gorm:"column:client_id;index"`
	ExchangeID   uint64 `gorm:"column:exchange_id"`
	InstrumentID uint32 `gorm:"column:instrument_id;index"`
	Side         string `gorm:"column:side;size:4"`
	Price        int64  `gorm:"column:price"`
	Qty          int64  `gorm:"column:qty"`
	Fee          int64  `gorm:"column:fee"`
	Ts           int64  `gorm:"column:ts;index"`
}

func (FillRow) TableName() string { return "fills" }

// RiskRow is one periodic risk sample.
type RiskRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	InstrumentID  uint32 `gorm:"column:instrument_id;index"`
	Flags         uint16 `gorm:"column:flags"`
	Ts            int64  `gorm:"column:ts;index"`
	MarkPrice     int64  `gorm:"column:mark_price"`
	Position      int64  `gorm:"column:position"`
	ExposureBase  int64  `gorm:"column:exposure_base"`
	ExposureQuote int64  `gorm:"column:exposure_quote"`
	AssetValue    int64  `gorm:"column:asset_value"`
	PnL           int64  `gorm:"column:pnl"`
	NetFilled     int64  `gorm:"column:net_filled"`
	Volume        int64  `gorm:"column:volume"`
}

func (RiskRow) TableName() string { return "risk_samples" }

// Sink buffers rows and writes them in batches from its own goroutine.
type Sink struct {
	cfg    Config
	client *conn.Client
	rows   chan any
}

// Open connects, migrates the two tables and returns a ready sink.
// Returns (nil, nil) when the ledger is disabled.
func Open(cfg Config) (*Sink, error) {
	cfg = cfg.withDefaults()
	if !cfg.enabled() {
		return nil, nil
	}

	client, err := conn.New(conn.Option{
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   cfg.Database,
		SSLMode:    cfg.SSLMode,
		ConnString: cfg.ConnString,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open ledger database")
	}
	if err := client.DB().AutoMigrate(&FillRow{}, &RiskRow{}); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "migrate ledger tables")
	}

	return &Sink{
		cfg:    cfg,
		client: client,
		rows:   make(chan any, cfg.QueueCap),
	}, nil
}

// RecordFill enqueues one fill. Drops when the queue is full; the
// ledger must never apply backpressure to trading. Nil-safe.
func (s *Sink) RecordFill(f schema.Fill) {
	if s == nil {
		return
	}
	row := FillRow{
		ClientID:     f.ClientID,
		ExchangeID:   f.ExchangeID,
		InstrumentID: f.InstrumentID,
		Side:         f.Side.String(),
		Price:        int64(f.Price),
		Qty:          int64(f.Qty),
		Fee:          int64(f.Fee),
		Ts:           f.Ts,
	}
	select {
	case s.rows <- row:
	default:
		logs.Warn("ledger queue full, dropping fill row")
	}
}

// RecordRisk enqueues one risk sample. Nil-safe, drops on overflow.
func (s *Sink) RecordRisk(sample schema.RiskSample) {
	if s == nil {
		return
	}
	row := RiskRow{
		InstrumentID:  sample.InstrumentID,
		Flags:         sample.Flags,
		Ts:            sample.Ts,
		MarkPrice:     int64(sample.MarkPrice),
		Position:      int64(sample.Position),
		ExposureBase:  int64(sample.ExposureBase),
		ExposureQuote: int64(sample.ExposureQuote),
		AssetValue:    int64(sample.AssetValue),
		PnL:           int64(sample.PnL),
		NetFilled:     int64(sample.NetFilled),
		Volume:        int64(sample.Volume),
	}
	select {
	case s.rows <- row:
	default:
		logs.Warn("ledger queue full, dropping risk row")
	}
}

// Run drains the queue until the context ends, then flushes what is
// buffered and closes the connection. Nil-safe.
func (s *Sink) Run(ctx context.Context) {
	if s == nil {
		return
	}
	defer s.client.Close()

	fills := make([]FillRow, 0, s.cfg.BatchSize)
	risks := make([]RiskRow, 0, s.cfg.BatchSize)

	flush := func() {
		if len(fills) > 0 {
			if err := s.client.DB().CreateInBatches(fills, s.cfg.BatchSize).Error; err != nil {
				logs.Errorf("write fill rows, err: %+v", err)
			}
			fills = fills[:0]
		}
		if len(risks) > 0 {
			if err := s.client.DB().CreateInBatches(risks, s.cfg.BatchSize).Error; err != nil {
				logs.Errorf("write risk rows, err: %+v", err)
			}
			risks = risks[:0]
		}
	}

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row := <-s.rows:
					fills, risks = stage(fills, risks, row)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case row := <-s.rows:
			fills, risks = stage(fills, risks, row)
			if len(fills) >= s.cfg.BatchSize || len(risks) >= s.cfg.BatchSize {
				flush()
			}
		}
	}
}

func stage(fills []FillRow, risks []RiskRow, row any) ([]FillRow, []RiskRow) {
	switch r := row.(type) {
	case FillRow:
		fills = append(fills, r)
	case RiskRow:
		risks = append(risks, r)
	}
	return fills, risks
}
