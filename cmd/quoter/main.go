package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/book"
	"main/internal/codec"
	"main/internal/console"
	"main/internal/core"
	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/venue"
	"main/internal/venue/okx"
	"main/internal/venue/sim"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	snapshotPath := flag.String("snapshot", "", "account snapshot path (empty disables)")
	recoverSnapshot := flag.Bool("recover", false, "restore account state from the snapshot at startup")
	pyroscopeAddr := flag.String("pyroscope", "", "pyroscope server address (empty disables profiling)")
	simStartPrice := flag.String("sim-start-price", "26400", "sim venue starting price")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	inst := cfg.Inst

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "quoter",
			ServerAddress:   *pyroscopeAddr,
			Tags:            map[string]string{"instrument": inst.Name},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	books := book.NewStore(inst)
	store := account.NewStore()
	metrics := obs.NewMetrics()
	ids := obs.NewIDGen(uint64(time.Now().UTC().UnixNano()))

	if *recoverSnapshot && *snapshotPath != "" {
		snap, err := account.ReadSnapshot(*snapshotPath)
		if err != nil {
			log.Fatalf("read account snapshot: %v", err)
		}
		store.ApplySnapshot(snap)
		ids.Bump(snap.LastSeq + 1)
		logs.Infof("recovered account state from %s, position: %d", *snapshotPath, snap.Position)
	}

	var journal *recorder.Writer
	var journalIn feed.Journal
	if journalCfg, enabled := cfg.JournalConfig(); enabled {
		journal, err = recorder.NewWriter(journalCfg)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		if err := journal.Start(ctx); err != nil {
			log.Fatalf("start journal: %v", err)
		}
		journalIn = journal
	}

	sink, err := ledger.Open(cfg.LedgerConfig())
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	go sink.Run(ctx)

	var trader venue.Trader
	var pub venue.PublicFeed
	var priv venue.PrivateFeed
	switch cfg.Venue.Name {
	case "okx":
		okxCfg, err := cfg.OKXConfig()
		if err != nil {
			log.Fatalf("assemble venue config: %v", err)
		}
		trader = okx.NewTrader(okxCfg, inst, nil)
		pub = okx.NewPublicStream(okxCfg, inst)
		priv = okx.NewPrivateStream(okxCfg, inst)
	case "sim":
		start, err := schema.ParseScaled(*simStartPrice, inst.Scale.PriceScale)
		if err != nil {
			log.Fatalf("parse sim start price: %v", err)
		}
		v := sim.New(inst)
		trader = v
		priv = v
		pub = sim.NewFeed(inst, schema.Price(start), 100*time.Millisecond, time.Now().UnixNano())
	}

	quotes, err := quote.NewEngine(inst, cfg.QuoteParams)
	if err != nil {
		log.Fatalf("build quote engine: %v", err)
	}

	cons := console.New(os.Stdout, inst)
	var eng *core.Engine
	gw, err := gateway.New(cfg.GatewayConfig(), trader, store, ids, metrics, gateway.Hooks{
		Request: cons.Action,
		Result: func(req schema.ActionRequest, res schema.ActionResult) {
			cons.Outcome(req, res)
			eng.ObserveResult(req, res)
		},
	})
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}
	eng = core.New(core.Config{}, inst, books, store, quotes, gw, metrics)

	pubSup := feed.NewPublic(cfg.PublicFeedConfig(), inst, pub, books, metrics, journalIn, eng.Kick)
	privSup := feed.NewPrivate(cfg.PrivateFeedConfig(), priv, store, metrics, journalIn)
	privSup.OnFill(sink.RecordFill)

	monitor := risk.NewMonitor(cfg.RiskConfig(), inst, store, books, func(s schema.RiskSample) {
		cons.RiskSummary(s)
		sink.RecordRisk(s)
		if journalIn != nil {
			header := schema.NewHeader(schema.EventRiskSample, schema.SourceRisk, 0, s.Ts, time.Now().UTC().UnixNano())
			_ = journalIn.TryAppend(header, codec.EncodeRiskSample(nil, s))
		}
	})

	go gw.Run(ctx)
	go pubSup.Run(ctx)
	go privSup.Run(ctx)
	go monitor.Run(ctx)
	go ops.WatchQuoteParams(ctx, *configPath, cfg.Quote.ReloadInterval.Std(), eng.SetParams)

	logs.Infof("quoter started, venue: %s, instrument: %s", cfg.Venue.Name, inst.Name)
	eng.Run(ctx)

	// cooperative shutdown: stop intake, withdraw every open order,
	// persist state, flush the journal
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	gw.Close()
	canceled := gw.ShutdownCancelAll(shutdownCtx)
	logs.Infof("shutdown cancel-all issued for %d orders", canceled)

	if *snapshotPath != "" {
		snap := store.SnapshotWithMeta(ids.Next(), time.Now().UTC().UnixNano())
		if err := account.WriteSnapshot(*snapshotPath, snap); err != nil {
			logs.Errorf("write account snapshot, err: %+v", err)
		} else {
			logs.Infof("wrote account snapshot to %s", *snapshotPath)
		}
	}

	if journal != nil {
		if err := journal.Close(); err != nil {
			logs.Errorf("close journal, err: %+v", err)
		}
	}
	logs.Info("quoter stopped")
}
