// Paper runs the full quoting engine against the in-memory sim venue:
// a random-walk feed drives the book, resting orders fill when the walk
// crosses them, and the run ends with a risk summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/internal/account"
	"main/internal/book"
	"main/internal/console"
	"main/internal/core"
	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/venue/sim"
)

func main() {
	configPath := flag.String("config", "config.json", "path to JSON config")
	duration := flag.Duration("duration", time.Minute, "how long to trade (0=until interrupted)")
	startPrice := flag.String("start-price", "26400", "starting price for the walk")
	stepInterval := flag.Duration("step-interval", 50*time.Millisecond, "feed step interval")
	seed := flag.Int64("seed", 1, "walk seed")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	inst := cfg.Inst

	start, err := schema.ParseScaled(*startPrice, inst.Scale.PriceScale)
	if err != nil {
		log.Fatalf("parse start price: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	v := sim.New(inst)
	pubFeed := sim.NewFeed(inst, schema.Price(start), *stepInterval, *seed)

	books := book.NewStore(inst)
	store := account.NewStore()
	metrics := obs.NewMetrics()
	cons := console.New(os.Stdout, inst)

	quotes, err := quote.NewEngine(inst, cfg.QuoteParams)
	if err != nil {
		log.Fatalf("build quote engine: %v", err)
	}

	var eng *core.Engine
	gw, err := gateway.New(cfg.GatewayConfig(), v, store, obs.NewIDGen(1), metrics, gateway.Hooks{
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

	// every book move also drives paper matching against resting orders
	onChange := func() {
		view := books.View()
		if view.HasBid && view.HasAsk {
			v.MatchBook(view.BestBid.Price, view.BestAsk.Price)
		}
		eng.Kick()
	}

	pubSup := feed.NewPublic(cfg.PublicFeedConfig(), inst, pubFeed, books, metrics, nil, onChange)
	privSup := feed.NewPrivate(cfg.PrivateFeedConfig(), v, store, metrics, nil)
	monitor := risk.NewMonitor(cfg.RiskConfig(), inst, store, books, func(s schema.RiskSample) {
		cons.RiskSummary(s)
	})

	go gw.Run(ctx)
	go pubSup.Run(ctx)
	go privSup.Run(ctx)
	go monitor.Run(ctx)

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	gw.Close()
	gw.ShutdownCancelAll(shutdownCtx)

	printSummary(inst, store, books, metrics, monitor)
}

func printSummary(inst schema.Instrument, store *account.Store, books *book.Store, metrics *obs.Metrics, monitor *risk.Monitor) {
	sample := monitor.Sample(time.Now().UTC().UnixNano())
	meas := store.Measurement()
	snap := metrics.Snapshot()

	fmt.Println()
	fmt.Println("==== Paper Run ====")
	fmt.Printf("instrument:   %s\n", inst.Name)
	fmt.Printf("position:     %s\n", schema.FormatScaled(int64(sample.Position), inst.Scale.QuantityScale))
	fmt.Printf("net filled:   %s\n", schema.FormatScaled(int64(meas.NetFilled), inst.Scale.QuantityScale))
	fmt.Printf("volume:       %s\n", schema.FormatScaled(int64(meas.Volume), inst.Scale.QuantityScale))
	fmt.Printf("pnl:          %s %s\n", schema.FormatScaled(int64(sample.PnL), inst.Scale.NotionalScale), inst.QuoteCcy)
	fmt.Printf("book seq:     %d\n", books.Seq())
	fmt.Printf("skipped:      %d cycles\n", snap.SkippedCycles)
	fmt.Printf("queue drops:  %d\n", snap.QueueDrops)
	fmt.Printf("resyncs:      %d\n", snap.Resyncs)
}
