package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	dir := flag.String("dir", "testdata/journal", "journal directory")
	prefix := flag.String("prefix", "", "journal file prefix (default: journal)")
	speed := flag.Float64("speed", 0, "playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "decode known payload types")
	flag.Parse()

	cfg := recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		UseRecvTime:     *useRecv,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	}
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	ctx := context.Background()
	var index int
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		index++
		fmt.Printf("%06d seq=%d type=%s ts_event=%d ts_recv=%d len=%d\n", index, header.Seq, eventTypeName(header.Type), header.TsEvent, header.TsRecv, len(payload))
		if *decode {
			printDecoded(header.Type, payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}
}

func eventTypeName(t schema.EventType) string {
	switch t {
	case schema.EventBookSnapshot:
		return "BookSnapshot"
	case schema.EventBookDelta:
		return "BookDelta"
	case schema.EventTrade:
		return "Trade"
	case schema.EventOrderUpdate:
		return "OrderUpdate"
	case schema.EventPositionUpdate:
		return "PositionUpdate"
	case schema.EventBalanceUpdate:
		return "BalanceUpdate"
	case schema.EventActionRequest:
		return "ActionRequest"
	case schema.EventActionResult:
		return "ActionResult"
	case schema.EventFill:
		return "Fill"
	case schema.EventRiskSample:
		return "RiskSample"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

func printDecoded(t schema.EventType, payload []byte) {
	switch t {
	case schema.EventBookSnapshot, schema.EventBookDelta:
		u, ok := codec.DecodeBookUpdate(payload)
		if !ok {
			fmt.Println("  decode BookUpdate failed")
			return
		}
		fmt.Printf("  book inst=%d seq=%d checksum=%d bids=%d asks=%d\n",
			u.InstrumentID, u.Seq, u.Checksum, len(u.Bids), len(u.Asks))
		for _, lvl := range u.Bids {
			fmt.Printf("    bid %d x %d\n", lvl.Price, lvl.Size)
		}
		for _, lvl := range u.Asks {
			fmt.Printf("    ask %d x %d\n", lvl.Price, lvl.Size)
		}
	case schema.EventTrade:
		trade, ok := codec.DecodeTrade(payload)
		if !ok {
			fmt.Println("  decode Trade failed")
			return
		}
		fmt.Printf("  trade inst=%d side=%s price=%d size=%d\n",
			trade.InstrumentID, trade.Side, trade.Price, trade.Size)
	case schema.EventOrderUpdate:
		u, ok := codec.DecodeOrderUpdate(payload)
		if !ok {
			fmt.Println("  decode OrderUpdate failed")
			return
		}
		fmt.Printf("  order client=%d exchange=%d status=%s side=%s price=%d size=%d filled=%d\n",
			u.ClientID, u.ExchangeID, u.Status, u.Side, u.Price, u.Size, u.Filled)
	case schema.EventPositionUpdate:
		u, ok := codec.DecodePositionUpdate(payload)
		if !ok {
			fmt.Println("  decode PositionUpdate failed")
			return
		}
		fmt.Printf("  position inst=%d pos=%d avg_px=%d\n", u.InstrumentID, u.Position, u.AvgPrice)
	case schema.EventBalanceUpdate:
		u, ok := codec.DecodeBalanceUpdate(payload)
		if !ok {
			fmt.Println("  decode BalanceUpdate failed")
			return
		}
		fmt.Printf("  balance ccy=%s avail=%d frozen=%d\n", u.Currency, u.Available, u.Frozen)
	case schema.EventActionRequest:
		req, ok := codec.DecodeActionRequest(payload)
		if !ok {
			fmt.Println("  decode ActionRequest failed")
			return
		}
		fmt.Printf("  action req=%d client=%d kind=%s side=%s price=%d size=%d\n",
			req.RequestID, req.ClientID, req.Kind, req.Side, req.Price, req.Size)
	case schema.EventActionResult:
		res, ok := codec.DecodeActionResult(payload)
		if !ok {
			fmt.Println("  decode ActionResult failed")
			return
		}
		fmt.Printf("  result req=%d client=%d outcome=%s attempt=%d code=%d\n",
			res.RequestID, res.ClientID, res.Outcome, res.Attempt, res.Code)
	case schema.EventFill:
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			fmt.Println("  decode Fill failed")
			return
		}
		fmt.Printf("  fill client=%d side=%s price=%d qty=%d fee=%d\n",
			fill.ClientID, fill.Side, fill.Price, fill.Qty, fill.Fee)
	case schema.EventRiskSample:
		sample, ok := codec.DecodeRiskSample(payload)
		if !ok {
			fmt.Println("  decode RiskSample failed")
			return
		}
		fmt.Printf("  risk inst=%d mark=%d pos=%d pnl=%d asset=%d\n",
			sample.InstrumentID, sample.MarkPrice, sample.Position, sample.PnL, sample.AssetValue)
	default:
		return
	}
}
