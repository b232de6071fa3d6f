// Package console renders operator-facing lines for every order action
// and the periodic risk summary block. Rendering is byte-append onto a
// reused buffer; nothing here allocates per field.
package console

import (
	"io"
	"strconv"
	"sync"
	"time"

	"main/internal/schema"
)

// Console writes human-readable engine output. Safe for concurrent use.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	inst schema.Instrument
	buf  []byte
}

// New builds a console over the given writer, usually os.Stdout.
func New(w io.Writer, inst schema.Instrument) *Console {
	return &Console{
		w:    w,
		inst: inst,
		buf:  make([]byte, 0, 256),
	}
}

// Action prints one line per dispatched order action:
//
//	PLACE ORDER buy 2 BTC-USDT-SWAP @ 26441.4, req: 1042
func (c *Console) Action(req schema.ActionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.buf[:0]
	switch req.Kind {
	case schema.ActionPlace:
		buf = append(buf, "PLACE ORDER "...)
	case schema.ActionAmend:
		buf = append(buf, "AMEND ORDER "...)
	case schema.ActionCancel:
		buf = append(buf, "CANCEL ORDER "...)
	default:
		return
	}
	buf = append(buf, req.Side.String()...)
	if req.Size > 0 {
		buf = append(buf, ' ')
		buf = schema.AppendScaled(buf, int64(req.Size), c.inst.Scale.QuantityScale)
	}
	buf = append(buf, ' ')
	buf = append(buf, c.inst.Name...)
	if req.Price > 0 {
		buf = append(buf, " @ "...)
		buf = schema.AppendScaled(buf, int64(req.Price), c.inst.Scale.PriceScale)
	}
	buf = append(buf, ", req: "...)
	buf = strconv.AppendUint(buf, req.RequestID, 10)
	buf = append(buf, '\n')

	c.buf = buf
	c.w.Write(buf)
}

// Outcome prints failures and timeouts; accepted actions stay quiet,
// their effect shows up on the private stream.
func (c *Console) Outcome(req schema.ActionRequest, res schema.ActionResult) {
	if res.Outcome == schema.OutcomeAcked {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.buf[:0]
	buf = append(buf, "ORDER "...)
	buf = append(buf, req.Kind.String()...)
	buf = append(buf, ' ')
	buf = append(buf, res.Outcome.String()...)
	buf = append(buf, ", req: "...)
	buf = strconv.AppendUint(buf, res.RequestID, 10)
	if res.Code != 0 {
		buf = append(buf, ", code: "...)
		buf = strconv.AppendUint(buf, uint64(res.Code), 10)
	}
	buf = append(buf, '\n')

	c.buf = buf
	c.w.Write(buf)
}

// RiskSummary prints the periodic risk block.
func (c *Console) RiskSummary(s schema.RiskSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scale := c.inst.Scale
	buf := c.buf[:0]
	buf = append(buf, "==== Risk Summary ====\n"...)
	buf = appendTimeRow(buf, "time", s.Ts)
	buf = appendTimeRow(buf, "inception", s.InceptionTs)

	buf = append(buf, "pnl since inception ("...)
	buf = append(buf, c.inst.QuoteCcy...)
	buf = append(buf, "): "...)
	buf = schema.AppendScaled(buf, int64(s.PnL), scale.NotionalScale)
	buf = append(buf, '\n')

	buf = append(buf, "asset value ("...)
	buf = append(buf, c.inst.QuoteCcy...)
	buf = append(buf, "): "...)
	buf = schema.AppendScaled(buf, int64(s.AssetValue), scale.NotionalScale)
	buf = append(buf, '\n')

	buf = append(buf, "instrument: "...)
	buf = append(buf, c.inst.Name...)
	buf = append(buf, '\n')

	buf = append(buf, "exposure ("...)
	buf = append(buf, c.inst.BaseCcy...)
	buf = append(buf, "): "...)
	buf = schema.AppendScaled(buf, int64(s.ExposureBase), scale.QuantityScale)
	buf = append(buf, '\n')

	buf = append(buf, "exposure ("...)
	buf = append(buf, c.inst.QuoteCcy...)
	buf = append(buf, "): "...)
	buf = schema.AppendScaled(buf, int64(s.ExposureQuote), scale.NotionalScale)
	buf = append(buf, '\n')

	buf = append(buf, "net traded position: "...)
	buf = schema.AppendScaled(buf, int64(s.NetFilled), scale.QuantityScale)
	buf = append(buf, '\n')

	buf = append(buf, "net trading volume: "...)
	buf = schema.AppendScaled(buf, int64(s.Volume), scale.QuantityScale)
	buf = append(buf, '\n')

	buf = append(buf, "mark price: "...)
	buf = schema.AppendScaled(buf, int64(s.MarkPrice), scale.PriceScale)
	if s.Flags&schema.RiskFlagStaleMark != 0 {
		buf = append(buf, " (stale)"...)
	}
	buf = append(buf, '\n')

	c.buf = buf
	c.w.Write(buf)
}

func appendTimeRow(buf []byte, label string, ts int64) []byte {
	buf = append(buf, label...)
	buf = append(buf, ": "...)
	if ts == 0 {
		buf = append(buf, "-"...)
	} else {
		buf = time.Unix(0, ts).UTC().AppendFormat(buf, time.RFC3339)
	}
	return append(buf, '\n')
}
