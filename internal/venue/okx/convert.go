package okx

import (
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// orderStatus maps the venue order state to the local lifecycle.
// Amend-pending states do not exist on the wire; the venue reports the
// post-amend order as live again.
func orderStatus(state string) schema.OrderStatus {
	switch state {
	case "live", "partially_filled":
		return schema.OrderStatusLive
	case "filled":
		return schema.OrderStatusFilled
	case "canceled", "mmp_canceled":
		return schema.OrderStatusCanceled
	default:
		return schema.OrderStatusUnknown
	}
}

func orderSide(side string) schema.Side {
	switch side {
	case "buy":
		return schema.SideBuy
	case "sell":
		return schema.SideSell
	default:
		return schema.SideUnknown
	}
}

// toOrderUpdate normalizes one venue order object. The venue stamps no
// per-order sequence, so the millisecond update time seeds the
// idempotence gate. A busy millisecond can hold several distinct
// updates, so the private stream runs the raw uTime through its
// seqClock before handing the update on; the query path keeps raw
// uTime, which lets any stream push from the same millisecond win.
func toOrderUpdate(inst schema.Instrument, d orderDetail) (schema.OrderUpdate, error) {
	clientID, err := strconv.ParseUint(d.ClOrdID, 10, 64)
	if err != nil {
		return schema.OrderUpdate{}, errors.Wrapf(err, "parse client order id %q", d.ClOrdID)
	}
	exchangeID, _ := strconv.ParseUint(d.OrdID, 10, 64)

	price, err := parsePrice(inst, d.Px.String())
	if err != nil {
		return schema.OrderUpdate{}, err
	}
	size, err := parseQty(inst, d.Sz.String())
	if err != nil {
		return schema.OrderUpdate{}, err
	}
	filled, err := parseQty(inst, d.AccFillSz.String())
	if err != nil {
		return schema.OrderUpdate{}, err
	}
	avgPx, err := parsePrice(inst, d.AvgPx.String())
	if err != nil {
		return schema.OrderUpdate{}, err
	}

	uTime := parseMillis(d.UTime)
	return schema.OrderUpdate{
		ClientID:     clientID,
		ExchangeID:   exchangeID,
		InstrumentID: uint32(inst.ID),
		Status:       orderStatus(d.State),
		Side:         orderSide(d.Side),
		Seq:          uint64(uTime),
		Price:        price,
		Size:         size,
		Remaining:    size - filled,
		Filled:       filled,
		AvgPrice:     avgPx,
		Ts:           uTime * int64(1e6),
	}, nil
}

func toBookUpdate(inst schema.Instrument, action string, d wsBookData, seq uint64) (schema.BookUpdate, error) {
	u := schema.BookUpdate{
		InstrumentID: uint32(inst.ID),
		Seq:          seq,
		Ts:           parseMillis(d.Ts) * int64(1e6),
		Checksum:     uint32(d.Checksum),
	}
	if action == "snapshot" {
		u.Flags |= schema.BookFlagSnapshot
	}

	var err error
	if u.Bids, err = toLevels(inst, d.Bids); err != nil {
		return schema.BookUpdate{}, err
	}
	if u.Asks, err = toLevels(inst, d.Asks); err != nil {
		return schema.BookUpdate{}, err
	}
	return u, nil
}

func toLevels(inst schema.Instrument, rows [][4]decimal.Decimal) ([]schema.BookLevel, error) {
	out := make([]schema.BookLevel, 0, len(rows))
	for _, row := range rows {
		price, err := parsePrice(inst, row[0].String())
		if err != nil {
			return nil, err
		}
		size, err := parseQty(inst, row[1].String())
		if err != nil {
			return nil, err
		}
		out = append(out, schema.BookLevel{Price: price, Size: size})
	}
	return out, nil
}

func toTrade(inst schema.Instrument, d wsTradeData) (schema.Trade, error) {
	price, err := parsePrice(inst, d.Px.String())
	if err != nil {
		return schema.Trade{}, err
	}
	size, err := parseQty(inst, d.Sz.String())
	if err != nil {
		return schema.Trade{}, err
	}
	return schema.Trade{
		InstrumentID: uint32(inst.ID),
		Side:         orderSide(d.Side),
		Price:        price,
		Size:         size,
		Ts:           parseMillis(d.Ts) * int64(1e6),
	}, nil
}

func parsePrice(inst schema.Instrument, s string) (schema.Price, error) {
	if s == "" {
		return 0, nil
	}
	v, err := schema.ParseScaled(s, inst.Scale.PriceScale)
	if err != nil {
		return 0, errors.Wrapf(err, "parse price for %s", inst.Name)
	}
	return schema.Price(v), nil
}

func parseQty(inst schema.Instrument, s string) (schema.Quantity, error) {
	if s == "" {
		return 0, nil
	}
	v, err := schema.ParseScaled(s, inst.Scale.QuantityScale)
	if err != nil {
		return 0, errors.Wrapf(err, "parse quantity for %s", inst.Name)
	}
	return schema.Quantity(v), nil
}

func parseNotional(inst schema.Instrument, s string) (schema.Notional, error) {
	if s == "" {
		return 0, nil
	}
	v, err := schema.ParseScaled(s, inst.Scale.NotionalScale)
	if err != nil {
		return 0, errors.Wrapf(err, "parse notional for %s", inst.Name)
	}
	return schema.Notional(v), nil
}

func parseMillis(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
