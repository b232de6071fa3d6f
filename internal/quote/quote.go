// Package quote derives the desired resting-order ladder from the live
// book and current inventory. ComputeTargets is pure; Engine wraps it
// with reloadable parameters.
package quote

import (
	"fmt"
	"sync"

	"main/internal/book"
	"main/internal/schema"
	"main/pkg/exception"
)

const (
	maxInt64 = int64(^uint64(0) >> 1)
	bpsDenom = int64(10_000)
)

// Params tunes the quoting ladder. All fields are hot reloadable.
type Params struct {
	Depth        int             `json:"depth"`
	SpacingBps   int64           `json:"spacingBps"`
	SizeMultiple int64           `json:"sizeMultiple"`
	MaxNetBuy    schema.Quantity `json:"maxNetBuy"`
	MaxNetSell   schema.Quantity `json:"maxNetSell"`
}

// Validate rejects parameter sets the ladder math cannot work with.
func (p Params) Validate() error {
	if p.Depth <= 0 {
		return fmt.Errorf("quote: depth must be positive, got %d", p.Depth)
	}
	if p.SpacingBps <= 0 {
		return fmt.Errorf("quote: spacing must be positive, got %d bps", p.SpacingBps)
	}
	if p.SpacingBps*int64(p.Depth) >= bpsDenom {
		return fmt.Errorf("quote: spacing %d bps over %d levels reaches zero", p.SpacingBps, p.Depth)
	}
	if p.SizeMultiple <= 0 {
		return fmt.Errorf("quote: size multiple must be positive, got %d", p.SizeMultiple)
	}
	if p.MaxNetBuy <= 0 || p.MaxNetSell <= 0 {
		return fmt.Errorf("quote: net position limits must be positive, got buy %d sell %d", p.MaxNetBuy, p.MaxNetSell)
	}
	return nil
}

// Target is one desired resting order.
type Target struct {
	Side  schema.Side
	Price schema.Price
	Size  schema.Quantity
}

// ComputeTargets builds the quote ladder for the given book view and net
// position. Buy targets come first in descending price order, then sell
// targets in ascending order. Returns exception.ErrDegenerateBook when the
// view carries no usable reference price.
func ComputeTargets(view book.View, inst schema.Instrument, p Params, net schema.Quantity) ([]Target, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !view.HasBid && !view.HasAsk {
		return nil, exception.ErrDegenerateBook
	}

	// One-sided books quote around the surviving side.
	bidRef, askRef := view.BestBid, view.BestAsk
	if !view.HasAsk {
		askRef = bidRef
	}
	if !view.HasBid {
		bidRef = askRef
	}

	size := orderSize(inst, p.SizeMultiple)
	if size <= 0 {
		return nil, fmt.Errorf("quote: instrument %s yields non-positive order size", inst.Name)
	}

	buyLevels, sellLevels := p.Depth, p.Depth
	if net > 0 {
		buyLevels = skewLevels(p.Depth, net, p.MaxNetBuy)
	}
	if net < 0 {
		sellLevels = skewLevels(p.Depth, -net, p.MaxNetSell)
	}

	targets := make([]Target, 0, buyLevels+sellLevels)

	var prev schema.Price
	for i := 0; i < buyLevels; i++ {
		px, ok := ladderPrice(bidRef.Price, p.SpacingBps*int64(i+1), schema.SideBuy, inst.TickSize)
		if !ok {
			break
		}
		// Coarse ticks can collapse adjacent levels; keep the ladder
		// strictly monotonic by stepping below the previous level.
		if i > 0 && px >= prev {
			px = prev - inst.TickSize
		}
		if px <= 0 {
			break
		}
		prev = px
		targets = append(targets, Target{Side: schema.SideBuy, Price: px, Size: size})
	}

	prev = 0
	for i := 0; i < sellLevels; i++ {
		px, ok := ladderPrice(askRef.Price, p.SpacingBps*int64(i+1), schema.SideSell, inst.TickSize)
		if !ok {
			break
		}
		if i > 0 && px <= prev {
			px = prev + inst.TickSize
		}
		prev = px
		targets = append(targets, Target{Side: schema.SideSell, Price: px, Size: size})
	}

	return targets, nil
}

// Engine evaluates quote targets against a fixed instrument with
// parameters that survive hot reload.
type Engine struct {
	mu     sync.RWMutex
	inst   schema.Instrument
	params Params
}

// NewEngine creates a quote engine after validating the initial parameters.
func NewEngine(inst schema.Instrument, params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{inst: inst, params: params}, nil
}

// Params returns the active parameter set.
func (e *Engine) Params() Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// SetParams swaps the parameter set, rejecting invalid values so a bad
// reload cannot take the quoter down.
func (e *Engine) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
	return nil
}

// Targets computes the desired ladder for the current view and net position.
func (e *Engine) Targets(view book.View, net schema.Quantity) ([]Target, error) {
	e.mu.RLock()
	p := e.params
	e.mu.RUnlock()
	return ComputeTargets(view, e.inst, p, net)
}

// orderSize resolves the per-level order size: the configured multiple of
// the lot size, raised to the minimum size when required, rounded to lot.
func orderSize(inst schema.Instrument, multiple int64) schema.Quantity {
	lot := int64(inst.LotSize)
	if lot <= 0 {
		return 0
	}
	if multiple > maxInt64/lot {
		return 0
	}
	size := multiple * lot
	if size < int64(inst.MinSize) {
		size = int64(inst.MinSize)
	}
	return roundToLot(schema.Quantity(size), inst.LotSize)
}

// skewLevels shrinks one side of the ladder as inventory approaches its
// limit: ceil(depth * (limit-net)/limit), zero at or beyond the limit.
func skewLevels(depth int, net, limit schema.Quantity) int {
	if net >= limit {
		return 0
	}
	room := int64(limit - net)
	if room > maxInt64/int64(depth) {
		return depth
	}
	n := int64(depth) * room
	return int((n + int64(limit) - 1) / int64(limit))
}

// ladderPrice places level k of the ladder at ref*(1 -/+ bps/10000) and
// trims it to the tick grid, floor for buys and ceil for sells. The false
// return means the arithmetic left int64 range.
func ladderPrice(ref schema.Price, bps int64, side schema.Side, tick schema.Price) (schema.Price, bool) {
	mult := bpsDenom - bps
	if side == schema.SideSell {
		mult = bpsDenom + bps
	}
	if mult <= 0 || ref <= 0 || tick <= 0 {
		return 0, false
	}
	if int64(ref) > maxInt64/mult {
		return 0, false
	}
	num := int64(ref) * mult
	step := bpsDenom * int64(tick)
	if side == schema.SideBuy {
		return schema.Price(num / step * int64(tick)), true
	}
	return schema.Price((num + step - 1) / step * int64(tick)), true
}

// roundToLot snaps a quantity to the nearest lot, half away from zero.
func roundToLot(q schema.Quantity, lot schema.Quantity) schema.Quantity {
	if lot <= 0 {
		return q
	}
	l := int64(lot)
	v := int64(q)
	if v >= 0 {
		return schema.Quantity((v + l/2) / l * l)
	}
	return schema.Quantity(-((-v + l/2) / l * l))
}
