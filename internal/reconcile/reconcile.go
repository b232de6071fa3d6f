// Package reconcile diffs the desired quote ladder against resting orders
// and produces the minimal action plan that converges the two.
package reconcile

import (
	"sort"

	"main/internal/account"
	"main/internal/quote"
	"main/internal/schema"
)

// Options tunes one diff pass.
type Options struct {
	// Tolerance is the maximum price distance still treated as the same
	// level. Zero means one tick.
	Tolerance schema.Price
	// InFlight holds client ids with an unresolved action; their levels
	// are left alone this cycle.
	InFlight map[uint64]struct{}
}

// Plan is the ordered outcome of one diff: cancels release open-order
// quota before amends move levels and places add new ones.
type Plan struct {
	Cancels []schema.ActionRequest
	Amends  []schema.ActionRequest
	Places  []schema.ActionRequest
}

// Empty reports whether the plan carries no actions.
func (p Plan) Empty() bool {
	return len(p.Cancels) == 0 && len(p.Amends) == 0 && len(p.Places) == 0
}

// Len returns the total action count.
func (p Plan) Len() int {
	return len(p.Cancels) + len(p.Amends) + len(p.Places)
}

// Requests flattens the plan in dispatch order.
func (p Plan) Requests() []schema.ActionRequest {
	out := make([]schema.ActionRequest, 0, p.Len())
	out = append(out, p.Cancels...)
	out = append(out, p.Amends...)
	out = append(out, p.Places...)
	return out
}

// Diff matches targets against open orders per side. Orders equivalent to
// a target (price within tolerance, matching remaining size) are left
// untouched, leftover orders and targets are paired level by level into
// amends, and the surplus becomes cancels or places. An order never
// receives more than one action per cycle.
func Diff(targets []quote.Target, open []account.Order, inst schema.Instrument, opts Options) Plan {
	tol := opts.Tolerance
	if tol <= 0 {
		tol = inst.TickSize
	}

	var plan Plan
	for _, side := range []schema.Side{schema.SideBuy, schema.SideSell} {
		diffSide(&plan, side, targets, open, inst, tol, opts.InFlight)
	}
	return plan
}

func diffSide(plan *Plan, side schema.Side, targets []quote.Target, open []account.Order, inst schema.Instrument, tol schema.Price, inFlight map[uint64]struct{}) {
	want := make([]quote.Target, 0, len(targets))
	for _, target := range targets {
		if target.Side == side {
			want = append(want, target)
		}
	}

	matchable := make([]account.Order, 0, len(open))
	busy := make([]account.Order, 0)
	for _, ord := range open {
		if ord.Side != side || ord.Status.Terminal() {
			continue
		}
		if _, held := inFlight[ord.ClientID]; held || ord.Status != schema.OrderStatusLive {
			busy = append(busy, ord)
			continue
		}
		matchable = append(matchable, ord)
	}

	sortTargets(want, side)
	sortOrders(matchable, side)

	// Levels with an unresolved action are off limits this cycle: the
	// nearest in-tolerance target is consumed so it is neither placed
	// again nor does its order get cancelled.
	for _, ord := range busy {
		if idx := nearestTarget(want, ord.Price, tol); idx >= 0 {
			want = append(want[:idx], want[idx+1:]...)
		}
	}

	// Keep orders already equivalent to a target. When several orders
	// sit within tolerance of one target the longest-resting wins.
	for ti := 0; ti < len(want); {
		oi := -1
		for i, ord := range matchable {
			if priceDistance(ord.Price, want[ti].Price) > tol {
				continue
			}
			if ord.Remaining != want[ti].Size {
				continue
			}
			if oi < 0 || restsLonger(ord, matchable[oi]) {
				oi = i
			}
		}
		if oi < 0 {
			ti++
			continue
		}
		matchable = append(matchable[:oi], matchable[oi+1:]...)
		want = append(want[:ti], want[ti+1:]...)
	}

	// Pair the leftovers level by level, amending orders onto their new
	// target; the surplus on either side becomes places or cancels.
	n := len(want)
	if len(matchable) > n {
		n = len(matchable)
	}
	for i := 0; i < n; i++ {
		if i >= len(matchable) {
			plan.Places = append(plan.Places, schema.ActionRequest{
				InstrumentID: uint32(inst.ID),
				Kind:         schema.ActionPlace,
				Side:         side,
				Price:        want[i].Price,
				Size:         want[i].Size,
			})
			continue
		}
		ord := matchable[i]
		if i >= len(want) {
			plan.Cancels = append(plan.Cancels, schema.ActionRequest{
				ClientID:     ord.ClientID,
				InstrumentID: uint32(inst.ID),
				Kind:         schema.ActionCancel,
				Side:         side,
				Price:        ord.Price,
			})
			continue
		}
		if ord.Price == want[i].Price && ord.Remaining == want[i].Size {
			continue
		}
		// The amended size covers what already filled plus the new
		// resting amount, so the venue sees a total, not a remainder.
		plan.Amends = append(plan.Amends, schema.ActionRequest{
			ClientID:     ord.ClientID,
			InstrumentID: uint32(inst.ID),
			Kind:         schema.ActionAmend,
			Side:         side,
			Price:        want[i].Price,
			Size:         ord.Filled + want[i].Size,
		})
	}
}

func sortTargets(targets []quote.Target, side schema.Side) {
	sort.SliceStable(targets, func(i, j int) bool {
		if side == schema.SideBuy {
			return targets[i].Price > targets[j].Price
		}
		return targets[i].Price < targets[j].Price
	})
}

func sortOrders(orders []account.Order, side schema.Side) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Price != orders[j].Price {
			if side == schema.SideBuy {
				return orders[i].Price > orders[j].Price
			}
			return orders[i].Price < orders[j].Price
		}
		return restsLonger(orders[i], orders[j])
	})
}

// restsLonger reports whether a rests longer than b, falling back to the
// client id so the order is total.
func restsLonger(a, b account.Order) bool {
	if a.CreatedTs != b.CreatedTs {
		return a.CreatedTs < b.CreatedTs
	}
	return a.ClientID < b.ClientID
}

func nearestTarget(targets []quote.Target, price schema.Price, tol schema.Price) int {
	best := -1
	var bestDist schema.Price
	for i, target := range targets {
		d := priceDistance(target.Price, price)
		if d > tol {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func priceDistance(a, b schema.Price) schema.Price {
	if a > b {
		return a - b
	}
	return b - a
}
