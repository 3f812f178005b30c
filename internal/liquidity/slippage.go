package liquidity

import "github.com/aristath/marketedge/internal/domain"

// SlippageResult is the outcome of walking an orderbook for a target
// quantity on one (side, action) combination.
type SlippageResult struct {
	Filled            int64
	Cost              float64 // in cents, sum of price*qty across crossed levels
	BestPrice         float64
	WorstPrice        float64
	LevelsCrossed     int
	AvgFill           float64
	Slippage          float64 // |avg_fill - best_price|
	SlippagePct       float64
	FillableQuantity  int64
	RemainingUnfilled int64
}

// Walk consumes book levels best-to-worst for (side, action, quantity),
// per §4.F: BUY YES and BUY NO both consume levels derived by inverting
// the opposite book side's bids into asks; SELL YES and SELL NO consume
// their own side's bids directly.
func Walk(book domain.OrderbookSnapshot, side domain.Side, action domain.Action, quantity int64) SlippageResult {
	levels := executionLevels(book, side, action)
	return walkLevels(levels, quantity)
}

// executionLevels returns the best-to-worst price levels quantity will be
// filled against for a given (side, action).
func executionLevels(book domain.OrderbookSnapshot, side domain.Side, action domain.Action) []domain.Level {
	switch {
	case side == domain.SideYes && action == domain.ActionBuy:
		return book.YesAskFromNoBids()
	case side == domain.SideYes && action == domain.ActionSell:
		return book.YesBids
	case side == domain.SideNo && action == domain.ActionBuy:
		return book.NoAskFromYesBids()
	case side == domain.SideNo && action == domain.ActionSell:
		return book.NoBids
	default:
		return nil
	}
}

func walkLevels(levels []domain.Level, quantity int64) SlippageResult {
	var result SlippageResult
	remaining := quantity

	for i, lvl := range levels {
		if remaining <= 0 {
			break
		}
		price := float64(lvl.PriceCents)
		if i == 0 {
			result.BestPrice = price
		}
		take := lvl.Quantity
		if take > remaining {
			take = remaining
		}
		result.Filled += take
		result.Cost += price * float64(take)
		result.WorstPrice = price
		result.LevelsCrossed++
		remaining -= take
	}

	result.FillableQuantity = result.Filled
	result.RemainingUnfilled = remaining
	if result.Filled > 0 {
		result.AvgFill = result.Cost / float64(result.Filled)
		result.Slippage = absFloat(result.AvgFill - result.BestPrice)
		if result.BestPrice != 0 {
			result.SlippagePct = result.Slippage / result.BestPrice * 100
		}
	}
	return result
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// MaxSafeSize binary-searches for the largest quantity n such that
// Walk(n).Slippage <= toleranceCents AND RemainingUnfilled == 0. A size
// that can't be fully filled is disqualified regardless of its apparent
// slippage, per §4.F.
func MaxSafeSize(book domain.OrderbookSnapshot, side domain.Side, action domain.Action, toleranceCents float64, upperBound int64) int64 {
	if upperBound <= 0 {
		return 0
	}

	isSafe := func(n int64) bool {
		r := Walk(book, side, action, n)
		return r.RemainingUnfilled == 0 && r.Slippage <= toleranceCents
	}

	if !isSafe(1) {
		return 0
	}
	if isSafe(upperBound) {
		return upperBound
	}

	// isSafe is monotonic non-increasing in n (more size crosses more
	// levels, only ever adding slippage or leaving a remainder), so a
	// standard binary search finds the boundary.
	lo, hi := int64(1), upperBound
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if isSafe(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
