// Package liquidity computes depth scores, slippage estimates, and the
// composite liquidity grade from an orderbook snapshot. Every function here
// is pure: no I/O, no clock, no randomness — the same (Market,
// OrderbookSnapshot) pair always yields the same LiquidityAnalysis.
package liquidity

import "github.com/aristath/marketedge/internal/domain"

// DepthResult is the distance-weighted depth score within a price radius
// of the midpoint, plus raw per-side totals and the imbalance ratio.
type DepthResult struct {
	WeightedScore float64
	YesTotal      int64
	NoTotal       int64
	Imbalance     float64 // (yes - no) / total, 0 when both sides are empty
}

// Depth computes the weighted depth score within radius r cents of mid,
// per §4.F: each level's effective price is p for YES bids and 100-p for
// NO bids; levels farther than r cents from mid contribute zero weight.
func Depth(book domain.OrderbookSnapshot, mid float64, r float64) DepthResult {
	var weighted float64
	var yesTotal, noTotal int64

	for _, lvl := range book.YesBids {
		yesTotal += lvl.Quantity
		weighted += depthWeight(float64(lvl.PriceCents), mid, r) * float64(lvl.Quantity)
	}
	for _, lvl := range book.NoBids {
		noTotal += lvl.Quantity
		effPrice := 100 - float64(lvl.PriceCents)
		weighted += depthWeight(effPrice, mid, r) * float64(lvl.Quantity)
	}

	total := yesTotal + noTotal
	imbalance := 0.0
	if total > 0 {
		imbalance = float64(yesTotal-noTotal) / float64(total)
	}

	return DepthResult{WeightedScore: weighted, YesTotal: yesTotal, NoTotal: noTotal, Imbalance: imbalance}
}

func depthWeight(effPrice, mid, r float64) float64 {
	d := effPrice - mid
	if d < 0 {
		d = -d
	}
	if d > r {
		return 0
	}
	return 1 - d/(r+1)
}
