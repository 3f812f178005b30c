package liquidity

import (
	"math"

	"github.com/aristath/marketedge/internal/domain"
)

// Grade is the composite liquidity bucket a market falls into.
type Grade string

const (
	GradeIlliquid Grade = "illiquid"
	GradeThin     Grade = "thin"
	GradeModerate Grade = "moderate"
	GradeLiquid   Grade = "liquid"
)

// Default composite-score weights and radius, per §4.F.
const (
	WeightSpread = 0.30
	WeightDepth  = 0.30
	WeightVolume = 0.20
	WeightOI     = 0.20

	DefaultDepthRadiusCents = 10.0
)

// Analysis is the full §4.F LiquidityAnalysis output for one market.
type Analysis struct {
	Score         float64
	Grade         Grade
	Depth         DepthResult
	MaxSafeSize   int64
	Warnings      []string
}

// Analyze computes the composite liquidity analysis for a market and its
// current orderbook, using DefaultDepthRadiusCents and a 5-cent slippage
// tolerance for the max-safe-size search.
func Analyze(m domain.Market, book domain.OrderbookSnapshot) Analysis {
	spreadCents := m.SpreadCents()
	mid := m.Midpoint() * 100 // cents, to match level price units

	depth := Depth(book, mid, DefaultDepthRadiusCents)
	score := CompositeScore(spreadCents, depth.WeightedScore, float64(m.Volume24h), float64(m.OpenInterest))
	grade := GradeFor(score)

	maxSafe := MaxSafeSize(book, domain.SideYes, domain.ActionBuy, 5.0, 10_000)

	return Analysis{
		Score:       score,
		Grade:       grade,
		Depth:       depth,
		MaxSafeSize: maxSafe,
		Warnings:    Warnings(m, spreadCents, depth),
	}
}

// CompositeScore blends spread, depth, 24h volume, and open interest per
// the §4.F weighting table. Each component is floored to a whole point
// before weighting (spec.md S5: 82.3→82, 70.12→70, 68.42→68), and the
// weighted sum is rounded to the nearest whole point.
func CompositeScore(spreadCents, weightedDepth, volume24h, openInterest float64) float64 {
	spreadComponent := math.Floor(math.Max(0, 100-5*spreadCents))
	depthComponent := math.Floor(math.Min(100, weightedDepth/10))
	volumeComponent := math.Floor(math.Min(100, volume24h/100))
	oiComponent := math.Floor(math.Min(100, openInterest/50))

	return math.Round(WeightSpread*spreadComponent + WeightDepth*depthComponent + WeightVolume*volumeComponent + WeightOI*oiComponent)
}

// GradeFor maps a composite score to its liquidity grade.
func GradeFor(score float64) Grade {
	switch {
	case score >= 76:
		return GradeLiquid
	case score >= 51:
		return GradeModerate
	case score >= 26:
		return GradeThin
	default:
		return GradeIlliquid
	}
}

// Warnings flags the four conditions called out in §4.F.
func Warnings(m domain.Market, spreadCents float64, depth DepthResult) []string {
	var warnings []string
	if spreadCents > 10 {
		warnings = append(warnings, "spread exceeds 10 cents")
	}
	if depth.YesTotal+depth.NoTotal < 100 {
		warnings = append(warnings, "total resting contracts below 100")
	}
	if math.Abs(depth.Imbalance) > 0.5 {
		warnings = append(warnings, "orderbook imbalance exceeds 0.5")
	}
	if m.Volume24h < 1000 {
		warnings = append(warnings, "24h volume below 1000 contracts")
	}
	return warnings
}
