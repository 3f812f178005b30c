package scanner

import (
	"github.com/markcheno/go-talib"

	"github.com/aristath/marketedge/internal/domain"
)

// momentumPeriod is the lookback go-talib's Mom uses. Chosen to match a
// typical intraday candlestick cadence rather than any spec-mandated
// value; this enriches the movers mode's ranking, it is not itself a
// pass/fail gate.
const momentumPeriod = 10

// momentumScore computes the most recent go-talib momentum value over a
// candlestick close series, mirroring the teacher's
// closes-in/last-value-out shape for indicator wrappers. Returns nil when
// there isn't enough history for the period.
func momentumScore(candles []domain.Candlestick) *float64 {
	if len(candles) < momentumPeriod+1 {
		return nil
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	mom := talib.Mom(closes, momentumPeriod)
	if len(mom) == 0 {
		return nil
	}
	last := mom[len(mom)-1]
	if last != last { // NaN guard, same check the teacher's formulas package uses
		return nil
	}
	return &last
}
