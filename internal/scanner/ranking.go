package scanner

import "math"

// closeRaceScore implements spec.md §4.G's tie-break ranking formula:
// 0.5·(1 − |2·mid − 1|) + 0.3·log10(volume_24h+1)/6 + 0.2·(1 − min(spread, 20)/20)
func closeRaceScore(mid float64, volume24h int64, spreadCents float64) float64 {
	closeness := 1 - math.Abs(2*mid-1)
	volumeTerm := math.Log10(float64(volume24h)+1) / 6
	cappedSpread := math.Min(spreadCents, 20)
	spreadTerm := 1 - cappedSpread/20

	return 0.5*closeness + 0.3*volumeTerm + 0.2*spreadTerm
}
