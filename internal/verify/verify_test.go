package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/liquidity"
)

func baseResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		Ticker:               "T-1",
		PredictedProbability: 0.6,
		Confidence:           domain.ConfidenceMedium,
		Reasoning:            "because",
		Factors: []domain.Factor{
			{Claim: "strong jobs report", Polarity: "bullish", Sources: []string{"https://a"}},
		},
		Citations: []string{"https://a", "https://b"},
	}
}

func TestVerifyGroundingScoreReflectsCitedFactors(t *testing.T) {
	result := baseResult()
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.Equal(t, 1.0, report.GroundingScore)
}

func TestVerifyFlagsUngroundedFactor(t *testing.T) {
	result := baseResult()
	result.Factors = append(result.Factors, domain.Factor{Claim: "vibes", Polarity: "bullish", Sources: []string{"https://unlisted"}})
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.False(t, report.Passed)
	assert.Equal(t, 0.5, report.GroundingScore)
}

func TestVerifyRejectsHighConfidenceOnLargeGapWithFewCitations(t *testing.T) {
	result := baseResult()
	result.Confidence = domain.ConfidenceHigh
	result.PredictedProbability = 0.9 // gap 0.4 vs market 0.5
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.False(t, report.Passed)
	assert.Contains(t, report.CalibrationNote, "large gap")
}

func TestVerifyAllowsHighConfidenceOnLargeGapWithEnoughCitations(t *testing.T) {
	result := baseResult()
	result.Confidence = domain.ConfidenceHigh
	result.PredictedProbability = 0.9
	result.Citations = []string{"https://a", "https://b", "https://c"}
	result.Factors[0].Sources = []string{"https://a"}
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.NotContains(t, report.CalibrationNote, "large gap")
}

func TestVerifyRejectsNearMarketPredictionWithNonLowConfidence(t *testing.T) {
	result := baseResult()
	result.PredictedProbability = 0.505
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.False(t, report.Passed)
	assert.Contains(t, report.CalibrationNote, "near-market")
}

func TestVerifyAllowsNearMarketPredictionWithLowConfidence(t *testing.T) {
	result := baseResult()
	result.PredictedProbability = 0.505
	result.Confidence = domain.ConfidenceLow
	report := Verify(result, 0.5, liquidity.GradeThin)
	assert.NotContains(t, report.CalibrationNote, "near-market")
}

func TestVerifyFlagsConsistencyIssueWhenBullishFactorContradictsNegativeGap(t *testing.T) {
	result := baseResult()
	result.PredictedProbability = 0.3 // below market 0.5, but factor is bullish
	report := Verify(result, 0.5, liquidity.GradeThin)
	require.Len(t, report.ConsistencyIssues, 1)
	assert.False(t, report.Passed)
}

func TestVerifyEscalatesOnLowConfidence(t *testing.T) {
	result := baseResult()
	result.Confidence = domain.ConfidenceLow
	report := Verify(result, 0.6, liquidity.GradeThin) // gap 0 avoids other triggers
	assert.True(t, report.SuggestedEscalation)
	assert.Contains(t, report.EscalationReasons, "confidence is low")
}

func TestVerifyEscalatesOnHighGapWithLiquidMarket(t *testing.T) {
	result := baseResult()
	result.PredictedProbability = 0.8
	report := Verify(result, 0.5, liquidity.GradeLiquid) // gap 0.3 > HighEVThreshold
	assert.True(t, report.SuggestedEscalation)
	assert.Contains(t, report.EscalationReasons, "large predicted/market gap on a tradeable market")
}

func TestVerifyDoesNotEscalateOnHighGapWithIlliquidMarket(t *testing.T) {
	result := baseResult()
	result.PredictedProbability = 0.8
	result.Citations = []string{"https://a", "https://b", "https://c"}
	result.Factors[0].Sources = []string{"https://a"}
	report := Verify(result, 0.5, liquidity.GradeIlliquid)
	for _, r := range report.EscalationReasons {
		assert.NotEqual(t, "large predicted/market gap on a tradeable market", r)
	}
}

func TestVerifyEscalatesOnFewCitationsWithNonLowConfidence(t *testing.T) {
	result := baseResult()
	result.Citations = []string{"https://a"}
	result.Factors[0].Sources = []string{"https://a"}
	report := Verify(result, 0.6, liquidity.GradeThin)
	assert.True(t, report.SuggestedEscalation)
	assert.Contains(t, report.EscalationReasons, "fewer than two citations for a non-low confidence claim")
}

func TestAggregateBrierSkipsUnresolvedRows(t *testing.T) {
	b1, b2 := 0.04, 0.09
	outcome1 := 1
	report := AggregateBrier([]domain.PredictionLog{
		{PredictedProb: 0.8, BrierScore: &b1, ActualOutcome: &outcome1},
		{PredictedProb: 0.7, BrierScore: &b2, ActualOutcome: &outcome1},
		{PredictedProb: 0.5}, // unresolved, skipped
	})
	require.Equal(t, 2, report.N)
	assert.InDelta(t, 0.065, report.MeanBrier, 1e-9)
	assert.Equal(t, 1.0, report.BaseRate)
}

func TestAggregateBrierEmptyInput(t *testing.T) {
	report := AggregateBrier(nil)
	assert.Equal(t, 0, report.N)
	assert.Equal(t, 0.0, report.MeanBrier)
}
