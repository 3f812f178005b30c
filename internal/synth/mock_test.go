package synth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/domain"
)

func TestMockSynthesizerDefersToMarketMidpointWithoutFactors(t *testing.T) {
	m := NewMockSynthesizer()
	result, cost, err := m.Synthesize(context.Background(), domain.SynthesisInput{
		Ticker:        "TICK-1",
		CurrentYesBid: 0.40,
		CurrentYesAsk: 0.44,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
	assert.InDelta(t, 0.42, result.PredictedProbability, 0.001)
	assert.Equal(t, domain.ConfidenceLow, result.Confidence)
}

func TestMockSynthesizerShiftsTowardBullishFactors(t *testing.T) {
	m := NewMockSynthesizer()
	result, _, err := m.Synthesize(context.Background(), domain.SynthesisInput{
		Ticker:        "TICK-1",
		CurrentYesBid: 0.40,
		CurrentYesAsk: 0.44,
		ResearchFactors: []domain.Factor{
			{Claim: "a", Polarity: "bullish"},
			{Claim: "b", Polarity: "bullish"},
		},
	})
	require.NoError(t, err)
	assert.Greater(t, result.PredictedProbability, 0.42)
	assert.Equal(t, domain.ConfidenceMedium, result.Confidence)
}

func TestMockSynthesizerEscalatesConfidenceWithStrongSignal(t *testing.T) {
	m := NewMockSynthesizer()
	result, _, err := m.Synthesize(context.Background(), domain.SynthesisInput{
		Ticker:        "TICK-1",
		CurrentYesBid: 0.40,
		CurrentYesAsk: 0.44,
		ResearchFactors: []domain.Factor{
			{Claim: "a", Polarity: "bearish"},
			{Claim: "b", Polarity: "bearish"},
			{Claim: "c", Polarity: "bearish"},
		},
	})
	require.NoError(t, err)
	assert.Less(t, result.PredictedProbability, 0.42)
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
}

func TestMockSynthesizerClampsProbabilityToUnitInterval(t *testing.T) {
	m := NewMockSynthesizer()
	factors := make([]domain.Factor, 20)
	for i := range factors {
		factors[i] = domain.Factor{Claim: "x", Polarity: "bullish"}
	}
	result, _, err := m.Synthesize(context.Background(), domain.SynthesisInput{
		Ticker:          "TICK-1",
		CurrentYesBid:   0.90,
		CurrentYesAsk:   0.95,
		ResearchFactors: factors,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.PredictedProbability, 1.0)
}
