// Package synth wraps a domain.Synthesizer with the retry-once-then-terminal
// validation semantics spec.md §4.J requires: a synthesizer output failing
// schema validation is retried exactly once before surfacing
// domain.SynthesizerInvalidOutputError.
package synth

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/marketedge/internal/domain"
)

// Validator checks that an AnalysisResult satisfies the schema the
// orchestrator requires (non-empty reasoning, probability in [0,1],
// recognized Confidence value, etc). Kept as an injected function rather
// than a fixed rule set so callers can tighten validation per mode.
type Validator func(domain.AnalysisResult) error

// DefaultValidator enforces the structural minimum every AnalysisResult
// must satisfy regardless of which Synthesizer backend produced it.
func DefaultValidator(result domain.AnalysisResult) error {
	if result.Ticker == "" {
		return &domain.ValidationError{Field: "ticker", Message: "must not be empty"}
	}
	if result.PredictedProbability < 0 || result.PredictedProbability > 1 {
		return &domain.ValidationError{Field: "predicted_probability", Message: "must be within [0,1]"}
	}
	switch result.Confidence {
	case domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
	default:
		return &domain.ValidationError{Field: "confidence", Message: "must be low, medium, or high"}
	}
	if result.Reasoning == "" {
		return &domain.ValidationError{Field: "reasoning", Message: "must not be empty"}
	}
	return nil
}

// RetryingSynthesizer wraps a domain.Synthesizer, retrying exactly once on
// a validation failure before surfacing a terminal
// SynthesizerInvalidOutputError.
type RetryingSynthesizer struct {
	inner     domain.Synthesizer
	validate  Validator
	log       zerolog.Logger
}

func NewRetryingSynthesizer(inner domain.Synthesizer, validate Validator, log zerolog.Logger) *RetryingSynthesizer {
	if validate == nil {
		validate = DefaultValidator
	}
	return &RetryingSynthesizer{inner: inner, validate: validate, log: log.With().Str("component", "synth").Logger()}
}

func (s *RetryingSynthesizer) Synthesize(ctx context.Context, input domain.SynthesisInput) (domain.AnalysisResult, float64, error) {
	result, cost, err := s.inner.Synthesize(ctx, input)
	if err != nil {
		return result, cost, err
	}
	if verr := s.validate(result); verr != nil {
		s.log.Warn().Err(verr).Str("ticker", input.Ticker).Msg("synthesizer output failed validation, retrying once")

		retryResult, retryCost, retryErr := s.inner.Synthesize(ctx, input)
		totalCost := cost + retryCost
		if retryErr != nil {
			return retryResult, totalCost, retryErr
		}
		if verr2 := s.validate(retryResult); verr2 != nil {
			return retryResult, totalCost, &domain.SynthesizerInvalidOutputError{Reason: verr2.Error()}
		}
		return retryResult, totalCost, nil
	}
	return result, cost, nil
}
