// Package verify implements the deterministic, non-LLM verification pass
// over a synthesizer's AnalysisResult: grounding coverage, calibration
// sanity, factor/direction consistency, and an escalation signal.
// Verification is advisory — it never blocks the orchestrator's result,
// only annotates it.
package verify

import (
	"math"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/liquidity"
)

// HighEVThreshold is the |predicted - market| gap past which a result is
// considered high-expected-value enough to warrant escalation when
// liquidity would actually let a position be taken. spec.md leaves
// T_high_ev undefined; 0.15 is this implementation's chosen default (see
// DESIGN.md open-question decision for §4.K).
const HighEVThreshold = 0.15

// HighConfidenceGapThreshold is the |predicted - market| gap above which a
// "high" confidence claim requires at least MinCitationsForHighGap
// distinct citations.
const HighConfidenceGapThreshold = 0.35

// MinCitationsForHighGap is the citation count required to support a
// "high" confidence claim on a gap exceeding HighConfidenceGapThreshold.
const MinCitationsForHighGap = 3

// NearMarketThreshold is how close a prediction may sit to the market
// price before any confidence above "low" is considered miscalibrated.
const NearMarketThreshold = 0.02

// MinCitationsForNonLowConfidence is the citation floor below which any
// confidence other than "low" triggers escalation.
const MinCitationsForNonLowConfidence = 2

// Verify runs the full §4.K rule set against result, given the market
// probability it was compared to and the liquidity grade of the market at
// verification time.
func Verify(result domain.AnalysisResult, marketProbability float64, grade liquidity.Grade) domain.VerificationReport {
	report := domain.VerificationReport{Passed: true}

	grounded, total, ungrounded := groundingCoverage(result)
	if total > 0 {
		report.GroundingScore = float64(grounded) / float64(total)
	} else {
		report.GroundingScore = 1.0
	}
	if len(ungrounded) > 0 {
		report.Passed = false
		report.CalibrationNote = appendNote(report.CalibrationNote, "ungrounded factors present")
	}

	gap := result.PredictedProbability - marketProbability
	absGap := math.Abs(gap)

	if result.Confidence == domain.ConfidenceHigh && absGap > HighConfidenceGapThreshold && len(distinctCitations(result.Citations)) < MinCitationsForHighGap {
		report.Passed = false
		report.CalibrationNote = appendNote(report.CalibrationNote, "high confidence claimed on a large gap without enough citations")
	}
	if absGap < NearMarketThreshold && result.Confidence != domain.ConfidenceLow {
		report.Passed = false
		report.CalibrationNote = appendNote(report.CalibrationNote, "prediction sits within the near-market band but confidence is not low")
	}

	if issues := consistencyIssues(result, gap); len(issues) > 0 {
		report.ConsistencyIssues = issues
		report.Passed = false
	}

	report.SuggestedEscalation, report.EscalationReasons = escalationReasons(result, absGap, grade, report.Passed)

	return report
}

func groundingCoverage(result domain.AnalysisResult) (grounded, total int, ungrounded []string) {
	citationSet := make(map[string]struct{}, len(result.Citations))
	for _, c := range result.Citations {
		citationSet[c] = struct{}{}
	}
	for _, f := range result.Factors {
		total++
		if factorIsGrounded(f, citationSet) {
			grounded++
		} else {
			ungrounded = append(ungrounded, f.Claim)
		}
	}
	return grounded, total, ungrounded
}

func factorIsGrounded(f domain.Factor, citationSet map[string]struct{}) bool {
	for _, src := range f.Sources {
		if _, ok := citationSet[src]; ok {
			return true
		}
	}
	return false
}

func distinctCitations(citations []string) map[string]struct{} {
	set := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		set[c] = struct{}{}
	}
	return set
}

// consistencyIssues flags factors whose stated polarity contradicts the
// direction of predicted - market: a bullish factor should accompany a
// positive gap, a bearish factor a negative one.
func consistencyIssues(result domain.AnalysisResult, gap float64) []string {
	var issues []string
	for _, f := range result.Factors {
		switch f.Polarity {
		case "bullish":
			if gap < 0 {
				issues = append(issues, "factor \""+f.Claim+"\" is bullish but prediction sits below market")
			}
		case "bearish":
			if gap > 0 {
				issues = append(issues, "factor \""+f.Claim+"\" is bearish but prediction sits above market")
			}
		}
	}
	return issues
}

func escalationReasons(result domain.AnalysisResult, absGap float64, grade liquidity.Grade, verificationPassed bool) (bool, []string) {
	var reasons []string
	if !verificationPassed {
		reasons = append(reasons, "verification failed")
	}
	if result.Confidence == domain.ConfidenceLow {
		reasons = append(reasons, "confidence is low")
	}
	if absGap > HighEVThreshold && (grade == liquidity.GradeModerate || grade == liquidity.GradeLiquid) {
		reasons = append(reasons, "large predicted/market gap on a tradeable market")
	}
	if len(result.Citations) < MinCitationsForNonLowConfidence && result.Confidence != domain.ConfidenceLow {
		reasons = append(reasons, "fewer than two citations for a non-low confidence claim")
	}
	return len(reasons) > 0, reasons
}

func appendNote(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "; " + addition
}
