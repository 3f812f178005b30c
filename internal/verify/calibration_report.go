package verify

import (
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/marketedge/internal/domain"
)

// CalibrationReport summarizes Brier-score performance across a set of
// resolved predictions.
type CalibrationReport struct {
	N             int
	MeanBrier     float64
	StdDevBrier   float64
	MeanPredicted float64
	BaseRate      float64 // fraction of resolved predictions that settled YES
}

// AggregateBrier computes a CalibrationReport over rows that already carry
// a BrierScore (set by PredictionLogRepository.RecordOutcome at resolution
// time). Rows without a score or outcome are skipped.
func AggregateBrier(rows []domain.PredictionLog) CalibrationReport {
	briers := make([]float64, 0, len(rows))
	predicted := make([]float64, 0, len(rows))
	var yesCount int

	for _, row := range rows {
		if row.BrierScore == nil || row.ActualOutcome == nil {
			continue
		}
		briers = append(briers, *row.BrierScore)
		predicted = append(predicted, row.PredictedProb)
		if *row.ActualOutcome == 1 {
			yesCount++
		}
	}

	report := CalibrationReport{N: len(briers)}
	if report.N == 0 {
		return report
	}

	report.MeanBrier = stat.Mean(briers, nil)
	report.StdDevBrier = stat.StdDev(briers, nil)
	report.MeanPredicted = stat.Mean(predicted, nil)
	report.BaseRate = float64(yesCount) / float64(report.N)
	return report
}
