// Package orchestrator runs the end-to-end research-to-prediction pipeline
// under a hard budget, per spec.md §4.L: load market, gather research,
// synthesize a prediction, verify it deterministically, persist the
// result. The research and synthesize steps are checked against the run's
// remaining budget before they start: research downshifts to a cheaper
// mode when the requested one does not fit, and synthesize fails with
// BudgetExceededError when its estimate does not fit.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aristath/marketedge/internal/database"
	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/liquidity"
	"github.com/aristath/marketedge/internal/verify"
)

// Stage names the steps of a single run, mirroring the state machine in
// spec.md §4.L.
type Stage string

const (
	StageInit       Stage = "init"
	StageLoadMarket Stage = "load_market"
	StageResearch   Stage = "research"
	StageSynthesize Stage = "synthesize"
	StageVerify     Stage = "verify"
	StagePersist    Stage = "persist"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Mode selects how much the Research stage spends on a run.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeStandard Mode = "standard"
	ModeDeep     Mode = "deep"
)

// modeOrder lists modes most-expensive first, so downshifting always walks
// forward through the slice toward cheaper options.
var modeOrder = []Mode{ModeDeep, ModeStandard, ModeFast}

// modeCostEstimate is the planning estimate checked against remaining
// budget before a mode's research calls are issued. Actual spend is read
// back from each provider response afterward; these are only used to
// decide whether a downshift is required up front.
var modeCostEstimate = map[Mode]float64{
	ModeFast:     0.01,
	ModeStandard: 0.05,
	ModeDeep:     0.25,
}

// synthesisCostEstimate gates the Synthesize stage the same way; it is not
// mode-dependent because the synthesizer call shape doesn't change with
// research depth, only its input size.
const synthesisCostEstimate = 0.02

// deepResearchPollInterval and deepResearchDeadline implement spec.md §5's
// "research tasks carry a polling deadline (default 5 minutes)".
const deepResearchPollInterval = 5 * time.Second
const deepResearchDeadline = 5 * time.Minute

// StageResult reports one stage's outcome to OnStageComplete.
type StageResult struct {
	Stage     Stage
	Success   bool
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

// AgentRunResult is the terminal output of one orchestrator run.
type AgentRunResult struct {
	Analysis     domain.AnalysisResult
	Verification domain.VerificationReport
	TotalCostUSD float64
	Escalated    bool
}

// researchBundle is what the Research stage hands to Synthesize.
type researchBundle struct {
	factors   []domain.Factor
	citations []string
	modeUsed  Mode
	costUSD   float64
}

// Orchestrator wires the collaborators a run needs: persisted market and
// thesis state, a research provider, and a synthesizer. The Verifier is
// pure and called directly, not injected.
type Orchestrator struct {
	markets     *database.MarketRepository
	orderbooks  *database.OrderbookSnapshotRepository
	theses      *database.ThesisRepository
	predictions *database.PredictionLogRepository
	research    domain.ResearchProvider
	synthesizer domain.Synthesizer
	log         zerolog.Logger

	flight          singleflight.Group
	onStageComplete func(StageResult)
	onError         func(error)
}

func New(
	markets *database.MarketRepository,
	orderbooks *database.OrderbookSnapshotRepository,
	theses *database.ThesisRepository,
	predictions *database.PredictionLogRepository,
	research domain.ResearchProvider,
	synthesizer domain.Synthesizer,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		markets:     markets,
		orderbooks:  orderbooks,
		theses:      theses,
		predictions: predictions,
		research:    research,
		synthesizer: synthesizer,
		log:         log.With().Str("component", "orchestrator").Logger(),
	}
}

// OnStageComplete registers a callback fired after every stage, success or
// failure. Intended for logging/metrics hooks at the cmd/ wiring layer.
func (o *Orchestrator) OnStageComplete(fn func(StageResult)) { o.onStageComplete = fn }

// OnError registers a callback fired once per run that fails.
func (o *Orchestrator) OnError(fn func(error)) { o.onError = fn }

// Run executes one end-to-end pass for ticker under runID. Concurrent
// callers sharing the same (ticker, runID) collapse into a single
// in-flight execution; distinct tickers run independently.
func (o *Orchestrator) Run(ctx context.Context, ticker, runID string, mode Mode, budgetUSD float64) (AgentRunResult, error) {
	key := ticker + "|" + runID
	v, err, _ := o.flight.Do(key, func() (interface{}, error) {
		return o.run(ctx, ticker, mode, budgetUSD)
	})
	if err != nil {
		return AgentRunResult{}, err
	}
	return v.(AgentRunResult), nil
}

func (o *Orchestrator) run(ctx context.Context, ticker string, mode Mode, budgetUSD float64) (AgentRunResult, error) {
	o.execStage(StageInit, func() error { return nil })

	remaining := budgetUSD

	var market domain.Market
	if err := o.execStage(StageLoadMarket, func() error {
		m, err := o.loadMarket(ctx, ticker)
		market = m
		return err
	}); err != nil {
		return o.terminalFail(err)
	}

	thesisText := o.loadPinnedThesis(ctx, ticker)

	var bundle researchBundle
	if err := o.execStage(StageResearch, func() error {
		b, err := o.runResearch(ctx, market, mode, &remaining)
		bundle = b
		return err
	}); err != nil {
		return o.terminalFail(err)
	}

	var analysis domain.AnalysisResult
	var synthCost float64
	if err := o.execStage(StageSynthesize, func() error {
		if remaining < synthesisCostEstimate {
			return &domain.BudgetExceededError{Step: "synthesize", EstimatedCostUSD: synthesisCostEstimate, RemainingUSD: remaining}
		}
		a, cost, err := o.synthesizer.Synthesize(ctx, domain.SynthesisInput{
			Ticker:          market.Ticker,
			CurrentYesBid:   market.YesBid.Cents() / 100,
			CurrentYesAsk:   market.YesAsk.Cents() / 100,
			CloseTime:       market.CloseTime.Unix(),
			ResearchFactors: bundle.factors,
			Citations:       bundle.citations,
			PriorThesisText: thesisText,
		})
		analysis = a
		synthCost = cost
		remaining -= cost
		return err
	}); err != nil {
		return o.terminalFail(err)
	}

	grade := o.gradeLiquidity(ctx, market)

	var report domain.VerificationReport
	o.execStage(StageVerify, func() error {
		report = verify.Verify(analysis, market.Midpoint(), grade)
		return nil
	})

	if err := o.execStage(StagePersist, func() error {
		return o.persist(ctx, analysis, market, report)
	}); err != nil {
		return o.terminalFail(err)
	}

	o.execStage(StageDone, func() error { return nil })

	return AgentRunResult{
		Analysis:     analysis,
		Verification: report,
		TotalCostUSD: bundle.costUSD + synthCost,
		Escalated:    report.SuggestedEscalation,
	}, nil
}

func (o *Orchestrator) terminalFail(err error) (AgentRunResult, error) {
	o.execStage(StageFailed, func() error { return err })
	return AgentRunResult{}, err
}

// execStage times fn, reports a StageResult, and notifies onError on
// failure. It never itself returns a wrapped error: callers receive fn's
// error verbatim so domain sentinel types (MarketNotFoundError etc.)
// survive for errors.As at the call site.
func (o *Orchestrator) execStage(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	if o.onStageComplete != nil {
		o.onStageComplete(StageResult{
			Stage:     stage,
			Success:   err == nil,
			Err:       err,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
	}
	if err != nil && o.onError != nil {
		o.onError(err)
	}
	return err
}

func (o *Orchestrator) loadMarket(ctx context.Context, ticker string) (domain.Market, error) {
	market, err := o.markets.FindByKey(ctx, ticker)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return domain.Market{}, &domain.MarketNotFoundError{Ticker: ticker}
		}
		return domain.Market{}, err
	}
	if !market.Status.IsTrading() {
		return domain.Market{}, &domain.MarketClosedError{Ticker: ticker, Status: market.Status}
	}
	return market, nil
}

// loadPinnedThesis returns the text of the most recently updated
// non-void thesis that references ticker, or "" if none exists. Thesis
// lookup failures are logged and treated as "no prior context" rather
// than failing the run: a missing thesis is not a run-blocking error.
func (o *Orchestrator) loadPinnedThesis(ctx context.Context, ticker string) string {
	theses, err := o.theses.List(ctx, "")
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to load pinned theses, continuing without prior context")
		return ""
	}
	var best *domain.Thesis
	for i := range theses {
		t := &theses[i]
		if t.Status == domain.ThesisVoid || !containsTicker(t.Markets, ticker) {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			best = t
		}
	}
	if best == nil {
		return ""
	}
	return fmt.Sprintf("%s (your probability: %.2f, confidence: %s)", best.Title, best.YourProbability, best.Confidence)
}

func containsTicker(markets []string, ticker string) bool {
	for _, m := range markets {
		if m == ticker {
			return true
		}
	}
	return false
}

// gradeLiquidity reads the latest orderbook snapshot to grade the
// market's current liquidity, feeding the Verifier's escalation rule.
// A missing snapshot (never yet scanned) degrades to GradeIlliquid rather
// than failing the run.
func (o *Orchestrator) gradeLiquidity(ctx context.Context, market domain.Market) liquidity.Grade {
	book, err := o.orderbooks.LatestSnapshot(ctx, market.Ticker)
	if err != nil {
		return liquidity.GradeIlliquid
	}
	return liquidity.Analyze(market, book).Grade
}

// persist writes the PredictionLog row. The VerificationReport itself is
// advisory per spec.md §4.K (it never blocks the result) and has no
// column of its own; it is logged here for operator visibility and
// returned to the caller in AgentRunResult.
func (o *Orchestrator) persist(ctx context.Context, analysis domain.AnalysisResult, market domain.Market, report domain.VerificationReport) error {
	factorsJSON, err := marshalFactors(analysis.Factors)
	if err != nil {
		return err
	}
	if !report.Passed || report.SuggestedEscalation {
		o.log.Warn().Str("ticker", analysis.Ticker).
			Str("calibration_note", report.CalibrationNote).
			Strs("consistency_issues", report.ConsistencyIssues).
			Strs("escalation_reasons", report.EscalationReasons).
			Msg("verification flagged this prediction")
	}
	_, err = o.predictions.Insert(ctx, domain.PredictionLog{
		Ticker:           analysis.Ticker,
		PredictedProb:    analysis.PredictedProbability,
		MarketProbAtTime: market.Midpoint(),
		Confidence:       analysis.Confidence,
		Reasoning:        analysis.Reasoning,
		FactorsJSON:      factorsJSON,
		PredictedAt:      time.Now(),
	})
	return err
}

func marshalFactors(factors []domain.Factor) (string, error) {
	b, err := json.Marshal(factors)
	if err != nil {
		return "", fmt.Errorf("orchestrator: marshal factors: %w", err)
	}
	return string(b), nil
}
