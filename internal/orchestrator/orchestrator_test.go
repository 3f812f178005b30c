package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/database"
	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/money"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	return newTestDBWithProfile(t, database.ProfileStandard)
}

func newTestDBWithProfile(t *testing.T, profile database.DatabaseProfile) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(database.Config{Path: path, Profile: profile, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func sampleMarket(ticker string, status domain.MarketStatus) domain.Market {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Market{
		Ticker:       ticker,
		EventTicker:  "EVT-1",
		SeriesTicker: "SER-1",
		Title:        "Will the thing happen?",
		Status:       status,
		YesBid:       money.Amount(4000),
		YesAsk:       money.Amount(4500),
		Volume24h:    100,
		OpenInterest: 500,
		CreatedTime:  now,
		OpenTime:     now,
		CloseTime:    now.Add(24 * time.Hour),
	}
}

type fakeResearchProvider struct {
	searchResult  domain.SearchResult
	searchErr     error
	contentResult domain.ContentResult
	answerResult  domain.AnswerResult
	answerErr     error
	taskStatuses  []domain.ResearchTaskStatus
	pollIndex     int
	searchCalls   int
}

func (f *fakeResearchProvider) Search(ctx context.Context, query string, opts domain.SearchOptions) (domain.SearchResult, error) {
	f.searchCalls++
	return f.searchResult, f.searchErr
}
func (f *fakeResearchProvider) GetContents(ctx context.Context, urls []string, opts domain.ContentOptions) (domain.ContentResult, error) {
	return f.contentResult, nil
}
func (f *fakeResearchProvider) FindSimilar(ctx context.Context, url string, opts domain.SearchOptions) (domain.SearchResult, error) {
	return domain.SearchResult{}, nil
}
func (f *fakeResearchProvider) Answer(ctx context.Context, question string, opts domain.SearchOptions) (domain.AnswerResult, error) {
	return f.answerResult, f.answerErr
}
func (f *fakeResearchProvider) StartResearchTask(ctx context.Context, instructions, model string, outputSchema []byte) (string, error) {
	return "task-1", nil
}
func (f *fakeResearchProvider) PollResearchTask(ctx context.Context, taskID string) (domain.ResearchTaskStatus, error) {
	status := f.taskStatuses[f.pollIndex]
	if f.pollIndex < len(f.taskStatuses)-1 {
		f.pollIndex++
	}
	return status, nil
}

type fakeSynthesizer struct {
	result domain.AnalysisResult
	cost   float64
	err    error
	calls  int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, input domain.SynthesisInput) (domain.AnalysisResult, float64, error) {
	f.calls++
	return f.result, f.cost, f.err
}

func newOrchestratorForTest(t *testing.T, research domain.ResearchProvider, synthesizer domain.Synthesizer) (*Orchestrator, *database.DB) {
	t.Helper()
	db := newTestDB(t)
	cacheDB := newTestDBWithProfile(t, database.ProfileCache)
	o := New(
		database.NewMarketRepository(db),
		database.NewOrderbookSnapshotRepository(cacheDB),
		database.NewThesisRepository(db),
		database.NewPredictionLogRepository(db),
		research,
		synthesizer,
		zerolog.Nop(),
	)
	return o, db
}

func validAnalysis(ticker string) domain.AnalysisResult {
	return domain.AnalysisResult{
		Ticker:               ticker,
		PredictedProbability: 0.6,
		Confidence:           domain.ConfidenceMedium,
		Reasoning:            "evidence points this way",
	}
}

func TestRunFailsFastWhenMarketNotFound(t *testing.T) {
	o, _ := newOrchestratorForTest(t, &fakeResearchProvider{}, &fakeSynthesizer{})
	_, err := o.Run(context.Background(), "NO-SUCH-TICKER", "run-1", ModeFast, 10.0)
	require.Error(t, err)
	var notFound *domain.MarketNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestRunFailsFastWhenMarketClosed(t *testing.T) {
	o, db := newOrchestratorForTest(t, &fakeResearchProvider{}, &fakeSynthesizer{})
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusClosed)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	_, err := o.Run(ctx, "T-1", "run-1", ModeFast, 10.0)
	require.Error(t, err)
	var closed *domain.MarketClosedError
	require.True(t, errors.As(err, &closed))
}

func TestRunHappyPathFastMode(t *testing.T) {
	research := &fakeResearchProvider{searchResult: domain.SearchResult{
		Results:     []domain.SearchHit{{URL: "https://a", Title: "headline"}},
		CostDollars: 0.005,
	}}
	synthesizer := &fakeSynthesizer{result: validAnalysis("T-1"), cost: 0.01}
	o, db := newOrchestratorForTest(t, research, synthesizer)
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusOpen)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	result, err := o.Run(ctx, "T-1", "run-1", ModeFast, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 1, research.searchCalls)
	assert.Equal(t, 1, synthesizer.calls)
	assert.InDelta(t, 0.015, result.TotalCostUSD, 1e-9)
	assert.Equal(t, "evidence points this way", result.Analysis.Reasoning)
}

func TestRunDownshiftsModeWhenBudgetTooSmallForDeep(t *testing.T) {
	research := &fakeResearchProvider{searchResult: domain.SearchResult{CostDollars: 0.005}}
	synthesizer := &fakeSynthesizer{result: validAnalysis("T-1"), cost: 0.01}
	o, db := newOrchestratorForTest(t, research, synthesizer)
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusOpen)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	var seenStages []Stage
	o.OnStageComplete(func(r StageResult) { seenStages = append(seenStages, r.Stage) })

	// 0.03 is enough for fast (0.01) but not deep (0.25) or standard (0.05);
	// after the 0.005 actual research spend, 0.025 remains, still above the
	// 0.02 synthesis gate.
	_, err := o.Run(ctx, "T-1", "run-1", ModeDeep, 0.03)
	require.NoError(t, err)
	assert.Equal(t, 1, research.searchCalls, "should have fallen through to a single Search call, not a deep task")
	assert.Contains(t, seenStages, StageDone)
}

func TestRunFailsWhenBudgetTooSmallForAnyMode(t *testing.T) {
	o, db := newOrchestratorForTest(t, &fakeResearchProvider{}, &fakeSynthesizer{})
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusOpen)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	_, err := o.Run(ctx, "T-1", "run-1", ModeDeep, 0.001)
	require.Error(t, err)
	var budgetErr *domain.BudgetExceededError
	require.True(t, errors.As(err, &budgetErr))
}

func TestRunDoesNotValidateSynthesizerOutputItself(t *testing.T) {
	research := &fakeResearchProvider{searchResult: domain.SearchResult{CostDollars: 0.001}}
	synthesizer := &fakeSynthesizer{result: domain.AnalysisResult{Ticker: "T-1", PredictedProbability: 5, Confidence: domain.ConfidenceMedium, Reasoning: "bad"}, cost: 0.001}
	o, db := newOrchestratorForTest(t, research, synthesizer)
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusOpen)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	_, err := o.Run(ctx, "T-1", "run-1", ModeFast, 10.0)
	require.NoError(t, err, "the bare Orchestrator does not itself validate synthesizer output; that is internal/synth's job when wired in front of it")
}

func TestRunPersistsPredictionLog(t *testing.T) {
	research := &fakeResearchProvider{searchResult: domain.SearchResult{CostDollars: 0.001}}
	synthesizer := &fakeSynthesizer{result: validAnalysis("T-1"), cost: 0.001}
	o, db := newOrchestratorForTest(t, research, synthesizer)
	ctx := context.Background()
	market := sampleMarket("T-1", domain.MarketStatusOpen)
	require.NoError(t, database.NewMarketRepository(db).UpsertBatch(ctx, []domain.Market{market}))

	_, err := o.Run(ctx, "T-1", "run-1", ModeFast, 10.0)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM prediction_log WHERE ticker = ?`, "T-1").Scan(&count))
	assert.Equal(t, 1, count, "Run writes one prediction_log row")

	rows, err := database.NewPredictionLogRepository(db).ResolvedForTicker(ctx, "T-1")
	require.NoError(t, err)
	assert.Empty(t, rows, "unresolved predictions are not returned by ResolvedForTicker")
}
