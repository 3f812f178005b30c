package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/money"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	return newTestDBWithProfile(t, ProfileStandard)
}

// newTestDBWithProfile opens a test database under the given profile, whose
// migration set determines which tables exist (see migrationsForProfile).
func newTestDBWithProfile(t *testing.T, profile DatabaseProfile) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := New(Config{Path: path, Profile: profile, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func sampleMarket(ticker string) domain.Market {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Market{
		Ticker:       ticker,
		EventTicker:  "EVT-1",
		SeriesTicker: "SER-1",
		Title:        "Will it happen?",
		Status:       domain.MarketStatusOpen,
		YesBid:       money.Amount(4000),
		YesAsk:       money.Amount(4500),
		Volume24h:    100,
		OpenInterest: 500,
		CreatedTime:  now,
		OpenTime:     now,
		CloseTime:    now.Add(24 * time.Hour),
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CheckSchema())
}

func TestMarketRepositoryUpsertAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewMarketRepository(db)
	ctx := context.Background()

	m := sampleMarket("T-1")
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Market{m}))

	got, err := repo.FindByKey(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, m.Ticker, got.Ticker)
	require.Equal(t, m.YesBid, got.YesBid)
	require.Equal(t, m.Status, got.Status)
	require.True(t, m.CloseTime.Equal(got.CloseTime))

	m.Status = domain.MarketStatusClosed
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Market{m}))
	got, err = repo.FindByKey(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusClosed, got.Status)
}

func TestMarketRepositoryFindByKeyNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewMarketRepository(db)
	_, err := repo.FindByKey(context.Background(), "NOPE")
	require.Error(t, err)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMarketRepositoryListFiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewMarketRepository(db)
	ctx := context.Background()

	open := sampleMarket("OPEN-1")
	closed := sampleMarket("CLOSED-1")
	closed.Status = domain.MarketStatusClosed
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Market{open, closed}))

	markets, err := repo.List(ctx, MarketListFilter{Status: domain.MarketStatusOpen})
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, "OPEN-1", markets[0].Ticker)
}

func TestMarketRepositoryUpsertBatchCommitsAcrossChunks(t *testing.T) {
	db := newTestDB(t)
	repo := NewMarketRepository(db)
	ctx := context.Background()

	markets := make([]domain.Market, 0, 250)
	for i := 0; i < 250; i++ {
		markets = append(markets, sampleMarket(filepathTicker(i)))
	}
	require.NoError(t, repo.UpsertBatch(ctx, markets))

	all, err := repo.List(ctx, MarketListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 250)
}

func filepathTicker(i int) string {
	return "T-" + time.Unix(int64(i), 0).UTC().Format("150405")
}

func TestPriceSnapshotRepositoryLatestAndRange(t *testing.T) {
	db := newTestDBWithProfile(t, ProfileCache)
	repo := NewPriceSnapshotRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []domain.PriceSnapshot{
		{Ticker: "T-1", Timestamp: base, YesBid: money.Amount(4000), YesAsk: money.Amount(4500)},
		{Ticker: "T-1", Timestamp: base.Add(time.Hour), YesBid: money.Amount(4100), YesAsk: money.Amount(4600)},
	}
	require.NoError(t, repo.UpsertBatch(ctx, snaps))

	latest, err := repo.LatestSnapshot(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, money.Amount(4100), latest.YesBid)

	inRange, err := repo.SnapshotsInRange(ctx, "T-1", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	require.True(t, inRange[0].Timestamp.Before(inRange[1].Timestamp))
}

func TestFillRepositoryListByTickerOrdersByTradeTSThenFillID(t *testing.T) {
	db := newTestDBWithProfile(t, ProfileLedger)
	repo := NewFillRepository(db)
	ctx := context.Background()

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fills := []domain.Fill{
		{FillID: "F-2", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 10, Price: money.Amount(4500), TradeTS: ts},
		{FillID: "F-1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 5, Price: money.Amount(4400), TradeTS: ts},
		{FillID: "F-3", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionSell, Count: 3, Price: money.Amount(4600), TradeTS: ts.Add(time.Minute)},
	}
	require.NoError(t, repo.UpsertBatch(ctx, fills))

	got, err := repo.ListByTicker(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "F-1", got[0].FillID)
	require.Equal(t, "F-2", got[1].FillID)
	require.Equal(t, "F-3", got[2].FillID)
}

func TestFillRepositoryUpsertBatchIgnoresDuplicateFillID(t *testing.T) {
	db := newTestDBWithProfile(t, ProfileLedger)
	repo := NewFillRepository(db)
	ctx := context.Background()

	f := domain.Fill{FillID: "F-1", Ticker: "T-1", Side: domain.SideYes, Action: domain.ActionBuy, Count: 10, Price: money.Amount(4500), TradeTS: time.Now().UTC()}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Fill{f, f}))

	got, err := repo.ListByTicker(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSettlementRepositoryRoundTrip(t *testing.T) {
	db := newTestDBWithProfile(t, ProfileLedger)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	s := domain.Settlement{
		Ticker:           "T-1",
		SettledAt:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		SettlementValue:  1,
		ActualSettlement: time.Date(2026, 2, 1, 0, 5, 0, 0, time.UTC),
	}
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Settlement{s}))

	got, err := repo.FindByKey(ctx, "T-1")
	require.NoError(t, err)
	require.Equal(t, 1, got.SettlementValue)
}

func TestThesisRepositoryUpsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewThesisRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	thesis := domain.Thesis{
		ID:                "thesis-1",
		Title:              "Rates stay flat",
		Markets:            []string{"T-1", "T-2"},
		YourProbability:    0.62,
		MarketProbability:  0.48,
		Confidence:         "medium",
		Status:             domain.ThesisActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.Upsert(ctx, thesis))

	got, err := repo.FindByKey(ctx, "thesis-1")
	require.NoError(t, err)
	require.Equal(t, thesis.Markets, got.Markets)

	list, err := repo.List(ctx, domain.ThesisActive)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAlertRepositoryInsertAndDeactivate(t *testing.T) {
	db := newTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, domain.Alert{Kind: domain.AlertKindPrice, Ticker: "T-1", Threshold: 50, Direction: domain.AlertAbove, Active: true})
	require.NoError(t, err)

	active, err := repo.ListActive(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, repo.Deactivate(ctx, id))
	active, err = repo.ListActive(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, active, 0)
}

func TestPredictionLogRepositoryRecordOutcomeComputesBrierScore(t *testing.T) {
	db := newTestDB(t)
	repo := NewPredictionLogRepository(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, domain.PredictionLog{
		Ticker:           "T-1",
		PredictedProb:    0.7,
		MarketProbAtTime: 0.5,
		Confidence:       domain.ConfidenceHigh,
		Reasoning:        "strong signal",
		FactorsJSON:      "[]",
		PredictedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecordOutcome(ctx, id, 1, time.Now().UTC()))

	resolved, err := repo.ResolvedForTicker(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.NotNil(t, resolved[0].BrierScore)
	require.InDelta(t, 0.09, *resolved[0].BrierScore, 0.0001)
}

func TestPruneDryRunDoesNotDelete(t *testing.T) {
	db := newTestDBWithProfile(t, ProfileCache)
	repo := NewPriceSnapshotRepository(db)
	ctx := context.Background()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertBatch(ctx, []domain.PriceSnapshot{
		{Ticker: "T-1", Timestamp: old, YesBid: money.Amount(1000), YesAsk: money.Amount(1100)},
	}))

	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err := db.PrunePriceSnapshots(cutoff, true)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.RowsDeleted)
	require.True(t, result.DryRun)

	latest, err := repo.LatestSnapshot(ctx, "T-1")
	require.NoError(t, err)
	require.True(t, latest.Timestamp.Equal(old))
}
