package scanner

import (
	"context"
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
	db, err := database.New(database.Config{Path: t.TempDir() + "/test.db", Profile: profile, Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

// newSnapshotsRepo opens a ProfileCache-backed test database, mirroring the
// two-database split cmd/marketedged uses in production.
func newSnapshotsRepo(t *testing.T) *database.PriceSnapshotRepository {
	t.Helper()
	return database.NewPriceSnapshotRepository(newTestDBWithProfile(t, database.ProfileCache))
}

func market(ticker string, yesBid, yesAsk money.Amount, volume24h, openInterest int64) domain.Market {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Market{
		Ticker:       ticker,
		EventTicker:  "EVT-1",
		SeriesTicker: "SER-1",
		Title:        "Will the thing happen?",
		Status:       domain.MarketStatusOpen,
		YesBid:       yesBid,
		YesAsk:       yesAsk,
		Volume24h:    volume24h,
		OpenInterest: openInterest,
		CreatedTime:  now,
		OpenTime:     now,
		CloseTime:    now.Add(24 * time.Hour),
	}
}

type fakeMarketAPI struct {
	domain.MarketAPI
	candlesticks map[string][]domain.Candlestick
	candlesErr   error
}

func (f *fakeMarketAPI) GetMarketsCandlesticks(ctx context.Context, ticker, interval string, start, end int64) ([]domain.Candlestick, error) {
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	return f.candlesticks[ticker], nil
}

func newScannerForTest(t *testing.T, api domain.MarketAPI) (*Scanner, *database.DB) {
	t.Helper()
	db := newTestDB(t)
	markets := database.NewMarketRepository(db)
	snapshots := newSnapshotsRepo(t)
	return New(markets, snapshots, api, zerolog.Nop()), db
}

func TestCloseRaceRanksNearFiftyFiftyMarketsHighest(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	near := market("NEAR", money.FromCents(49), money.FromCents(51), 1000, 500)
	far := market("FAR", money.FromCents(20), money.FromCents(25), 1000, 500)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{near, far}))

	results, err := s.CloseRace(ctx, ProfileStandard, 0.40, 0.60)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "NEAR", results[0].Ticker)
}

func TestCloseRaceExcludesUnpricedAndMultivariate(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	unpriced := market("UNPRICED", 0, 0, 1000, 500)
	multi := market("MULTI", money.FromCents(49), money.FromCents(51), 1000, 500)
	multi.Multivariate = true
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{unpriced, multi}))

	results, err := s.CloseRace(ctx, ProfileStandard, 0.40, 0.60)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCloseRaceAppliesQualityProfileThresholds(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	thin := market("THIN", money.FromCents(49), money.FromCents(51), 5, 5)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{thin}))

	early, err := s.CloseRace(ctx, ProfileEarly, 0.40, 0.60)
	require.NoError(t, err)
	assert.Len(t, early, 1)

	strict, err := s.CloseRace(ctx, ProfileStrict, 0.40, 0.60)
	require.NoError(t, err)
	assert.Empty(t, strict)
}

func TestHighVolumeSortsDescending(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	low := market("LOW", money.FromCents(40), money.FromCents(45), 200, 200)
	high := market("HIGH", money.FromCents(40), money.FromCents(45), 5000, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{low, high}))

	results, err := s.HighVolume(ctx, ProfileStandard)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "HIGH", results[0].Ticker)
}

func TestWideSpreadSortsDescending(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	tight := market("TIGHT", money.FromCents(49), money.FromCents(50), 200, 200)
	wide := market("WIDE", money.FromCents(40), money.FromCents(49), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{tight, wide}))

	results, err := s.WideSpread(ctx, ProfileStandard)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "WIDE", results[0].Ticker)
}

func TestExpiringSoonFiltersByLookaheadWindow(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	soon := market("SOON", money.FromCents(40), money.FromCents(45), 200, 200)
	soon.CloseTime = now.Add(1 * time.Hour)
	later := market("LATER", money.FromCents(40), money.FromCents(45), 200, 200)
	later.CloseTime = now.Add(72 * time.Hour)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{soon, later}))

	results, err := s.ExpiringSoon(ctx, ProfileStandard, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "SOON", results[0].Ticker)
}

func TestNewMarketsSkipsUnpricedWithoutFlag(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := market("FRESH", 0, 0, 0, 0)
	fresh.CreatedTime = now
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{fresh}))

	results, err := s.NewMarkets(ctx, now.Add(time.Hour), 24*time.Hour, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	withFlag, err := s.NewMarkets(ctx, now.Add(time.Hour), 24*time.Hour, true)
	require.NoError(t, err)
	require.Len(t, withFlag, 1)
	assert.Equal(t, LabelNoQuotes, withFlag[0].Label)
}

func TestNewMarketsLabelsAwaitingPriceDiscoverySeparatelyFromNoQuotes(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	placeholder := market("PLACEHOLDER", 0, money.Amount(money.UnitsPerDollar), 0, 0)
	placeholder.CreatedTime = now
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{placeholder}))

	results, err := s.NewMarkets(ctx, now.Add(time.Hour), 24*time.Hour, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, LabelAwaitingPriceDiscovery, results[0].Label)
}

func TestMoversSkipsTickersWithoutPriorSnapshot(t *testing.T) {
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	ctx := context.Background()
	markets := database.NewMarketRepository(db)

	m := market("NOPRIOR", money.FromCents(40), money.FromCents(45), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{m}))

	results, err := s.Movers(ctx, ProfileStandard, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMoversRanksByAbsolutePriceChangeAndAttachesMomentum(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	markets := database.NewMarketRepository(db)
	snapshots := newSnapshotsRepo(t)

	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	m := market("MOVED", money.FromCents(70), money.FromCents(75), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{m}))

	prior := domain.PriceSnapshot{
		Ticker:    "MOVED",
		Timestamp: now.Add(-48 * time.Hour),
		YesBid:    money.FromCents(40),
		YesAsk:    money.FromCents(45),
	}
	require.NoError(t, snapshots.UpsertBatch(ctx, []domain.PriceSnapshot{prior}))

	candles := make([]domain.Candlestick, 0, momentumPeriod+2)
	for i := 0; i < momentumPeriod+2; i++ {
		candles = append(candles, domain.Candlestick{Close: float64(40 + i)})
	}
	api := &fakeMarketAPI{candlesticks: map[string][]domain.Candlestick{"MOVED": candles}}
	s := New(markets, snapshots, api, zerolog.Nop())

	results, err := s.Movers(ctx, ProfileStandard, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.3, results[0].PriceChange, 0.01)
	require.NotNil(t, results[0].MomentumScore)
}

func TestMoversToleratesCandlestickFetchFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	markets := database.NewMarketRepository(db)
	snapshots := newSnapshotsRepo(t)

	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	m := market("FAILCANDLE", money.FromCents(70), money.FromCents(75), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{m}))
	require.NoError(t, snapshots.UpsertBatch(ctx, []domain.PriceSnapshot{{
		Ticker: "FAILCANDLE", Timestamp: now.Add(-48 * time.Hour),
		YesBid: money.FromCents(40), YesAsk: money.FromCents(45),
	}}))

	api := &fakeMarketAPI{candlesErr: assertError{}}
	s := New(markets, snapshots, api, zerolog.Nop())

	results, err := s.Movers(ctx, ProfileStandard, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].MomentumScore)
}

type assertError struct{}

func (assertError) Error() string { return "candlestick fetch failed" }

func TestArbitrageFlagsMispricedComplements(t *testing.T) {
	ctx := context.Background()
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	markets := database.NewMarketRepository(db)

	yes := market("EVT-1-YES", money.FromCents(60), money.FromCents(62), 200, 200)
	no := market("EVT-1-NO", money.FromCents(45), money.FromCents(47), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{yes, no}))

	result, err := s.Arbitrage(ctx, "EVT-1", nil, 0.01)
	require.NoError(t, err)
	assert.Len(t, result.Legs, 2)
	assert.True(t, result.Signal)
	assert.InDelta(t, 1.07, result.SumProbability, 0.01)
}

func TestArbitrageAcceptsExplicitTickerSetWhenNoEventGiven(t *testing.T) {
	ctx := context.Background()
	s, db := newScannerForTest(t, &fakeMarketAPI{})
	markets := database.NewMarketRepository(db)

	a := market("A", money.FromCents(40), money.FromCents(42), 200, 200)
	b := market("B", money.FromCents(50), money.FromCents(52), 200, 200)
	require.NoError(t, markets.UpsertBatch(ctx, []domain.Market{a, b}))

	result, err := s.Arbitrage(ctx, "", []string{"A", "B"}, 0.05)
	require.NoError(t, err)
	assert.Len(t, result.Legs, 2)
	assert.False(t, result.Signal)
}
