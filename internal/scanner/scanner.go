package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/marketedge/internal/database"
	"github.com/aristath/marketedge/internal/domain"
)

// candlestickConcurrency bounds how many tickers the movers mode fetches
// candlesticks for at once; GetMarketsCandlesticks is rate-limited same
// as every other MarketAPI call.
const candlestickConcurrency = 5

// Scanner runs the §4.G discovery modes against persisted market state,
// touching the live MarketAPI only for the movers mode's momentum
// enrichment (candlesticks aren't ingested on a schedule).
type Scanner struct {
	markets   *database.MarketRepository
	snapshots *database.PriceSnapshotRepository
	api       domain.MarketAPI
	log       zerolog.Logger
}

func New(markets *database.MarketRepository, snapshots *database.PriceSnapshotRepository, api domain.MarketAPI, log zerolog.Logger) *Scanner {
	return &Scanner{markets: markets, snapshots: snapshots, api: api, log: log.With().Str("component", "scanner").Logger()}
}

func (s *Scanner) openMarkets(ctx context.Context) ([]domain.Market, error) {
	return s.markets.List(ctx, database.MarketListFilter{Status: domain.MarketStatusOpen})
}

// CloseRace returns open markets whose midpoint falls within [bandLow,
// bandHigh] (default 0.40-0.60), ranked by the §4.G tie-break score.
func (s *Scanner) CloseRace(ctx context.Context, profile QualityProfile, bandLow, bandHigh float64) ([]Opportunity, error) {
	markets, err := s.openMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: close-race: %w", err)
	}
	cfg := profile.Resolve()

	var results []Opportunity
	for _, m := range markets {
		if !passesDefaultFilter(m) || !passesQuality(m, cfg) {
			continue
		}
		mid := m.Midpoint()
		if mid < bandLow || mid > bandHigh {
			continue
		}
		opp := fromMarket(m, ModeCloseRace)
		opp.Score = closeRaceScore(mid, m.Volume24h, m.SpreadCents())
		results = append(results, opp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// HighVolume returns open, priced, non-multivariate markets sorted by
// 24h volume descending.
func (s *Scanner) HighVolume(ctx context.Context, profile QualityProfile) ([]Opportunity, error) {
	markets, err := s.openMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: high-volume: %w", err)
	}
	cfg := profile.Resolve()

	var results []Opportunity
	for _, m := range markets {
		if !passesDefaultFilter(m) || !passesQuality(m, cfg) {
			continue
		}
		opp := fromMarket(m, ModeHighVolume)
		opp.Score = float64(m.Volume24h)
		results = append(results, opp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Volume24h > results[j].Volume24h })
	return results, nil
}

// WideSpread returns open, priced, non-multivariate markets sorted by
// bid/ask spread descending.
func (s *Scanner) WideSpread(ctx context.Context, profile QualityProfile) ([]Opportunity, error) {
	markets, err := s.openMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: wide-spread: %w", err)
	}
	cfg := profile.Resolve()

	var results []Opportunity
	for _, m := range markets {
		if !passesDefaultFilter(m) || !passesQuality(m, cfg) {
			continue
		}
		opp := fromMarket(m, ModeWideSpread)
		opp.Score = m.SpreadCents()
		results = append(results, opp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SpreadCents > results[j].SpreadCents })
	return results, nil
}

// ExpiringSoon returns open markets closing within lookahead of now,
// soonest first.
func (s *Scanner) ExpiringSoon(ctx context.Context, profile QualityProfile, now time.Time, lookahead time.Duration) ([]Opportunity, error) {
	markets, err := s.openMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: expiring-soon: %w", err)
	}
	cfg := profile.Resolve()
	deadline := now.Add(lookahead)

	var results []Opportunity
	for _, m := range markets {
		if !passesDefaultFilter(m) || !passesQuality(m, cfg) {
			continue
		}
		if m.CloseTime.After(deadline) {
			continue
		}
		opp := fromMarket(m, ModeExpiringSoon)
		opp.Score = -float64(m.CloseTime.Unix())
		results = append(results, opp)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CloseTime < results[j].CloseTime })
	return results, nil
}

// NewMarkets returns markets created (or, absent that, opened) within
// window of now. includeUnpriced surfaces placeholder-quote markets with
// the appropriate label instead of skipping them.
func (s *Scanner) NewMarkets(ctx context.Context, now time.Time, window time.Duration, includeUnpriced bool) ([]Opportunity, error) {
	markets, err := s.markets.List(ctx, database.MarketListFilter{})
	if err != nil {
		return nil, fmt.Errorf("scanner: new-markets: %w", err)
	}
	cutoff := now.Add(-window)

	var results []Opportunity
	for _, m := range markets {
		reference := m.CreatedTime
		if reference.IsZero() {
			reference = m.OpenTime
		}
		if reference.Before(cutoff) {
			continue
		}
		if m.Multivariate {
			continue
		}
		if m.Unpriced() {
			if !includeUnpriced {
				continue
			}
			opp := fromMarket(m, ModeNewMarkets)
			opp.Label = unpricedLabel(m)
			results = append(results, opp)
			continue
		}
		results = append(results, fromMarket(m, ModeNewMarkets))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CloseTime > results[j].CloseTime })
	return results, nil
}

// Movers compares each open market's current midpoint against its latest
// snapshot taken between 2·period and period before now, ranking by
// absolute price change. Markets with no snapshot in that window are
// skipped.
// Momentum enrichment (candlestick-derived) is fetched concurrently,
// bounded by candlestickConcurrency, and is best-effort: a candlestick
// fetch failure for one ticker degrades that result's MomentumScore to
// nil rather than failing the whole scan.
func (s *Scanner) Movers(ctx context.Context, profile QualityProfile, now time.Time, period time.Duration) ([]Opportunity, error) {
	markets, err := s.openMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: movers: %w", err)
	}
	cfg := profile.Resolve()

	var candidates []moverCandidate
	for _, m := range markets {
		if !passesDefaultFilter(m) || !passesQuality(m, cfg) {
			continue
		}
		cutoff := now.Add(-period)
		snaps, err := s.snapshots.SnapshotsInRange(ctx, m.Ticker, cutoff.Add(-period), cutoff)
		if err != nil || len(snaps) == 0 {
			continue
		}
		prior := snaps[len(snaps)-1]
		priorMid := (prior.YesBid.Cents() + prior.YesAsk.Cents()) / 2 / 100

		opp := fromMarket(m, ModeMovers)
		opp.PriceChange = m.Midpoint() - priorMid
		opp.Score = math.Abs(opp.PriceChange)
		candidates = append(candidates, moverCandidate{market: m, opp: opp})
	}

	s.enrichMomentum(ctx, candidates)

	results := make([]Opportunity, len(candidates))
	for i, c := range candidates {
		results[i] = c.opp
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// ArbitrageLeg is one market's contribution to an arbitrage sum.
type ArbitrageLeg struct {
	Ticker         string
	MidProbability float64
}

// ArbitrageResult reports whether a ticker set's combined yes-probability
// exceeds 1+epsilon (a mispriced-complements signal per §4.G and the
// best_yes_bid+best_no_bid<=100 invariant it generalizes).
type ArbitrageResult struct {
	Legs           []ArbitrageLeg
	SumProbability float64
	Epsilon        float64
	Signal         bool
}

// Arbitrage sums yes-probabilities across an event's markets, or an
// explicit user-supplied ticker set when eventTicker is empty.
func (s *Scanner) Arbitrage(ctx context.Context, eventTicker string, tickers []string, epsilon float64) (ArbitrageResult, error) {
	var markets []domain.Market
	if eventTicker != "" {
		found, err := s.markets.List(ctx, database.MarketListFilter{EventTicker: eventTicker})
		if err != nil {
			return ArbitrageResult{}, fmt.Errorf("scanner: arbitrage: %w", err)
		}
		markets = found
	} else {
		for _, ticker := range tickers {
			m, err := s.markets.FindByKey(ctx, ticker)
			if err != nil {
				return ArbitrageResult{}, fmt.Errorf("scanner: arbitrage: %w", err)
			}
			markets = append(markets, m)
		}
	}

	result := ArbitrageResult{Epsilon: epsilon}
	for _, m := range markets {
		mid := m.Midpoint()
		result.Legs = append(result.Legs, ArbitrageLeg{Ticker: m.Ticker, MidProbability: mid})
		result.SumProbability += mid
	}
	result.Signal = result.SumProbability > 1+epsilon
	return result, nil
}

// moverCandidate pairs a market's computed Opportunity with its source
// market, so enrichMomentum can fetch candlesticks by ticker and mutate
// the Opportunity's MomentumScore in place.
type moverCandidate struct {
	market domain.Market
	opp    Opportunity
}

func (s *Scanner) enrichMomentum(ctx context.Context, candidates []moverCandidate) {
	if len(candidates) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(candlestickConcurrency)
	var mu sync.Mutex

	for i := range candidates {
		i := i
		g.Go(func() error {
			ticker := candidates[i].market.Ticker
			end := time.Now().Unix()
			start := end - int64((momentumPeriod+5)*3600)
			candles, err := s.api.GetMarketsCandlesticks(gctx, ticker, "1h", start, end)
			if err != nil {
				s.log.Warn().Err(err).Str("ticker", ticker).Msg("candlestick fetch failed, movers result has no momentum score")
				return nil
			}
			score := momentumScore(candles)
			mu.Lock()
			candidates[i].opp.MomentumScore = score
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}
