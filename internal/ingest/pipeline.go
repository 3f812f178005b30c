package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketedge/internal/database"
	"github.com/aristath/marketedge/internal/domain"
)

// StageName identifies one of the four fixed pipeline stages (§4.E).
type StageName string

const (
	StageSyncMarkets     StageName = "sync-markets"
	StageSnapshot        StageName = "snapshot"
	StageSyncSettlements StageName = "sync-settlements"
	StageSyncFills       StageName = "sync-fills"
)

// Stage is one unit of ingestion work. Run must be safe to call repeatedly
// (idempotent upserts) since a failed mid-stream page leaves partial state
// that the next tick will simply overwrite.
type Stage interface {
	Name() StageName
	Run(ctx context.Context) error
}

// Pipeline runs a fixed ordered sequence of stages. A stage failure is
// logged and returned to the caller (the scheduler decides whether that
// counts toward the consecutive-failure budget); stages already run in
// this tick keep whatever they persisted.
type Pipeline struct {
	stages []Stage
	log    zerolog.Logger
}

func NewPipeline(log zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log.With().Str("component", "ingest_pipeline").Logger()}
}

// RunTick executes every configured stage in order, stopping at the first
// failure. Cancellation between stages is cooperative: ctx is checked
// before each stage starts, never mid-stage.
func (p *Pipeline) RunTick(ctx context.Context) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := stage.Run(ctx); err != nil {
			p.log.Error().Err(err).Str("stage", string(stage.Name())).Msg("pipeline stage failed")
			return fmt.Errorf("ingest: stage %s: %w", stage.Name(), err)
		}
		p.log.Debug().Str("stage", string(stage.Name())).Dur("elapsed", time.Since(start)).Msg("stage completed")
	}
	return nil
}

// SyncMarketsStage discovers markets via paginated GetMarkets and upserts
// them (and their parent events) in batch-commit chunks.
type SyncMarketsStage struct {
	api     domain.MarketAPI
	markets *database.MarketRepository
	filter  domain.MarketFilter
	log     zerolog.Logger
}

func NewSyncMarketsStage(api domain.MarketAPI, markets *database.MarketRepository, filter domain.MarketFilter, log zerolog.Logger) *SyncMarketsStage {
	return &SyncMarketsStage{api: api, markets: markets, filter: filter, log: log.With().Str("stage", string(StageSyncMarkets)).Logger()}
}

func (s *SyncMarketsStage) Name() StageName { return StageSyncMarkets }

func (s *SyncMarketsStage) Run(ctx context.Context) error {
	page, err := s.api.GetMarkets(ctx, s.filter)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	for _, w := range page.Warnings {
		s.log.Warn().Str("warning", w).Msg("market discovery warning")
	}
	if len(page.Markets) == 0 {
		return nil
	}
	return s.markets.UpsertBatch(ctx, page.Markets)
}

// SnapshotStage reads every open market from the market store and persists
// a PriceSnapshot row per ticker from its stored quote, stamped with the
// supplied clock. It makes no MarketAPI call of its own.
type SnapshotStage struct {
	api       domain.MarketAPI
	markets   *database.MarketRepository
	snapshots *database.PriceSnapshotRepository
	clock     domain.Clock
	log       zerolog.Logger
}

func NewSnapshotStage(api domain.MarketAPI, markets *database.MarketRepository, snapshots *database.PriceSnapshotRepository, clock domain.Clock, log zerolog.Logger) *SnapshotStage {
	return &SnapshotStage{api: api, markets: markets, snapshots: snapshots, clock: clock, log: log.With().Str("stage", string(StageSnapshot)).Logger()}
}

func (s *SnapshotStage) Name() StageName { return StageSnapshot }

func (s *SnapshotStage) Run(ctx context.Context) error {
	open, err := s.markets.List(ctx, database.MarketListFilter{Status: domain.MarketStatusOpen})
	if err != nil {
		return fmt.Errorf("list open markets: %w", err)
	}
	now := s.clock.Now()
	snaps := make([]domain.PriceSnapshot, 0, len(open))
	for _, m := range open {
		if err := ctx.Err(); err != nil {
			return err
		}
		snaps = append(snaps, domain.PriceSnapshot{
			Ticker:       m.Ticker,
			Timestamp:    now,
			YesBid:       m.YesBid,
			YesAsk:       m.YesAsk,
			Volume:       m.Volume24h,
			OpenInterest: m.OpenInterest,
			Liquidity:    m.Liquidity,
		})
	}
	if len(snaps) == 0 {
		return nil
	}
	return s.snapshots.UpsertBatch(ctx, snaps)
}

// SyncSettlementsStage fetches newly settled markets and records them.
type SyncSettlementsStage struct {
	api         domain.MarketAPI
	settlements *database.SettlementRepository
	filter      domain.SettlementFilter
	log         zerolog.Logger
}

func NewSyncSettlementsStage(api domain.MarketAPI, settlements *database.SettlementRepository, filter domain.SettlementFilter, log zerolog.Logger) *SyncSettlementsStage {
	return &SyncSettlementsStage{api: api, settlements: settlements, filter: filter, log: log.With().Str("stage", string(StageSyncSettlements)).Logger()}
}

func (s *SyncSettlementsStage) Name() StageName { return StageSyncSettlements }

func (s *SyncSettlementsStage) Run(ctx context.Context) error {
	settlements, err := s.api.GetSettlements(ctx, s.filter)
	if err != nil {
		return fmt.Errorf("fetch settlements: %w", err)
	}
	if len(settlements) == 0 {
		return nil
	}
	return s.settlements.UpsertBatch(ctx, settlements)
}

// SyncFillsStage fetches new account fills and records them.
type SyncFillsStage struct {
	api    domain.MarketAPI
	fills  *database.FillRepository
	filter domain.FillFilter
	log    zerolog.Logger
}

func NewSyncFillsStage(api domain.MarketAPI, fills *database.FillRepository, filter domain.FillFilter, log zerolog.Logger) *SyncFillsStage {
	return &SyncFillsStage{api: api, fills: fills, filter: filter, log: log.With().Str("stage", string(StageSyncFills)).Logger()}
}

func (s *SyncFillsStage) Name() StageName { return StageSyncFills }

func (s *SyncFillsStage) Run(ctx context.Context) error {
	fills, err := s.api.GetFills(ctx, s.filter)
	if err != nil {
		return fmt.Errorf("fetch fills: %w", err)
	}
	if len(fills) == 0 {
		return nil
	}
	return s.fills.UpsertBatch(ctx, fills)
}
