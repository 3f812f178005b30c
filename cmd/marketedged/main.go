package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/marketedge/internal/config"
	"github.com/aristath/marketedge/internal/database"
	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/httpclient"
	"github.com/aristath/marketedge/internal/ingest"
	"github.com/aristath/marketedge/internal/orchestrator"
	"github.com/aristath/marketedge/internal/ratelimit"
	"github.com/aristath/marketedge/internal/research"
	"github.com/aristath/marketedge/internal/scanner"
	"github.com/aristath/marketedge/internal/sign"
	"github.com/aristath/marketedge/internal/synth"
	"github.com/aristath/marketedge/pkg/logger"
)

// demoBaseURL and prodBaseURL are the two hosts §6's Environment input
// selects between.
const (
	demoBaseURL = "https://demo-api.kalshi.co"
	prodBaseURL = "https://api.elections.kalshi.com"
)

// ingestPeriod is the drift-corrected schedule's tick interval.
const ingestPeriod = 5 * time.Minute

// maintenancePeriod is how often serve prunes stale rows and reclaims WAL
// space; retention doesn't need the same cadence as market syncing.
const maintenancePeriod = 6 * time.Hour

// retentionWindow bounds how long price_snapshots/news_items are kept
// before Prune deletes them.
const retentionWindow = 90 * 24 * time.Hour

// deps bundles everything the subcommands share, built once at startup.
//
// Persistence is split across three databases by write profile, matching
// the teacher's per-book sharding: coreDB (ProfileStandard) holds reference
// and research data, ledgerDB (ProfileLedger) holds the immutable
// settlement/fill audit trail, and cacheDB (ProfileCache) holds the
// high-frequency, disposable price/orderbook snapshots.
type deps struct {
	cfg         *config.Config
	coreDB      *database.DB
	ledgerDB    *database.DB
	cacheDB     *database.DB
	markets     *database.MarketRepository
	orderbooks  *database.OrderbookSnapshotRepository
	snapshots   *database.PriceSnapshotRepository
	settlements *database.SettlementRepository
	fills       *database.FillRepository
	theses      *database.ThesisRepository
	predictions *database.PredictionLogRepository
	api         domain.MarketAPI
	orch        *orchestrator.Orchestrator
	scan        *scanner.Scanner
	log         zerolog.Logger
}

// dbs returns every database deps owns, for health checks and maintenance
// sweeps that apply uniformly across the split.
func (d *deps) dbs() []*database.DB {
	return []*database.DB{d.coreDB, d.ledgerDB, d.cacheDB}
}

// close shuts down every database deps owns.
func (d *deps) close() {
	for _, db := range d.dbs() {
		db.Close()
	}
}

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	d, err := build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize marketedged")
	}
	defer d.close()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var cmdErr error
	switch cmd {
	case "serve":
		cmdErr = d.serve()
	case "analyze":
		cmdErr = d.analyze(args)
	case "scan":
		cmdErr = d.runScan(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve|analyze|scan)\n", cmd)
		os.Exit(1)
	}
	if cmdErr != nil {
		log.Error().Err(cmdErr).Str("command", cmd).Msg("command failed")
		os.Exit(2)
	}
}

func build(cfg *config.Config, log zerolog.Logger) (*deps, error) {
	coreDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "marketedge.db"),
		Profile: database.ProfileStandard,
		Name:    "marketedge",
	})
	if err != nil {
		return nil, fmt.Errorf("open core database: %w", err)
	}
	if err := coreDB.Migrate(); err != nil {
		coreDB.Close()
		return nil, fmt.Errorf("run core migrations: %w", err)
	}

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		coreDB.Close()
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := ledgerDB.Migrate(); err != nil {
		coreDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("run ledger migrations: %w", err)
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "snapshots.db"),
		Profile: database.ProfileCache,
		Name:    "snapshots",
	})
	if err != nil {
		coreDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		coreDB.Close()
		ledgerDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("run cache migrations: %w", err)
	}

	api, err := buildMarketAPI(cfg, log)
	if err != nil {
		coreDB.Close()
		ledgerDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("build market API client: %w", err)
	}

	researchProvider := buildResearchProvider(cfg)
	synthesizer := buildSynthesizer(cfg)
	validatingSynthesizer := synth.NewRetryingSynthesizer(synthesizer, synth.DefaultValidator, log)

	markets := database.NewMarketRepository(coreDB)
	orderbooks := database.NewOrderbookSnapshotRepository(cacheDB)
	snapshots := database.NewPriceSnapshotRepository(cacheDB)
	settlements := database.NewSettlementRepository(ledgerDB)
	fills := database.NewFillRepository(ledgerDB)
	theses := database.NewThesisRepository(coreDB)
	predictions := database.NewPredictionLogRepository(coreDB)

	return &deps{
		cfg:         cfg,
		coreDB:      coreDB,
		ledgerDB:    ledgerDB,
		cacheDB:     cacheDB,
		markets:     markets,
		orderbooks:  orderbooks,
		snapshots:   snapshots,
		settlements: settlements,
		fills:       fills,
		theses:      theses,
		predictions: predictions,
		api:         api,
		orch:        orchestrator.New(markets, orderbooks, theses, predictions, researchProvider, validatingSynthesizer, log),
		scan:        scanner.New(markets, snapshots, api, log),
		log:         log,
	}, nil
}

// serve runs the §4.E ingestion scheduler until an interrupt signal
// arrives, matching the teacher's signal-wait/graceful-shutdown shape.
func (d *deps) serve() error {
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()
	for _, db := range d.dbs() {
		if err := db.HealthCheck(startupCtx); err != nil {
			return fmt.Errorf("startup health check (%s): %w", db.Name(), err)
		}
	}

	pipeline := ingest.NewPipeline(d.log,
		ingest.NewSyncMarketsStage(d.api, d.markets, domain.MarketFilter{Status: []domain.MarketStatus{domain.MarketStatusOpen}}, d.log),
		ingest.NewSnapshotStage(d.api, d.markets, d.snapshots, ingest.SystemClock{}, d.log),
		ingest.NewSyncSettlementsStage(d.api, d.settlements, domain.SettlementFilter{}, d.log),
		ingest.NewSyncFillsStage(d.api, d.fills, domain.FillFilter{}, d.log),
	)
	schedule := ingest.NewDriftCorrectedSchedule(time.Now(), ingestPeriod)
	sched := ingest.NewScheduler(pipeline, schedule, ingest.ModeContinuous, d.log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	go d.runMaintenance(ctx)

	d.log.Info().Str("environment", string(d.cfg.Environment)).Msg("marketedged started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		d.log.Info().Msg("shutting down")
		cancel()
		return <-done
	case err := <-done:
		return err
	}
}

// runMaintenance prunes rows older than retentionWindow and reclaims WAL
// space on maintenancePeriod, logging database stats each pass. It exits
// when ctx is cancelled.
func (d *deps) runMaintenance(ctx context.Context) {
	schedule := ingest.NewDriftCorrectedSchedule(time.Now(), maintenancePeriod)
	next := schedule.Next(time.Now())
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		next = schedule.Next(time.Now())
		cutoff := time.Now().Add(-retentionWindow)

		for _, db := range d.dbs() {
			if err := db.QuickCheck(ctx); err != nil {
				d.log.Error().Err(err).Str("database", db.Name()).Msg("maintenance: database unreachable")
				continue
			}
			if stats, err := db.GetStats(); err != nil {
				d.log.Warn().Err(err).Str("database", db.Name()).Msg("maintenance: failed to collect database stats")
			} else {
				d.log.Info().
					Str("database", db.Name()).
					Int64("size_bytes", stats.SizeBytes).
					Int64("wal_size_bytes", stats.WALSizeBytes).
					Int64("page_count", stats.PageCount).
					Int64("freelist_count", stats.FreelistCount).
					Msg("database stats")
			}
			if err := db.Reclaim(d.log); err != nil {
				d.log.Error().Err(err).Str("database", db.Name()).Msg("maintenance: reclaim failed")
			}
		}

		if result, err := d.cacheDB.PrunePriceSnapshots(cutoff, false); err != nil {
			d.log.Error().Err(err).Msg("maintenance: prune price_snapshots failed")
		} else {
			d.log.Info().Int64("rows_deleted", result.RowsDeleted).Msg("maintenance: pruned price_snapshots")
		}
		if result, err := d.coreDB.PruneNewsItems(cutoff, false); err != nil {
			d.log.Error().Err(err).Msg("maintenance: prune news_items failed")
		} else {
			d.log.Info().Int64("rows_deleted", result.RowsDeleted).Msg("maintenance: pruned news_items")
		}
	}
}

// analyze runs one orchestrator pass for a ticker: `analyze TICKER [mode] [budgetUSD]`.
func (d *deps) analyze(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: analyze TICKER [fast|standard|deep] [budgetUSD]")
	}
	ticker := args[0]
	mode := orchestrator.ModeStandard
	if len(args) > 1 {
		mode = orchestrator.Mode(args[1])
	}
	budget := 0.50
	if len(args) > 2 {
		if _, err := fmt.Sscanf(args[2], "%f", &budget); err != nil {
			return fmt.Errorf("invalid budget %q: %w", args[2], err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := d.orch.Run(ctx, ticker, uuid.NewString(), mode, budget)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// runScan runs one scan mode: `scan MODE [profile]`.
func (d *deps) runScan(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: scan close-race|high-volume|wide-spread|expiring-soon|movers|new-markets [profile]")
	}
	profile := scanner.ProfileStandard
	if len(args) > 1 {
		profile = scanner.QualityProfile(args[1])
	}

	ctx := context.Background()
	now := time.Now()

	var (
		results interface{}
		err     error
	)
	switch args[0] {
	case "close-race":
		results, err = d.scan.CloseRace(ctx, profile, 0.40, 0.60)
	case "high-volume":
		results, err = d.scan.HighVolume(ctx, profile)
	case "wide-spread":
		results, err = d.scan.WideSpread(ctx, profile)
	case "expiring-soon":
		results, err = d.scan.ExpiringSoon(ctx, profile, now, 24*time.Hour)
	case "movers":
		results, err = d.scan.Movers(ctx, profile, now, 24*time.Hour)
	case "new-markets":
		results, err = d.scan.NewMarkets(ctx, now, 24*time.Hour, true)
	default:
		return fmt.Errorf("unknown scan mode %q", args[0])
	}
	if err != nil {
		return err
	}
	return printJSON(results)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func buildMarketAPI(cfg *config.Config, log zerolog.Logger) (domain.MarketAPI, error) {
	baseURL := demoBaseURL
	if cfg.Environment == config.EnvironmentProd {
		baseURL = prodBaseURL
	}

	limiter := ratelimit.New(ratelimit.TierBasic, log)

	var opts []httpclient.Option
	if cfg.Authenticated() {
		signer, err := buildSigner(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpclient.WithSigner(signer))
	}
	return httpclient.New(baseURL, limiter, log, opts...), nil
}

func buildSigner(cfg *config.Config) (*sign.Signer, error) {
	if cfg.PrivateKeyPath != "" {
		return sign.NewFromPEMFile(cfg.KeyID, cfg.PrivateKeyPath)
	}
	keyBytes, err := base64.StdEncoding.DecodeString(cfg.PrivateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode PRIVATE_KEY_B64: %w", err)
	}
	return sign.NewFromPEM(cfg.KeyID, keyBytes)
}

// buildResearchProvider always wraps a provider in the cost-saving cache.
// RESEARCH_API_KEY is reserved for a live search/answer backend; until one
// is wired every backend runs against the deterministic mock so the
// orchestrator's research stage stays exercisable offline (§4.I is an
// interface boundary, not a concrete adapter, per DESIGN.md).
func buildResearchProvider(cfg *config.Config) domain.ResearchProvider {
	var inner domain.ResearchProvider = research.NewMockProvider()
	return research.NewCachingProvider(inner, research.NewCache())
}

// buildSynthesizer resolves SYNTHESIZER_BACKEND. provider-a, provider-b,
// and local name external-model adapters outside this module's scope
// (§4.J documents the Synthesizer interface, not a concrete LLM client);
// every backend currently resolves to the deterministic mock.
func buildSynthesizer(cfg *config.Config) domain.Synthesizer {
	return synth.NewMockSynthesizer()
}
