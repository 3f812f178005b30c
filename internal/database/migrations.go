package database

// migration is one forward-only schema change, applied at most once and
// recorded in schema_migrations.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// coreMigrations holds the tables behind the ProfileStandard database:
// reference data, research artifacts, and anything else that isn't on the
// hot write path or the immutable trade ledger.
var coreMigrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS events (
	event_ticker  TEXT PRIMARY KEY,
	series_ticker TEXT NOT NULL,
	title         TEXT NOT NULL,
	is_multivariate INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS markets (
	ticker         TEXT PRIMARY KEY,
	event_ticker   TEXT NOT NULL REFERENCES events(event_ticker),
	series_ticker  TEXT NOT NULL,
	title          TEXT NOT NULL,
	status         TEXT NOT NULL,
	yes_bid        INTEGER NOT NULL,
	yes_ask        INTEGER NOT NULL,
	volume_24h     INTEGER NOT NULL DEFAULT 0,
	open_interest  INTEGER NOT NULL DEFAULT 0,
	liquidity      INTEGER,
	is_multivariate INTEGER NOT NULL DEFAULT 0,
	created_time   TEXT NOT NULL,
	open_time      TEXT NOT NULL,
	close_time     TEXT NOT NULL,
	settled_time   TEXT
);
CREATE INDEX IF NOT EXISTS idx_markets_event ON markets(event_ticker);
CREATE INDEX IF NOT EXISTS idx_markets_status ON markets(status);

CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	ticker   TEXT NOT NULL,
	side     TEXT NOT NULL,
	action   TEXT NOT NULL,
	count    INTEGER NOT NULL,
	price    INTEGER NOT NULL,
	status   TEXT NOT NULL,
	created_ts TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS theses (
	thesis_id          TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	markets_json       TEXT NOT NULL,
	your_probability   REAL NOT NULL,
	market_probability REAL NOT NULL,
	confidence         TEXT NOT NULL,
	status             TEXT NOT NULL,
	resolution_outcome TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	kind      TEXT NOT NULL,
	ticker    TEXT NOT NULL,
	threshold REAL NOT NULL,
	direction TEXT NOT NULL,
	active    INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_alerts_ticker ON alerts(ticker) WHERE active = 1;

CREATE TABLE IF NOT EXISTS prediction_log (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker              TEXT NOT NULL,
	predicted_prob      REAL NOT NULL,
	market_prob_at_time REAL NOT NULL,
	confidence          TEXT NOT NULL,
	reasoning           TEXT NOT NULL,
	factors_json        TEXT NOT NULL,
	predicted_at        TEXT NOT NULL,
	actual_outcome      INTEGER,
	resolved_at         TEXT,
	brier_score         REAL
);
CREATE INDEX IF NOT EXISTS idx_prediction_log_ticker ON prediction_log(ticker);

CREATE TABLE IF NOT EXISTS news_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker      TEXT,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL,
	published_at TEXT NOT NULL,
	fetched_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_news_items_ticker ON news_items(ticker);

CREATE TABLE IF NOT EXISTS sentiment_scores (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker     TEXT NOT NULL,
	score      REAL NOT NULL,
	source     TEXT NOT NULL,
	computed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentiment_scores_ticker ON sentiment_scores(ticker, computed_at);
`,
	},
}

// ledgerMigrations holds settlements and fills: the immutable trade/outcome
// record. Kept in a separate ProfileLedger database so FULL synchronous and
// auto_vacuum(NONE) apply to the audit trail alone, not to the
// frequently-overwritten snapshot tables.
var ledgerMigrations = []migration{
	{
		Version: 1,
		Name:    "ledger_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS settlements (
	ticker                TEXT PRIMARY KEY,
	settled_at            TEXT NOT NULL,
	settlement_value      INTEGER NOT NULL CHECK (settlement_value IN (0, 1)),
	actual_settlement_ts  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	fill_id  TEXT PRIMARY KEY,
	ticker   TEXT NOT NULL,
	side     TEXT NOT NULL CHECK (side IN ('yes', 'no')),
	action   TEXT NOT NULL CHECK (action IN ('buy', 'sell')),
	count    INTEGER NOT NULL,
	price    INTEGER NOT NULL,
	fees     INTEGER NOT NULL DEFAULT 0,
	trade_ts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_ticker_ts ON fills(ticker, trade_ts);
`,
	},
}

// cacheMigrations holds price_snapshots and orderbook_snapshots: the highest
// write-volume tables, rewritten on every ingestion tick and safe to lose on
// a crash, so they get their own ProfileCache database with synchronous(OFF).
var cacheMigrations = []migration{
	{
		Version: 1,
		Name:    "cache_schema",
		SQL: `
CREATE TABLE IF NOT EXISTS price_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker        TEXT NOT NULL,
	snapshot_ts   TEXT NOT NULL,
	yes_bid       INTEGER NOT NULL,
	yes_ask       INTEGER NOT NULL,
	volume        INTEGER NOT NULL DEFAULT 0,
	open_interest INTEGER NOT NULL DEFAULT 0,
	liquidity     INTEGER,
	UNIQUE(ticker, snapshot_ts)
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_ticker ON price_snapshots(ticker, snapshot_ts);

CREATE TABLE IF NOT EXISTS orderbook_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker      TEXT NOT NULL,
	snapshot_ts INTEGER NOT NULL,
	yes_bids_json TEXT NOT NULL,
	no_bids_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orderbook_snapshots_ticker ON orderbook_snapshots(ticker, snapshot_ts);
`,
	},
}

// migrationsForProfile returns the migration set a database opened with the
// given profile should apply. Each profile owns a disjoint set of tables, so
// a single *DB never needs more than one of these lists.
func migrationsForProfile(profile DatabaseProfile) []migration {
	switch profile {
	case ProfileLedger:
		return ledgerMigrations
	case ProfileCache:
		return cacheMigrations
	default:
		return coreMigrations
	}
}
