package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/marketedge/internal/domain"
)

// PriceSnapshotRepository is the repository contract for price_snapshots.
type PriceSnapshotRepository struct {
	db *DB
}

func NewPriceSnapshotRepository(db *DB) *PriceSnapshotRepository {
	return &PriceSnapshotRepository{db: db}
}

// UpsertBatch stores snapshots, committing every batchCommitSize rows.
// (ticker, snapshot_ts) is unique: a re-ingested snapshot for the same
// instant replaces the prior one rather than erroring.
func (r *PriceSnapshotRepository) UpsertBatch(ctx context.Context, snapshots []domain.PriceSnapshot) error {
	for start := 0; start < len(snapshots); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		if err := r.upsertChunk(ctx, snapshots[start:end]); err != nil {
			return fmt.Errorf("database: upsert price_snapshots batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *PriceSnapshotRepository) upsertChunk(ctx context.Context, chunk []domain.PriceSnapshot) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, s := range chunk {
			var liquidity any
			if s.Liquidity != nil {
				liquidity = *s.Liquidity
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO price_snapshots (ticker, snapshot_ts, yes_bid, yes_ask, volume, open_interest, liquidity)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(ticker, snapshot_ts) DO UPDATE SET
					yes_bid=excluded.yes_bid, yes_ask=excluded.yes_ask, volume=excluded.volume,
					open_interest=excluded.open_interest, liquidity=excluded.liquidity`,
				s.Ticker, s.Timestamp.UTC().Format(rfc3339Micro), int64(s.YesBid), int64(s.YesAsk),
				s.Volume, s.OpenInterest, liquidity)
			if err != nil {
				return fmt.Errorf("upsert price_snapshot %s@%s: %w", s.Ticker, s.Timestamp, err)
			}
		}
		return nil
	})
}

// LatestSnapshot returns the most recent snapshot for ticker.
func (r *PriceSnapshotRepository) LatestSnapshot(ctx context.Context, ticker string) (domain.PriceSnapshot, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT ticker, snapshot_ts, yes_bid, yes_ask, volume, open_interest, liquidity
		FROM price_snapshots WHERE ticker = ? ORDER BY snapshot_ts DESC LIMIT 1`, ticker)
	snap, err := scanPriceSnapshot(row)
	if err == sql.ErrNoRows {
		return domain.PriceSnapshot{}, &domain.NotFoundError{Resource: "price_snapshot", Key: ticker}
	}
	return snap, err
}

// SnapshotsInRange returns snapshots for ticker within [from, to], ascending.
func (r *PriceSnapshotRepository) SnapshotsInRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PriceSnapshot, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT ticker, snapshot_ts, yes_bid, yes_ask, volume, open_interest, liquidity
		FROM price_snapshots WHERE ticker = ? AND snapshot_ts >= ? AND snapshot_ts <= ? ORDER BY snapshot_ts ASC`,
		ticker, from.UTC().Format(rfc3339Micro), to.UTC().Format(rfc3339Micro))
	if err != nil {
		return nil, fmt.Errorf("database: snapshots in range: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceSnapshot
	for rows.Next() {
		s, err := scanPriceSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanPriceSnapshot(row rowScanner) (domain.PriceSnapshot, error) {
	var s domain.PriceSnapshot
	var snapshotTS string
	var liquidity sql.NullInt64
	var yesBid, yesAsk int64

	if err := row.Scan(&s.Ticker, &snapshotTS, &yesBid, &yesAsk, &s.Volume, &s.OpenInterest, &liquidity); err != nil {
		return domain.PriceSnapshot{}, err
	}
	t, err := parseStoredTime(snapshotTS)
	if err != nil {
		return domain.PriceSnapshot{}, fmt.Errorf("parse snapshot_ts: %w", err)
	}
	s.Timestamp = t
	s.YesBid = amountFromInt64(yesBid)
	s.YesAsk = amountFromInt64(yesAsk)
	if liquidity.Valid {
		v := liquidity.Int64
		s.Liquidity = &v
	}
	return s, nil
}

// OrderbookSnapshotRepository is the repository contract for orderbook_snapshots.
type OrderbookSnapshotRepository struct {
	db *DB
}

func NewOrderbookSnapshotRepository(db *DB) *OrderbookSnapshotRepository {
	return &OrderbookSnapshotRepository{db: db}
}

// Insert records one orderbook snapshot. Orderbook levels are encoded as
// JSON arrays since they're never queried by individual level, only
// reloaded whole for replay/backtest purposes.
func (r *OrderbookSnapshotRepository) Insert(ctx context.Context, snap domain.OrderbookSnapshot) error {
	yesJSON, err := json.Marshal(snap.YesBids)
	if err != nil {
		return fmt.Errorf("database: marshal yes bids: %w", err)
	}
	noJSON, err := json.Marshal(snap.NoBids)
	if err != nil {
		return fmt.Errorf("database: marshal no bids: %w", err)
	}
	_, err = r.db.conn.ExecContext(ctx, `INSERT INTO orderbook_snapshots (ticker, snapshot_ts, yes_bids_json, no_bids_json)
		VALUES (?, ?, ?, ?)`, snap.Ticker, snap.Timestamp, string(yesJSON), string(noJSON))
	if err != nil {
		return fmt.Errorf("database: insert orderbook_snapshot %s: %w", snap.Ticker, err)
	}
	return nil
}

// LatestSnapshot returns the most recent orderbook snapshot for ticker.
func (r *OrderbookSnapshotRepository) LatestSnapshot(ctx context.Context, ticker string) (domain.OrderbookSnapshot, error) {
	var snap domain.OrderbookSnapshot
	var yesJSON, noJSON string
	row := r.db.conn.QueryRowContext(ctx, `SELECT ticker, snapshot_ts, yes_bids_json, no_bids_json
		FROM orderbook_snapshots WHERE ticker = ? ORDER BY snapshot_ts DESC LIMIT 1`, ticker)
	if err := row.Scan(&snap.Ticker, &snap.Timestamp, &yesJSON, &noJSON); err != nil {
		if err == sql.ErrNoRows {
			return domain.OrderbookSnapshot{}, &domain.NotFoundError{Resource: "orderbook_snapshot", Key: ticker}
		}
		return domain.OrderbookSnapshot{}, err
	}
	if err := json.Unmarshal([]byte(yesJSON), &snap.YesBids); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("database: unmarshal yes bids: %w", err)
	}
	if err := json.Unmarshal([]byte(noJSON), &snap.NoBids); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("database: unmarshal no bids: %w", err)
	}
	return snap, nil
}
