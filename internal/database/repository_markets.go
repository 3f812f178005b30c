package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// batchCommitSize is how many rows an upsert_batch commits within a single
// transaction before starting the next one, per §4.D.
const batchCommitSize = 100

// MarketRepository is the repository contract for the markets aggregate.
type MarketRepository struct {
	db *DB
}

func NewMarketRepository(db *DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// UpsertBatch inserts or replaces markets, committing every batchCommitSize
// rows within a transaction. Events referenced by EventTicker are upserted
// first so the foreign key never fails mid-batch.
func (r *MarketRepository) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	for start := 0; start < len(markets); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(markets) {
			end = len(markets)
		}
		if err := r.upsertChunk(ctx, markets[start:end]); err != nil {
			return fmt.Errorf("database: upsert markets batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *MarketRepository) upsertChunk(ctx context.Context, chunk []domain.Market) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, m := range chunk {
			if _, err := tx.ExecContext(ctx, `INSERT INTO events (event_ticker, series_ticker, title, is_multivariate)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(event_ticker) DO UPDATE SET series_ticker=excluded.series_ticker, title=excluded.title, is_multivariate=excluded.is_multivariate`,
				m.EventTicker, m.SeriesTicker, m.Title, boolToInt(m.Multivariate)); err != nil {
				return fmt.Errorf("upsert parent event %s: %w", m.EventTicker, err)
			}

			if err := upsertMarket(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertMarket(ctx context.Context, tx *sql.Tx, m domain.Market) error {
	var liquidity any
	if m.Liquidity != nil {
		liquidity = *m.Liquidity
	}
	var settledTime any
	if m.SettledTime != nil {
		settledTime = m.SettledTime.Format(rfc3339Micro)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO markets
		(ticker, event_ticker, series_ticker, title, status, yes_bid, yes_ask, volume_24h, open_interest, liquidity, is_multivariate, created_time, open_time, close_time, settled_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			status=excluded.status, yes_bid=excluded.yes_bid, yes_ask=excluded.yes_ask,
			volume_24h=excluded.volume_24h, open_interest=excluded.open_interest,
			liquidity=excluded.liquidity, close_time=excluded.close_time, settled_time=excluded.settled_time`,
		m.Ticker, m.EventTicker, m.SeriesTicker, m.Title, string(m.Status), int64(m.YesBid), int64(m.YesAsk),
		m.Volume24h, m.OpenInterest, liquidity, boolToInt(m.Multivariate),
		m.CreatedTime.Format(rfc3339Micro), m.OpenTime.Format(rfc3339Micro), m.CloseTime.Format(rfc3339Micro), settledTime)
	if err != nil {
		return fmt.Errorf("upsert market %s: %w", m.Ticker, err)
	}
	return nil
}

// FindByKey returns one market by ticker, or domain.NotFoundError.
func (r *MarketRepository) FindByKey(ctx context.Context, ticker string) (domain.Market, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT ticker, event_ticker, series_ticker, title, status, yes_bid, yes_ask,
		volume_24h, open_interest, liquidity, is_multivariate, created_time, open_time, close_time, settled_time
		FROM markets WHERE ticker = ?`, ticker)
	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return domain.Market{}, &domain.NotFoundError{Resource: "market", Key: ticker}
	}
	return m, err
}

// MarketListFilter narrows List() results.
type MarketListFilter struct {
	Status      domain.MarketStatus
	EventTicker string
}

// List returns markets matching filter, ticker-ordered.
func (r *MarketRepository) List(ctx context.Context, filter MarketListFilter) ([]domain.Market, error) {
	query := `SELECT ticker, event_ticker, series_ticker, title, status, yes_bid, yes_ask,
		volume_24h, open_interest, liquidity, is_multivariate, created_time, open_time, close_time, settled_time
		FROM markets WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.EventTicker != "" {
		query += " AND event_ticker = ?"
		args = append(args, filter.EventTicker)
	}
	query += " ORDER BY ticker"

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row rowScanner) (domain.Market, error) {
	var m domain.Market
	var status string
	var liquidity sql.NullInt64
	var createdTime, openTime, closeTime string
	var settledTime sql.NullString
	var yesBid, yesAsk int64
	var multivariate int

	err := row.Scan(&m.Ticker, &m.EventTicker, &m.SeriesTicker, &m.Title, &status, &yesBid, &yesAsk,
		&m.Volume24h, &m.OpenInterest, &liquidity, &multivariate, &createdTime, &openTime, &closeTime, &settledTime)
	if err != nil {
		return domain.Market{}, err
	}

	m.Status = domain.MarketStatus(status)
	m.YesBid = amountFromInt64(yesBid)
	m.YesAsk = amountFromInt64(yesAsk)
	m.Multivariate = multivariate != 0
	if liquidity.Valid {
		v := liquidity.Int64
		m.Liquidity = &v
	}

	m.CreatedTime, err = parseStoredTime(createdTime)
	if err != nil {
		return domain.Market{}, fmt.Errorf("parse created_time: %w", err)
	}
	m.OpenTime, err = parseStoredTime(openTime)
	if err != nil {
		return domain.Market{}, fmt.Errorf("parse open_time: %w", err)
	}
	m.CloseTime, err = parseStoredTime(closeTime)
	if err != nil {
		return domain.Market{}, fmt.Errorf("parse close_time: %w", err)
	}
	if settledTime.Valid && settledTime.String != "" {
		t, err := parseStoredTime(settledTime.String)
		if err != nil {
			return domain.Market{}, fmt.Errorf("parse settled_time: %w", err)
		}
		m.SettledTime = &t
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
