package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// SettlementRepository is the repository contract for settlements.
type SettlementRepository struct {
	db *DB
}

func NewSettlementRepository(db *DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) UpsertBatch(ctx context.Context, settlements []domain.Settlement) error {
	for start := 0; start < len(settlements); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(settlements) {
			end = len(settlements)
		}
		if err := r.upsertChunk(ctx, settlements[start:end]); err != nil {
			return fmt.Errorf("database: upsert settlements batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *SettlementRepository) upsertChunk(ctx context.Context, chunk []domain.Settlement) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, s := range chunk {
			_, err := tx.ExecContext(ctx, `INSERT INTO settlements (ticker, settled_at, settlement_value, actual_settlement_ts)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(ticker) DO UPDATE SET settled_at=excluded.settled_at,
					settlement_value=excluded.settlement_value, actual_settlement_ts=excluded.actual_settlement_ts`,
				s.Ticker, s.SettledAt.UTC().Format(rfc3339Micro), s.SettlementValue, s.ActualSettlement.UTC().Format(rfc3339Micro))
			if err != nil {
				return fmt.Errorf("upsert settlement %s: %w", s.Ticker, err)
			}
		}
		return nil
	})
}

// FindByKey returns the settlement for ticker, or domain.NotFoundError.
func (r *SettlementRepository) FindByKey(ctx context.Context, ticker string) (domain.Settlement, error) {
	var s domain.Settlement
	var settledAt, actualTS string
	row := r.db.conn.QueryRowContext(ctx, `SELECT ticker, settled_at, settlement_value, actual_settlement_ts
		FROM settlements WHERE ticker = ?`, ticker)
	if err := row.Scan(&s.Ticker, &settledAt, &s.SettlementValue, &actualTS); err != nil {
		if err == sql.ErrNoRows {
			return domain.Settlement{}, &domain.NotFoundError{Resource: "settlement", Key: ticker}
		}
		return domain.Settlement{}, err
	}
	var err error
	if s.SettledAt, err = parseStoredTime(settledAt); err != nil {
		return domain.Settlement{}, err
	}
	if s.ActualSettlement, err = parseStoredTime(actualTS); err != nil {
		return domain.Settlement{}, err
	}
	return s, nil
}

// FillRepository is the repository contract for fills.
type FillRepository struct {
	db *DB
}

func NewFillRepository(db *DB) *FillRepository {
	return &FillRepository{db: db}
}

// UpsertBatch stores fills keyed by fill_id, which is immutable once
// assigned by the exchange, so conflicts are silently ignored.
func (r *FillRepository) UpsertBatch(ctx context.Context, fills []domain.Fill) error {
	for start := 0; start < len(fills); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(fills) {
			end = len(fills)
		}
		if err := r.upsertChunk(ctx, fills[start:end]); err != nil {
			return fmt.Errorf("database: upsert fills batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *FillRepository) upsertChunk(ctx context.Context, chunk []domain.Fill) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, f := range chunk {
			_, err := tx.ExecContext(ctx, `INSERT INTO fills (fill_id, ticker, side, action, count, price, fees, trade_ts)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(fill_id) DO NOTHING`,
				f.FillID, f.Ticker, string(f.Side), string(f.Action), f.Count, int64(f.Price), int64(f.Fees),
				f.TradeTS.UTC().Format(rfc3339Micro))
			if err != nil {
				return fmt.Errorf("upsert fill %s: %w", f.FillID, err)
			}
		}
		return nil
	})
}

// ListByTicker returns all fills for ticker ordered by trade_ts ascending,
// tie-broken by fill_id, matching the FIFO replay order the portfolio
// reconciler requires.
func (r *FillRepository) ListByTicker(ctx context.Context, ticker string) ([]domain.Fill, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT fill_id, ticker, side, action, count, price, fees, trade_ts
		FROM fills WHERE ticker = ? ORDER BY trade_ts ASC, fill_id ASC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("database: list fills for %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListAll returns every fill ordered by trade_ts, fill_id for a full
// portfolio reconciliation pass across all tickers.
func (r *FillRepository) ListAll(ctx context.Context) ([]domain.Fill, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT fill_id, ticker, side, action, count, price, fees, trade_ts
		FROM fills ORDER BY trade_ts ASC, fill_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: list all fills: %w", err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFill(row rowScanner) (domain.Fill, error) {
	var f domain.Fill
	var side, action, tradeTS string
	var price, fees int64

	if err := row.Scan(&f.FillID, &f.Ticker, &side, &action, &f.Count, &price, &fees, &tradeTS); err != nil {
		return domain.Fill{}, err
	}
	f.Side = domain.Side(side)
	f.Action = domain.Action(action)
	f.Price = amountFromInt64(price)
	f.Fees = amountFromInt64(fees)
	t, err := parseStoredTime(tradeTS)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("parse trade_ts: %w", err)
	}
	f.TradeTS = t
	return f, nil
}

// OrderRepository is the repository contract for orders.
type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Upsert(ctx context.Context, order domain.Order) error {
	_, err := r.db.conn.ExecContext(ctx, `INSERT INTO orders (order_id, ticker, side, action, count, price, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET status=excluded.status`,
		order.OrderID, order.Spec.Ticker, string(order.Spec.Side), string(order.Spec.Action),
		order.Spec.Count, order.Spec.PriceCents, order.Status)
	if err != nil {
		return fmt.Errorf("database: upsert order %s: %w", order.OrderID, err)
	}
	return nil
}

func (r *OrderRepository) FindByKey(ctx context.Context, orderID string) (domain.Order, error) {
	var o domain.Order
	var side, action string
	row := r.db.conn.QueryRowContext(ctx, `SELECT order_id, ticker, side, action, count, price, status
		FROM orders WHERE order_id = ?`, orderID)
	if err := row.Scan(&o.OrderID, &o.Spec.Ticker, &side, &action, &o.Spec.Count, &o.Spec.PriceCents, &o.Status); err != nil {
		if err == sql.ErrNoRows {
			return domain.Order{}, &domain.NotFoundError{Resource: "order", Key: orderID}
		}
		return domain.Order{}, err
	}
	o.Spec.Side = domain.Side(side)
	o.Spec.Action = domain.Action(action)
	return o, nil
}
