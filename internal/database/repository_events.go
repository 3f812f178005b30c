package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/marketedge/internal/domain"
)

// EventRepository is the repository contract for the events aggregate.
// Events are also upserted as a side effect of MarketRepository.UpsertBatch
// (every market references its parent event); this repository exists for
// direct event reads and for ingesting events fetched standalone.
type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) UpsertBatch(ctx context.Context, events []domain.Event) error {
	for start := 0; start < len(events); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(events) {
			end = len(events)
		}
		if err := r.upsertChunk(ctx, events[start:end]); err != nil {
			return fmt.Errorf("database: upsert events batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *EventRepository) upsertChunk(ctx context.Context, chunk []domain.Event) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, e := range chunk {
			_, err := tx.ExecContext(ctx, `INSERT INTO events (event_ticker, series_ticker, title, is_multivariate)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(event_ticker) DO UPDATE SET series_ticker=excluded.series_ticker, title=excluded.title,
					is_multivariate=excluded.is_multivariate`,
				e.EventTicker, e.SeriesTicker, e.Title, boolToInt(e.Multivariate))
			if err != nil {
				return fmt.Errorf("upsert event %s: %w", e.EventTicker, err)
			}
		}
		return nil
	})
}

func (r *EventRepository) FindByKey(ctx context.Context, eventTicker string) (domain.Event, error) {
	var e domain.Event
	var multivariate int
	row := r.db.conn.QueryRowContext(ctx, `SELECT event_ticker, series_ticker, title, is_multivariate
		FROM events WHERE event_ticker = ?`, eventTicker)
	if err := row.Scan(&e.EventTicker, &e.SeriesTicker, &e.Title, &multivariate); err != nil {
		if err == sql.ErrNoRows {
			return domain.Event{}, &domain.NotFoundError{Resource: "event", Key: eventTicker}
		}
		return domain.Event{}, err
	}
	e.Multivariate = multivariate != 0
	return e, nil
}

func (r *EventRepository) ListBySeries(ctx context.Context, seriesTicker string) ([]domain.Event, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT event_ticker, series_ticker, title, is_multivariate
		FROM events WHERE series_ticker = ? ORDER BY event_ticker`, seriesTicker)
	if err != nil {
		return nil, fmt.Errorf("database: list events for series %s: %w", seriesTicker, err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var multivariate int
		if err := rows.Scan(&e.EventTicker, &e.SeriesTicker, &e.Title, &multivariate); err != nil {
			return nil, err
		}
		e.Multivariate = multivariate != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
