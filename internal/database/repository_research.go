package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/marketedge/internal/domain"
)

// ThesisRepository is the repository contract for theses.
type ThesisRepository struct {
	db *DB
}

func NewThesisRepository(db *DB) *ThesisRepository {
	return &ThesisRepository{db: db}
}

func (r *ThesisRepository) Upsert(ctx context.Context, t domain.Thesis) error {
	marketsJSON, err := json.Marshal(t.Markets)
	if err != nil {
		return fmt.Errorf("database: marshal thesis markets: %w", err)
	}
	_, err = r.db.conn.ExecContext(ctx, `INSERT INTO theses
		(thesis_id, title, markets_json, your_probability, market_probability, confidence, status, resolution_outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thesis_id) DO UPDATE SET
			title=excluded.title, markets_json=excluded.markets_json, your_probability=excluded.your_probability,
			market_probability=excluded.market_probability, confidence=excluded.confidence, status=excluded.status,
			resolution_outcome=excluded.resolution_outcome, updated_at=excluded.updated_at`,
		t.ID, t.Title, string(marketsJSON), t.YourProbability, t.MarketProbability, t.Confidence,
		string(t.Status), t.ResolutionOutcome, t.CreatedAt.UTC().Format(rfc3339Micro), t.UpdatedAt.UTC().Format(rfc3339Micro))
	if err != nil {
		return fmt.Errorf("database: upsert thesis %s: %w", t.ID, err)
	}
	return nil
}

func (r *ThesisRepository) FindByKey(ctx context.Context, thesisID string) (domain.Thesis, error) {
	row := r.db.conn.QueryRowContext(ctx, `SELECT thesis_id, title, markets_json, your_probability, market_probability,
		confidence, status, resolution_outcome, created_at, updated_at FROM theses WHERE thesis_id = ?`, thesisID)
	t, err := scanThesis(row)
	if err == sql.ErrNoRows {
		return domain.Thesis{}, &domain.NotFoundError{Resource: "thesis", Key: thesisID}
	}
	return t, err
}

// List returns theses, optionally narrowed to one status; empty status
// means all statuses.
func (r *ThesisRepository) List(ctx context.Context, status domain.ThesisStatus) ([]domain.Thesis, error) {
	query := `SELECT thesis_id, title, markets_json, your_probability, market_probability,
		confidence, status, resolution_outcome, created_at, updated_at FROM theses`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: list theses: %w", err)
	}
	defer rows.Close()

	var out []domain.Thesis
	for rows.Next() {
		t, err := scanThesis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanThesis(row rowScanner) (domain.Thesis, error) {
	var t domain.Thesis
	var marketsJSON, status, createdAt, updatedAt string
	var resolutionOutcome sql.NullString

	if err := row.Scan(&t.ID, &t.Title, &marketsJSON, &t.YourProbability, &t.MarketProbability,
		&t.Confidence, &status, &resolutionOutcome, &createdAt, &updatedAt); err != nil {
		return domain.Thesis{}, err
	}
	if err := json.Unmarshal([]byte(marketsJSON), &t.Markets); err != nil {
		return domain.Thesis{}, fmt.Errorf("unmarshal thesis markets: %w", err)
	}
	t.Status = domain.ThesisStatus(status)
	if resolutionOutcome.Valid {
		v := resolutionOutcome.String
		t.ResolutionOutcome = &v
	}
	var err error
	if t.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return domain.Thesis{}, err
	}
	if t.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return domain.Thesis{}, err
	}
	return t, nil
}

// AlertRepository is the repository contract for alerts.
type AlertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Insert(ctx context.Context, a domain.Alert) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx, `INSERT INTO alerts (kind, ticker, threshold, direction, active)
		VALUES (?, ?, ?, ?, ?)`, string(a.Kind), a.Ticker, a.Threshold, string(a.Direction), boolToInt(a.Active))
	if err != nil {
		return 0, fmt.Errorf("database: insert alert: %w", err)
	}
	return res.LastInsertId()
}

func (r *AlertRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.conn.ExecContext(ctx, `UPDATE alerts SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("database: deactivate alert %d: %w", id, err)
	}
	return nil
}

// ListActive returns every alert still armed, optionally filtered by ticker.
func (r *AlertRepository) ListActive(ctx context.Context, ticker string) ([]domain.Alert, error) {
	query := `SELECT id, kind, ticker, threshold, direction, active FROM alerts WHERE active = 1`
	var args []any
	if ticker != "" {
		query += " AND ticker = ?"
		args = append(args, ticker)
	}

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: list active alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var kind, direction string
		var active int
		if err := rows.Scan(&a.ID, &kind, &a.Ticker, &a.Threshold, &direction, &active); err != nil {
			return nil, err
		}
		a.Kind = domain.AlertKind(kind)
		a.Direction = domain.AlertDirection(direction)
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// PredictionLogRepository is the repository contract for prediction_log.
type PredictionLogRepository struct {
	db *DB
}

func NewPredictionLogRepository(db *DB) *PredictionLogRepository {
	return &PredictionLogRepository{db: db}
}

func (r *PredictionLogRepository) Insert(ctx context.Context, p domain.PredictionLog) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx, `INSERT INTO prediction_log
		(ticker, predicted_prob, market_prob_at_time, confidence, reasoning, factors_json, predicted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Ticker, p.PredictedProb, p.MarketProbAtTime, string(p.Confidence), p.Reasoning, p.FactorsJSON,
		p.PredictedAt.UTC().Format(rfc3339Micro))
	if err != nil {
		return 0, fmt.Errorf("database: insert prediction_log: %w", err)
	}
	return res.LastInsertId()
}

// RecordOutcome marks a logged prediction resolved, computing its Brier score.
func (r *PredictionLogRepository) RecordOutcome(ctx context.Context, id int64, outcome int, resolvedAt time.Time) error {
	var predictedProb float64
	if err := r.db.conn.QueryRowContext(ctx, `SELECT predicted_prob FROM prediction_log WHERE id = ?`, id).Scan(&predictedProb); err != nil {
		if err == sql.ErrNoRows {
			return &domain.NotFoundError{Resource: "prediction_log", Key: fmt.Sprintf("%d", id)}
		}
		return err
	}
	diff := predictedProb - float64(outcome)
	brier := diff * diff

	_, err := r.db.conn.ExecContext(ctx, `UPDATE prediction_log SET actual_outcome = ?, resolved_at = ?, brier_score = ? WHERE id = ?`,
		outcome, resolvedAt.UTC().Format(rfc3339Micro), brier, id)
	if err != nil {
		return fmt.Errorf("database: record prediction outcome %d: %w", id, err)
	}
	return nil
}

// ResolvedForTicker returns every resolved prediction for a ticker, used by
// the calibration report to aggregate Brier scores.
func (r *PredictionLogRepository) ResolvedForTicker(ctx context.Context, ticker string) ([]domain.PredictionLog, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT id, ticker, predicted_prob, market_prob_at_time, confidence, reasoning,
		factors_json, predicted_at, actual_outcome, resolved_at, brier_score
		FROM prediction_log WHERE ticker = ? AND actual_outcome IS NOT NULL`, ticker)
	if err != nil {
		return nil, fmt.Errorf("database: resolved predictions for %s: %w", ticker, err)
	}
	defer rows.Close()
	return scanPredictionLogs(rows)
}

// AllResolved returns every resolved prediction across all tickers.
func (r *PredictionLogRepository) AllResolved(ctx context.Context) ([]domain.PredictionLog, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT id, ticker, predicted_prob, market_prob_at_time, confidence, reasoning,
		factors_json, predicted_at, actual_outcome, resolved_at, brier_score
		FROM prediction_log WHERE actual_outcome IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("database: all resolved predictions: %w", err)
	}
	defer rows.Close()
	return scanPredictionLogs(rows)
}

func scanPredictionLogs(rows *sql.Rows) ([]domain.PredictionLog, error) {
	var out []domain.PredictionLog
	for rows.Next() {
		var p domain.PredictionLog
		var confidence, predictedAt string
		var resolvedAt sql.NullString
		var actualOutcome sql.NullInt64
		var brier sql.NullFloat64

		if err := rows.Scan(&p.ID, &p.Ticker, &p.PredictedProb, &p.MarketProbAtTime, &confidence, &p.Reasoning,
			&p.FactorsJSON, &predictedAt, &actualOutcome, &resolvedAt, &brier); err != nil {
			return nil, err
		}
		p.Confidence = domain.Confidence(confidence)
		var err error
		if p.PredictedAt, err = parseStoredTime(predictedAt); err != nil {
			return nil, err
		}
		if actualOutcome.Valid {
			v := int(actualOutcome.Int64)
			p.ActualOutcome = &v
		}
		if resolvedAt.Valid {
			t, err := parseStoredTime(resolvedAt.String)
			if err != nil {
				return nil, err
			}
			p.ResolvedAt = &t
		}
		if brier.Valid {
			v := brier.Float64
			p.BrierScore = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NewsItem is a fetched news article associated with zero or one ticker.
type NewsItem struct {
	ID          int64
	Ticker      string
	URL         string
	Title       string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// NewsItemRepository is the repository contract for news_items.
type NewsItemRepository struct {
	db *DB
}

func NewNewsItemRepository(db *DB) *NewsItemRepository {
	return &NewsItemRepository{db: db}
}

func (r *NewsItemRepository) UpsertBatch(ctx context.Context, items []NewsItem) error {
	for start := 0; start < len(items); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(items) {
			end = len(items)
		}
		if err := r.upsertChunk(ctx, items[start:end]); err != nil {
			return fmt.Errorf("database: upsert news_items batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *NewsItemRepository) upsertChunk(ctx context.Context, chunk []NewsItem) error {
	return WithTransaction(ctx, r.db.conn, func(tx *sql.Tx) error {
		for _, item := range chunk {
			var ticker any
			if item.Ticker != "" {
				ticker = item.Ticker
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO news_items (ticker, url, title, published_at, fetched_at)
				VALUES (?, ?, ?, ?, ?)`,
				ticker, item.URL, item.Title, item.PublishedAt.UTC().Format(rfc3339Micro), item.FetchedAt.UTC().Format(rfc3339Micro))
			if err != nil {
				return fmt.Errorf("insert news_item %s: %w", item.URL, err)
			}
		}
		return nil
	})
}

func (r *NewsItemRepository) ListByTicker(ctx context.Context, ticker string) ([]NewsItem, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT id, ticker, url, title, published_at, fetched_at
		FROM news_items WHERE ticker = ? ORDER BY published_at DESC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("database: list news_items for %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []NewsItem
	for rows.Next() {
		var item NewsItem
		var tickerVal sql.NullString
		var publishedAt, fetchedAt string
		if err := rows.Scan(&item.ID, &tickerVal, &item.URL, &item.Title, &publishedAt, &fetchedAt); err != nil {
			return nil, err
		}
		item.Ticker = tickerVal.String
		var err error
		if item.PublishedAt, err = parseStoredTime(publishedAt); err != nil {
			return nil, err
		}
		if item.FetchedAt, err = parseStoredTime(fetchedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SentimentScore is a single computed sentiment reading for a ticker.
type SentimentScore struct {
	ID         int64
	Ticker     string
	Score      float64
	Source     string
	ComputedAt time.Time
}

// SentimentScoreRepository is the repository contract for sentiment_scores.
type SentimentScoreRepository struct {
	db *DB
}

func NewSentimentScoreRepository(db *DB) *SentimentScoreRepository {
	return &SentimentScoreRepository{db: db}
}

func (r *SentimentScoreRepository) Insert(ctx context.Context, s SentimentScore) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx, `INSERT INTO sentiment_scores (ticker, score, source, computed_at)
		VALUES (?, ?, ?, ?)`, s.Ticker, s.Score, s.Source, s.ComputedAt.UTC().Format(rfc3339Micro))
	if err != nil {
		return 0, fmt.Errorf("database: insert sentiment_score: %w", err)
	}
	return res.LastInsertId()
}

func (r *SentimentScoreRepository) LatestForTicker(ctx context.Context, ticker string) (SentimentScore, error) {
	var s SentimentScore
	var computedAt string
	row := r.db.conn.QueryRowContext(ctx, `SELECT id, ticker, score, source, computed_at
		FROM sentiment_scores WHERE ticker = ? ORDER BY computed_at DESC LIMIT 1`, ticker)
	if err := row.Scan(&s.ID, &s.Ticker, &s.Score, &s.Source, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return SentimentScore{}, &domain.NotFoundError{Resource: "sentiment_score", Key: ticker}
		}
		return SentimentScore{}, err
	}
	var err error
	if s.ComputedAt, err = parseStoredTime(computedAt); err != nil {
		return SentimentScore{}, err
	}
	return s, nil
}
