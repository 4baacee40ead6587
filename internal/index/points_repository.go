package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quantbr/indice/internal/contracts"
)

// PointRepository is the append-only daily level store, unique on
// (index_id, date). Each point embeds the composition snapshot used for its
// calculation, because tomorrow's calculation depends on today's exact
// weights and prices.
type PointRepository struct {
	pool *pgxpool.Pool
}

// NewPointRepository creates a point repository.
func NewPointRepository(pool *pgxpool.Pool) *PointRepository {
	return &PointRepository{pool: pool}
}

var _ contracts.IndexPointStore = (*PointRepository)(nil)

// SavePoint upserts one daily point. The upsert keeps the daily batch
// idempotent: re-running a day rewrites the same row.
func (r *PointRepository) SavePoint(ctx context.Context, indexID int64, point contracts.DailyIndexPoint) error {
	snapshotJSON, err := json.Marshal(point.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dividendsJSON, err := json.Marshal(point.Dividends)
	if err != nil {
		return fmt.Errorf("failed to marshal dividends: %w", err)
	}

	query := `
		INSERT INTO indice.index_history_points (
			index_id, date, points, daily_change_pct, composition_snapshot, dividends_by_ticker
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index_id, date) DO UPDATE SET
			points = EXCLUDED.points,
			daily_change_pct = EXCLUDED.daily_change_pct,
			composition_snapshot = EXCLUDED.composition_snapshot,
			dividends_by_ticker = EXCLUDED.dividends_by_ticker
	`

	if _, err := r.pool.Exec(ctx, query,
		indexID, point.Date, point.Points, point.DailyChange, snapshotJSON, dividendsJSON,
	); err != nil {
		return fmt.Errorf("failed to save index point: %w", err)
	}

	return nil
}

// GetLatestPoint returns the most recent point, or nil when the index has
// none yet.
func (r *PointRepository) GetLatestPoint(ctx context.Context, indexID int64) (*contracts.DailyIndexPoint, error) {
	query := `
		SELECT date, points, daily_change_pct, composition_snapshot, dividends_by_ticker
		FROM indice.index_history_points
		WHERE index_id = $1
		ORDER BY date DESC
		LIMIT 1
	`

	point, err := r.scanPoint(r.pool.QueryRow(ctx, query, indexID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return point, err
}

// GetPoint returns the point for one date, or nil when absent.
func (r *PointRepository) GetPoint(ctx context.Context, indexID int64, date time.Time) (*contracts.DailyIndexPoint, error) {
	query := `
		SELECT date, points, daily_change_pct, composition_snapshot, dividends_by_ticker
		FROM indice.index_history_points
		WHERE index_id = $1 AND date = $2
	`

	point, err := r.scanPoint(r.pool.QueryRow(ctx, query, indexID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return point, err
}

// ListPoints returns points in [from, to] ordered by date ascending.
func (r *PointRepository) ListPoints(ctx context.Context, indexID int64, from, to time.Time) ([]contracts.DailyIndexPoint, error) {
	query := `
		SELECT date, points, daily_change_pct, composition_snapshot, dividends_by_ticker
		FROM indice.index_history_points
		WHERE index_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query index points: %w", err)
	}
	defer rows.Close()

	points := make([]contracts.DailyIndexPoint, 0)
	for rows.Next() {
		point, err := r.scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points: %w", err)
	}

	return points, nil
}

func (r *PointRepository) scanPoint(row pgx.Row) (*contracts.DailyIndexPoint, error) {
	var point contracts.DailyIndexPoint
	var snapshotJSON, dividendsJSON []byte

	err := row.Scan(&point.Date, &point.Points, &point.DailyChange, &snapshotJSON, &dividendsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan index point: %w", err)
	}

	if err := json.Unmarshal(snapshotJSON, &point.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if point.Snapshot.Positions == nil {
		point.Snapshot.Positions = make(map[string]contracts.AssetPosition)
	}

	if len(dividendsJSON) > 0 {
		if err := json.Unmarshal(dividendsJSON, &point.Dividends); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dividends: %w", err)
		}
	}
	if point.Dividends == nil {
		point.Dividends = make(map[string]decimal.Decimal)
	}

	return &point, nil
}
