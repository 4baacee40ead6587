package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbr/indice/internal/contracts"
)

// RebalanceLogRepository is the append-only rebalance audit trail. Rows are
// never mutated or deleted.
type RebalanceLogRepository struct {
	pool *pgxpool.Pool
}

// NewRebalanceLogRepository creates a rebalance log repository.
func NewRebalanceLogRepository(pool *pgxpool.Pool) *RebalanceLogRepository {
	return &RebalanceLogRepository{pool: pool}
}

var _ contracts.RebalanceLogStore = (*RebalanceLogRepository)(nil)

// AppendEntries writes a batch of audit rows in one transaction.
func (r *RebalanceLogRepository) AppendEntries(ctx context.Context, entries []contracts.RebalanceLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO indice.index_rebalance_logs (index_id, date, action, ticker, reason)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, entry := range entries {
		if _, err := tx.Exec(ctx, query,
			entry.IndexID, entry.Date, string(entry.Action), entry.Ticker, entry.Reason,
		); err != nil {
			return fmt.Errorf("failed to insert rebalance log entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rebalance log: %w", err)
	}

	return nil
}

// ListEntries returns audit rows in [from, to] ordered by date, then ticker.
func (r *RebalanceLogRepository) ListEntries(ctx context.Context, indexID int64, from, to time.Time) ([]contracts.RebalanceLogEntry, error) {
	query := `
		SELECT index_id, date, action, ticker, reason
		FROM indice.index_rebalance_logs
		WHERE index_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, indexID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance log: %w", err)
	}
	defer rows.Close()

	entries := make([]contracts.RebalanceLogEntry, 0)
	for rows.Next() {
		var entry contracts.RebalanceLogEntry
		var action string
		if err := rows.Scan(&entry.IndexID, &entry.Date, &action, &entry.Ticker, &entry.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance log entry: %w", err)
		}
		entry.Action = contracts.RebalanceAction(action)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rebalance log: %w", err)
	}

	return entries, nil
}

// CheckpointRepository tracks batch-job progress per (job_type, index_id).
type CheckpointRepository struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepository creates a checkpoint repository.
func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{pool: pool}
}

var _ contracts.CheckpointStore = (*CheckpointRepository)(nil)

// GetLastRun returns the last run date, or nil when the job never ran.
func (r *CheckpointRepository) GetLastRun(ctx context.Context, jobType string, indexID int64) (*time.Time, error) {
	query := `
		SELECT last_run_date
		FROM indice.index_cron_checkpoints
		WHERE job_type = $1 AND index_id = $2
	`

	var lastRun time.Time
	err := r.pool.QueryRow(ctx, query, jobType, indexID).Scan(&lastRun)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return &lastRun, nil
}

// SetLastRun upserts the checkpoint.
func (r *CheckpointRepository) SetLastRun(ctx context.Context, jobType string, indexID int64, date time.Time) error {
	query := `
		INSERT INTO indice.index_cron_checkpoints (job_type, index_id, last_run_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_type, index_id) DO UPDATE SET
			last_run_date = EXCLUDED.last_run_date
	`

	if _, err := r.pool.Exec(ctx, query, jobType, indexID, date); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	return nil
}
