package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantbr/indice/internal/contracts"
	"github.com/quantbr/indice/internal/methodology"
)

// uniqueViolation is the PostgreSQL error code for unique-key conflicts.
const uniqueViolation = "23505"

// visibilityRetryDelay guards against read-after-write lag when reconciling
// a lost create race.
const visibilityRetryDelay = time.Second

// ErrNotFound is returned when a requested index definition does not exist.
var ErrNotFound = errors.New("index definition not found")

// DefinitionRepository persists index definitions.
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepository creates a definition repository.
func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

// CreateOrGet attempts to insert the definition and, on a uniqueness
// violation, re-fetches the existing row and proceeds with it. The re-fetch
// is retried once after a short delay; it never loops indefinitely.
func (r *DefinitionRepository) CreateOrGet(ctx context.Context, ticker, name string, cfg methodology.Config) (*Definition, bool, error) {
	hash, err := methodology.Hash(&cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash methodology: %w", err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal methodology: %w", err)
	}

	query := `
		INSERT INTO indice.index_definitions (ticker, name, methodology, methodology_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	def := &Definition{
		Ticker:          ticker,
		Name:            name,
		Methodology:     cfg,
		MethodologyHash: hash,
	}

	err = r.pool.QueryRow(ctx, query, ticker, name, cfgJSON, hash).Scan(&def.ID, &def.CreatedAt)
	if err == nil {
		return def, true, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil, false, fmt.Errorf("failed to create index definition: %w", err)
	}

	// Lost the create race: reconcile by reading the winner's row.
	existing, err := r.GetByTicker(ctx, ticker)
	if err != nil {
		time.Sleep(visibilityRetryDelay)
		existing, err = r.GetByTicker(ctx, ticker)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reconcile duplicate index %s: %w", ticker, err)
		}
	}

	return existing, false, nil
}

// GetByTicker fetches one definition by its unique ticker.
func (r *DefinitionRepository) GetByTicker(ctx context.Context, ticker string) (*Definition, error) {
	query := `
		SELECT id, ticker, name, methodology, methodology_hash, created_at
		FROM indice.index_definitions
		WHERE ticker = $1
	`
	return r.scanDefinition(r.pool.QueryRow(ctx, query, ticker))
}

// GetByID fetches one definition.
func (r *DefinitionRepository) GetByID(ctx context.Context, id int64) (*Definition, error) {
	query := `
		SELECT id, ticker, name, methodology, methodology_hash, created_at
		FROM indice.index_definitions
		WHERE id = $1
	`
	return r.scanDefinition(r.pool.QueryRow(ctx, query, id))
}

// List returns every definition ordered by ticker.
func (r *DefinitionRepository) List(ctx context.Context) ([]Definition, error) {
	query := `
		SELECT id, ticker, name, methodology, methodology_hash, created_at
		FROM indice.index_definitions
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query index definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]Definition, 0)
	for rows.Next() {
		var def Definition
		var cfgJSON []byte
		if err := rows.Scan(&def.ID, &def.Ticker, &def.Name, &cfgJSON, &def.MethodologyHash, &def.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		if err := json.Unmarshal(cfgJSON, &def.Methodology); err != nil {
			return nil, fmt.Errorf("failed to unmarshal methodology for %s: %w", def.Ticker, err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return defs, nil
}

func (r *DefinitionRepository) scanDefinition(row pgx.Row) (*Definition, error) {
	var def Definition
	var cfgJSON []byte

	err := row.Scan(&def.ID, &def.Ticker, &def.Name, &cfgJSON, &def.MethodologyHash, &def.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index definition: %w", err)
	}

	if err := json.Unmarshal(cfgJSON, &def.Methodology); err != nil {
		return nil, fmt.Errorf("failed to unmarshal methodology: %w", err)
	}

	return &def, nil
}

// CompositionRepository is the durable current-membership store. One live
// row per held ticker, unique on (index_id, asset_ticker).
type CompositionRepository struct {
	pool *pgxpool.Pool
}

// NewCompositionRepository creates a composition repository.
func NewCompositionRepository(pool *pgxpool.Pool) *CompositionRepository {
	return &CompositionRepository{pool: pool}
}

var _ contracts.CompositionStore = (*CompositionRepository)(nil)

// GetComposition loads the live composition. Prices are not stored on
// composition rows; positions come back with a zero Price and the caller
// marks them to market.
func (r *CompositionRepository) GetComposition(ctx context.Context, indexID int64) (contracts.CompositionSnapshot, error) {
	query := `
		SELECT asset_ticker, target_weight, entry_price, entry_date
		FROM indice.index_compositions
		WHERE index_id = $1
	`

	rows, err := r.pool.Query(ctx, query, indexID)
	if err != nil {
		return contracts.CompositionSnapshot{}, fmt.Errorf("failed to query composition: %w", err)
	}
	defer rows.Close()

	snapshot := contracts.NewCompositionSnapshot(time.Time{})
	for rows.Next() {
		var pos contracts.AssetPosition
		if err := rows.Scan(&pos.Ticker, &pos.Weight, &pos.EntryPrice, &pos.EntryDate); err != nil {
			return contracts.CompositionSnapshot{}, fmt.Errorf("failed to scan position: %w", err)
		}
		snapshot.Positions[pos.Ticker] = pos
	}

	if err := rows.Err(); err != nil {
		return contracts.CompositionSnapshot{}, fmt.Errorf("error iterating composition: %w", err)
	}

	return snapshot, nil
}

// ReplaceComposition swaps the live membership in one transaction. History
// snapshots embedded in past points are untouched; only the current
// composition is versioned forward.
func (r *CompositionRepository) ReplaceComposition(ctx context.Context, indexID int64, snapshot contracts.CompositionSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM indice.index_compositions WHERE index_id = $1", indexID); err != nil {
		return fmt.Errorf("failed to clear composition: %w", err)
	}

	query := `
		INSERT INTO indice.index_compositions (index_id, asset_ticker, target_weight, entry_price, entry_date)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, pos := range snapshot.Positions {
		if _, err := tx.Exec(ctx, query, indexID, pos.Ticker, pos.Weight, pos.EntryPrice, pos.EntryDate); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.Ticker, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit composition: %w", err)
	}

	return nil
}

// UpsertPosition writes one position idempotently, keyed by
// (index_id, asset_ticker).
func (r *CompositionRepository) UpsertPosition(ctx context.Context, indexID int64, pos contracts.AssetPosition) error {
	query := `
		INSERT INTO indice.index_compositions (index_id, asset_ticker, target_weight, entry_price, entry_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (index_id, asset_ticker) DO UPDATE SET
			target_weight = EXCLUDED.target_weight
	`

	if _, err := r.pool.Exec(ctx, query, indexID, pos.Ticker, pos.Weight, pos.EntryPrice, pos.EntryDate); err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", pos.Ticker, err)
	}

	return nil
}

// RemovePosition drops one ticker from the live composition.
func (r *CompositionRepository) RemovePosition(ctx context.Context, indexID int64, ticker string) error {
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM indice.index_compositions WHERE index_id = $1 AND asset_ticker = $2",
		indexID, ticker,
	); err != nil {
		return fmt.Errorf("failed to remove position %s: %w", ticker, err)
	}

	return nil
}
