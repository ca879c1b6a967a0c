package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const CreateSnapshotsTable = `
CREATE TABLE IF NOT EXISTS query_snapshots (
    query_key  TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

type SnapshotRepositoryImpl struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepositoryImpl {
	return &SnapshotRepositoryImpl{db: db}
}

func (r *SnapshotRepositoryImpl) Save(ctx context.Context, snapshot Snapshot) error {
	query := `
		INSERT INTO query_snapshots (query_key, payload, updated_at)
		VALUES (:query_key, :payload, :updated_at)
		ON CONFLICT (query_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now()
	}

	_, err := r.db.NamedExecContext(ctx, query, snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.Key, err)
	}

	return nil
}

func (r *SnapshotRepositoryImpl) Load(ctx context.Context, key string) (*Snapshot, error) {
	query := `SELECT query_key, payload, updated_at FROM query_snapshots WHERE query_key = $1`

	var snapshot Snapshot
	err := r.db.GetContext(ctx, &snapshot, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	return &snapshot, nil
}

func (r *SnapshotRepositoryImpl) LoadAll(ctx context.Context) ([]Snapshot, error) {
	query := `SELECT query_key, payload, updated_at FROM query_snapshots ORDER BY updated_at DESC`

	var snapshots []Snapshot
	err := r.db.SelectContext(ctx, &snapshots, query)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	return snapshots, nil
}

func (r *SnapshotRepositoryImpl) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM query_snapshots WHERE query_key = $1`

	_, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}

	return nil
}

// Prune removes snapshots last updated before cutoff.
func (r *SnapshotRepositoryImpl) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM query_snapshots WHERE updated_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	return rowsAffected, nil
}
