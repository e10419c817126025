package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// PostgresSnapshotRepository stores pushed dashboard module snapshots.
type PostgresSnapshotRepository struct {
	DB *sql.DB
}

// NewPostgresSnapshotRepository creates a PostgresSnapshotRepository.
func NewPostgresSnapshotRepository(db *sql.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{DB: db}
}

func (r *PostgresSnapshotRepository) GetSnapshot(ctx context.Context, userID string, module models.Module) (*models.ModuleSnapshot, error) {
	snap := models.ModuleSnapshot{Module: module}
	var data []byte
	err := r.DB.QueryRowContext(ctx, `
		SELECT data, updated_at FROM module_snapshots WHERE user_id = $1 AND module = $2
	`, userID, string(module)).Scan(&data, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snap.Data = data
	return &snap, nil
}

func (r *PostgresSnapshotRepository) PutSnapshot(ctx context.Context, userID string, snap models.ModuleSnapshot) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO module_snapshots (user_id, module, data, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (user_id, module) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, userID, string(snap.Module), string(snap.Data), snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshots drops the given modules of userID.
func (r *PostgresSnapshotRepository) DeleteSnapshots(ctx context.Context, userID string, modules []models.Module) error {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = string(m)
	}
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM module_snapshots WHERE user_id = $1 AND module = ANY($2)
	`, userID, pq.Array(names))
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}
