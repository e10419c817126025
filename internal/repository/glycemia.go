package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// PostgresGlycemiaRepository stores glucose readings.
type PostgresGlycemiaRepository struct {
	DB *sql.DB
}

// NewPostgresGlycemiaRepository creates a PostgresGlycemiaRepository.
func NewPostgresGlycemiaRepository(db *sql.DB) *PostgresGlycemiaRepository {
	return &PostgresGlycemiaRepository{DB: db}
}

// InsertEntries stores all entries or none of them.
func (r *PostgresGlycemiaRepository) InsertEntries(ctx context.Context, userID string, entries []models.GlycemiaEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO glycemia_entries (id, user_id, value, measured_at, context, source, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.ID, userID, e.Value, e.MeasuredAt, e.Context, string(e.Source), e.Notes)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListEntries returns the readings of userID measured in [from, to), oldest first.
func (r *PostgresGlycemiaRepository) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]models.GlycemiaEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, value, measured_at, context, source, notes FROM glycemia_entries
		WHERE user_id = $1 AND measured_at >= $2 AND measured_at < $3
		ORDER BY measured_at, id
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	defer rows.Close()

	entries := []models.GlycemiaEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, nil
}

// LatestEntry returns the most recent reading of userID.
func (r *PostgresGlycemiaRepository) LatestEntry(ctx context.Context, userID string) (*models.GlycemiaEntry, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, value, measured_at, context, source, notes FROM glycemia_entries
		WHERE user_id = $1
		ORDER BY measured_at DESC, id DESC
		LIMIT 1
	`, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.GlycemiaEntry, error) {
	var (
		e   models.GlycemiaEntry
		src string
	)
	if err := s.Scan(&e.ID, &e.Value, &e.MeasuredAt, &e.Context, &src, &e.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Source = models.Source(src)
	e.MeasuredAt = e.MeasuredAt.UTC()
	return &e, nil
}
