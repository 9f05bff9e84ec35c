package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/loyer/internal/settings"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, int, time.Time, error) {
	var (
		data      []byte
		version   int
		updatedAt time.Time
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&data, &version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, time.Time{}, settings.ErrNotFound
		}

		return nil, 0, time.Time{}, fmt.Errorf("loading settings: %w", err)
	}

	return data, version, updatedAt, nil
}

// Store is a compare-and-swap on the version column: the first save inserts
// version 1, later saves only succeed against the version they were based on.
func (s *Store) Store(ctx context.Context, key string, data []byte, expectedVersion int) (int, error) {
	var (
		query string
		args  []any
	)

	if expectedVersion == 0 {
		query = `
			INSERT INTO settings (key, version, data, updated_at)
			VALUES ($1, 1, $2, NOW())
			ON CONFLICT (key) DO NOTHING
			RETURNING version`
		args = []any{key, data}
	} else {
		query = `
			UPDATE settings
			SET data = $2, version = version + 1, updated_at = NOW()
			WHERE key = $1 AND version = $3
			RETURNING version`
		args = []any{key, data, expectedVersion}
	}

	var version int

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, settings.ErrVersionConflict
		}

		return 0, fmt.Errorf("saving settings: %w", err)
	}

	return version, nil
}
