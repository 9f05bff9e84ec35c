package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/loyer/internal/matching"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindTenant(ctx context.Context, label string) (string, error) {
	query := `
		SELECT tenant_ref
		FROM payer_mappings
		WHERE $1 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var tenantRef string

	err := s.db.QueryRowContext(ctx, query, label).Scan(&tenantRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("finding payer: %w", err)
	}

	return tenantRef, nil
}

func (s *Store) CreateMapping(ctx context.Context, rawPattern, tenantRef string) error {
	query := `
		INSERT INTO payer_mappings (raw_pattern, tenant_ref, created_at)
		VALUES ($1, $2, NOW())
	`

	_, err := s.db.ExecContext(ctx, query, rawPattern, tenantRef)
	if err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}

	return nil
}

func (s *Store) ListMappings(ctx context.Context) ([]matching.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_pattern, tenant_ref, created_at
		FROM payer_mappings
		ORDER BY tenant_ref, raw_pattern`)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var mappings []matching.Mapping

	for rows.Next() {
		var m matching.Mapping
		if err := rows.Scan(&m.ID, &m.RawPattern, &m.TenantRef, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}

		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}
