package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const selectLeaseColumns = `
	id, title, kind, property_ref, tenant_ref, tenant_name, rent, charges, deposit,
	start_date, end_date, jurisdiction, status, document_key, signed_at, created_at, updated_at
`

func scanLease(s scanner) (*lease.Lease, error) {
	var l lease.Lease

	var kind, status string

	var documentKey sql.NullString

	if err := s.Scan(
		&l.ID, &l.Title, &kind, &l.PropertyRef, &l.TenantRef, &l.TenantName,
		&l.Rent, &l.Charges, &l.Deposit,
		&l.StartDate, &l.EndDate, &l.Jurisdiction, &status, &documentKey,
		&l.SignedAt, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}

	l.Kind = lease.Kind(kind)
	l.Status = lease.Status(status)
	l.DocumentKey = documentKey.String
	l.Signatures = map[lease.Role]*lease.Signature{}

	return &l, nil
}

func loadSignatures(ctx context.Context, q queryer, l *lease.Lease) error {
	query := `
		SELECT role, signer_name, signer_email, image, image_type, signed_at
		FROM lease_signatures
		WHERE lease_id = $1`

	rows, err := q.QueryContext(ctx, query, l.ID)
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sig lease.Signature

		var role string

		if err := rows.Scan(&role, &sig.SignerName, &sig.SignerEmail, &sig.Image, &sig.ImageType, &sig.SignedAt); err != nil {
			return fmt.Errorf("scanning signature: %w", err)
		}

		sig.Role = lease.Role(role)
		l.Signatures[sig.Role] = &sig
	}

	return rows.Err()
}

func getLease(ctx context.Context, q queryer, query string, args ...any) (*lease.Lease, error) {
	l, err := scanLease(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lease.ErrNotFound
		}

		return nil, fmt.Errorf("getting lease: %w", err)
	}

	if err := loadSignatures(ctx, q, l); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *Store) CreateLease(ctx context.Context, l *lease.Lease) error {
	query := `
		INSERT INTO leases (title, kind, property_ref, tenant_ref, tenant_name, rent, charges, deposit,
			start_date, end_date, jurisdiction, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		l.Title,
		l.Kind,
		l.PropertyRef,
		l.TenantRef,
		l.TenantName,
		l.Rent,
		l.Charges,
		l.Deposit,
		l.StartDate,
		l.EndDate,
		l.Jurisdiction,
		l.Status,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating lease: %w", err)
	}

	return nil
}

func (s *Store) GetLease(ctx context.Context, id uuid.UUID) (*lease.Lease, error) {
	return getLease(ctx, s.db, `SELECT `+selectLeaseColumns+` FROM leases WHERE id = $1`, id)
}

// FindActive returns the latest signed lease pairing the tenant with the property.
func (s *Store) FindActive(ctx context.Context, tenantRef, propertyRef string) (*lease.Lease, error) {
	query := `SELECT ` + selectLeaseColumns + `
		FROM leases
		WHERE tenant_ref = $1 AND property_ref = $2 AND status = $3
		ORDER BY start_date DESC
		LIMIT 1`

	return getLease(ctx, s.db, query, tenantRef, propertyRef, lease.StatusSigned)
}

func whereLeases(filter lease.ListFilter) (string, []any) {
	where := ` WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.PropertyRef != "" {
		where += fmt.Sprintf(" AND property_ref = $%d", argIdx)

		args = append(args, filter.PropertyRef)
		argIdx++
	}

	if filter.TenantRef != "" {
		where += fmt.Sprintf(" AND tenant_ref = $%d", argIdx)

		args = append(args, filter.TenantRef)
	}

	return where, args
}

// ListLeases loads signature metadata in one extra query. Signature images
// are left out; GetLease returns them.
func (s *Store) ListLeases(ctx context.Context, filter lease.ListFilter) ([]*lease.Lease, error) {
	where, args := whereLeases(filter)

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectLeaseColumns+` FROM leases`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing leases: %w", err)
	}
	defer rows.Close()

	var leases []*lease.Lease

	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lease: %w", err)
		}

		leases = append(leases, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lease rows: %w", err)
	}

	if err := s.loadSignatureSummaries(ctx, leases); err != nil {
		return nil, err
	}

	return leases, nil
}

func (s *Store) loadSignatureSummaries(ctx context.Context, leases []*lease.Lease) error {
	if len(leases) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*lease.Lease, len(leases))
	ids := make([]string, 0, len(leases))

	for _, l := range leases {
		byID[l.ID] = l
		ids = append(ids, l.ID.String())
	}

	query := `
		SELECT lease_id, role, signer_name, signer_email, image_type, signed_at
		FROM lease_signatures
		WHERE lease_id = ANY($1::uuid[])`

	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("loading signatures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sig     lease.Signature
			leaseID uuid.UUID
			role    string
		)

		if err := rows.Scan(&leaseID, &role, &sig.SignerName, &sig.SignerEmail, &sig.ImageType, &sig.SignedAt); err != nil {
			return fmt.Errorf("scanning signature: %w", err)
		}

		sig.Role = lease.Role(role)

		if l, ok := byID[leaseID]; ok {
			l.Signatures[sig.Role] = &sig
		}
	}

	return rows.Err()
}

// CountLeases counts matching leases without loading them.
func (s *Store) CountLeases(ctx context.Context, filter lease.ListFilter) (int, error) {
	where, args := whereLeases(filter)

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leases`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting leases: %w", err)
	}

	return n, nil
}

func (s *Store) SetDocument(ctx context.Context, id uuid.UUID, documentKey string) error {
	query := `UPDATE leases SET document_key = $1, updated_at = NOW() WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, documentKey, id); err != nil {
		return fmt.Errorf("setting lease document: %w", err)
	}

	return nil
}

func (s *Store) ExpireEnded(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE leases
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND end_date IS NOT NULL AND end_date < $3
	`

	res, err := s.db.ExecContext(ctx, query, lease.StatusExpired, lease.StatusSigned, before)
	if err != nil {
		return 0, fmt.Errorf("expiring leases: %w", err)
	}

	return res.RowsAffected()
}

type signingTx struct {
	tx    *sql.Tx
	lease *lease.Lease
}

// BeginSigning opens a transaction holding a row lock on the lease. Concurrent
// captures for the same lease queue on the lock and see each other's signatures.
func (s *Store) BeginSigning(ctx context.Context, id uuid.UUID) (lease.SigningTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning signing tx: %w", err)
	}

	l, err := getLease(ctx, dbTx, `SELECT `+selectLeaseColumns+` FROM leases WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		dbTx.Rollback()
		return nil, err
	}

	return &signingTx{tx: dbTx, lease: l}, nil
}

func (stx *signingTx) Lease() *lease.Lease { return stx.lease }
func (stx *signingTx) Commit() error       { return stx.tx.Commit() }
func (stx *signingTx) Rollback() error     { return stx.tx.Rollback() }

func (stx *signingTx) AddSignature(ctx context.Context, leaseID uuid.UUID, sig *lease.Signature) error {
	query := `
		INSERT INTO lease_signatures (lease_id, role, signer_name, signer_email, image, image_type, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := stx.tx.ExecContext(ctx, query,
		leaseID, sig.Role, sig.SignerName, sig.SignerEmail, sig.Image, sig.ImageType, sig.SignedAt)
	if err != nil {
		return fmt.Errorf("inserting signature: %w", err)
	}

	return nil
}

func (stx *signingTx) UpdateStatus(ctx context.Context, leaseID uuid.UUID, status lease.Status, signedAt *time.Time) error {
	query := `
		UPDATE leases
		SET status = $1, signed_at = COALESCE($2, signed_at), updated_at = NOW()
		WHERE id = $3
	`

	if _, err := stx.tx.ExecContext(ctx, query, status, signedAt, leaseID); err != nil {
		return fmt.Errorf("updating lease status: %w", err)
	}

	return nil
}
