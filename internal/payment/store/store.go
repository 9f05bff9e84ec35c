package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: see selectPaymentColumns.
func scanPayment(s scanner) (*payment.Payment, error) {
	var p payment.Payment

	var tenantType, status string

	var method, receiptNumber, receiptKey sql.NullString

	if err := s.Scan(
		&p.ID, &p.LeaseID, &p.TenantRef, &p.TenantName, &tenantType, &p.PropertyRef,
		&p.ExpectedAmount, &p.PaidAmount, &p.DueDate, &p.PaymentDate, &method, &status,
		&p.Reference, &p.Notes, &receiptNumber, &receiptKey, &p.ResolutionNote, &p.ResolvedAt,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.TenantType = payment.TenantType(tenantType)
	p.Status = payment.Status(status)
	p.Method = payment.Method(method.String)
	p.ReceiptNumber = receiptNumber.String
	p.ReceiptKey = receiptKey.String

	return &p, nil
}

const selectPaymentColumns = `
	id, lease_id, tenant_ref, tenant_name, tenant_type, property_ref,
	expected_amount, paid_amount, due_date, payment_date, method, status,
	reference, notes, receipt_number, receipt_key, resolution_note, resolved_at,
	created_at, updated_at
`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (lease_id, tenant_ref, tenant_name, tenant_type, property_ref,
			expected_amount, paid_amount, due_date, payment_date, method, status, reference, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.LeaseID,
		p.TenantRef,
		p.TenantName,
		p.TenantType,
		p.PropertyRef,
		p.ExpectedAmount,
		p.PaidAmount,
		p.DueDate,
		p.PaymentDate,
		nullString(string(p.Method)),
		p.Status,
		p.Reference,
		p.Notes,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}

	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment: %w", err)
	}

	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.TenantRef != "" {
		query += fmt.Sprintf(" AND tenant_ref = $%d", argIdx)

		args = append(args, filter.TenantRef)
		argIdx++
	}

	if filter.PropertyRef != "" {
		query += fmt.Sprintf(" AND property_ref = $%d", argIdx)

		args = append(args, filter.PropertyRef)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND due_date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND due_date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY due_date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}

	return payments, nil
}

func (s *Store) SetReceipt(ctx context.Context, id uuid.UUID, number, key string) error {
	query := `
		UPDATE payments
		SET receipt_number = $1, receipt_key = $2, updated_at = NOW()
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, number, key, id); err != nil {
		return fmt.Errorf("setting receipt: %w", err)
	}

	return nil
}

// Resolve only touches rows still in pending_validation, so two concurrent
// validations of the same payment cannot both succeed.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID, status payment.Status, note string, at time.Time) error {
	query := `
		UPDATE payments
		SET status = $1, resolution_note = $2, resolved_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query, status, note, at, id, payment.StatusPendingValidation)
	if err != nil {
		return fmt.Errorf("resolving payment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolving payment: %w", err)
	}

	if n == 1 {
		return nil
	}

	var current string

	err = s.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.ErrNotFound
		}

		return fmt.Errorf("checking payment status: %w", err)
	}

	return fmt.Errorf("%w: payment is %s", payment.ErrInvalidStateTransition, current)
}

func (s *Store) MarkLate(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND due_date < $3
	`

	res, err := s.db.ExecContext(ctx, query, payment.StatusLate, payment.StatusPending, before)
	if err != nil {
		return 0, fmt.Errorf("marking late payments: %w", err)
	}

	return res.RowsAffected()
}
