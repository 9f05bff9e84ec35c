package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/notify"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=payment
type Repository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, filter ListFilter) ([]*Payment, error)
	SetReceipt(ctx context.Context, id uuid.UUID, number, key string) error

	// Resolve moves a pending_validation payment to a final status. It returns
	// ErrInvalidStateTransition when the payment has left pending_validation.
	Resolve(ctx context.Context, id uuid.UUID, status Status, note string, at time.Time) error
	MarkLate(ctx context.Context, before time.Time) (int64, error)
}

type Tenancies interface {
	ActiveLease(ctx context.Context, tenantRef, propertyRef string) (*lease.Lease, error)
}

type Receipts interface {
	GenerateReceipt(ctx context.Context, p *Payment) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

type PayerMatcher interface {
	Suggest(ctx context.Context, label string) (string, error)
}

type Service struct {
	repo      Repository
	tenancies Tenancies
	receipts  Receipts
	notifier  Notifier
	payers    PayerMatcher
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPayerMatcher enables payer-label matching during reconciliation.
func WithPayerMatcher(m PayerMatcher) Option {
	return func(s *Service) { s.payers = m }
}

func NewService(repo Repository, tenancies Tenancies, receipts Receipts, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		tenancies: tenancies,
		receipts:  receipts,
		notifier:  notifier,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type DeclareParams struct {
	TenantRef   string
	PropertyRef string
	TenantType  TenantType
	Amount      int64
	Date        string
	Method      Method
	Reference   string
	Notes       string
}

type ScheduleParams struct {
	TenantRef   string
	PropertyRef string
	DueDate     time.Time
}

type ListFilter struct {
	Status      *Status
	TenantRef   string
	PropertyRef string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, filter)
}

func (s *Service) activeLease(ctx context.Context, tenantRef, propertyRef string) (*lease.Lease, error) {
	l, err := s.tenancies.ActiveLease(ctx, tenantRef, propertyRef)
	if err != nil {
		if errors.Is(err, lease.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s at %s", ErrNoActiveLease, tenantRef, propertyRef)
		}

		return nil, fmt.Errorf("finding active lease: %w", err)
	}

	return l, nil
}

// Declare records a payment reported by a tenant. Self-reported methods are
// settled immediately with a receipt; bank transfers wait for the owner.
func (s *Service) Declare(ctx context.Context, params DeclareParams) (*Payment, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	date, err := ParseDate(params.Date)
	if err != nil {
		return nil, err
	}

	if !params.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, params.Method)
	}

	tenantType := params.TenantType
	if tenantType == "" {
		tenantType = TenantTypeTenant
	}

	if tenantType != TenantTypeTenant && tenantType != TenantTypeRoommate {
		return nil, fmt.Errorf("%w: unknown tenant type %q", ErrInvalidPayment, tenantType)
	}

	l, err := s.activeLease(ctx, params.TenantRef, params.PropertyRef)
	if err != nil {
		return nil, err
	}

	expected := l.ExpectedAmount()

	p := &Payment{
		LeaseID:        &l.ID,
		TenantRef:      l.TenantRef,
		TenantName:     l.TenantName,
		TenantType:     tenantType,
		PropertyRef:    l.PropertyRef,
		ExpectedAmount: expected,
		PaidAmount:     params.Amount,
		DueDate:        DueDate(date),
		PaymentDate:    &date,
		Method:         params.Method,
		Status:         DeriveStatus(params.Method, params.Amount, expected),
		Reference:      strings.TrimSpace(params.Reference),
		Notes:          strings.TrimSpace(params.Notes),
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	if p.PaidAmount != p.ExpectedAmount {
		s.notify(ctx, notify.Event{
			Kind:      notify.KindPaymentDiscrepancy,
			SubjectID: p.ID,
			Recipient: notify.RecipientOwner,
			Message: fmt.Sprintf("%s a déclaré %s pour un loyer attendu de %s",
				displayName(p), money.Format(p.PaidAmount), money.Format(p.ExpectedAmount)),
			Data: map[string]any{
				"expected_amount": p.ExpectedAmount,
				"paid_amount":     p.PaidAmount,
				"difference":      p.PaidAmount - p.ExpectedAmount,
			},
		})
	}

	if p.Status == StatusPendingValidation {
		s.notify(ctx, notify.Event{
			Kind:      notify.KindPaymentDeclared,
			SubjectID: p.ID,
			Recipient: notify.RecipientOwner,
			Message:   fmt.Sprintf("Virement de %s déclaré par %s, à valider", money.Format(p.PaidAmount), displayName(p)),
			Data:      map[string]any{"method": string(p.Method)},
		})

		return p, nil
	}

	if err := s.issueReceipt(ctx, p); err != nil {
		slog.Error("failed to issue receipt", "payment_id", p.ID, "error", err)
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindPaymentRecorded,
		SubjectID: p.ID,
		Recipient: notify.RecipientOwner,
		Message:   fmt.Sprintf("Paiement de %s reçu de %s (%s)", money.Format(p.PaidAmount), displayName(p), p.Method),
		Data: map[string]any{
			"method":         string(p.Method),
			"status":         string(p.Status),
			"receipt_number": p.ReceiptNumber,
		},
	})

	return p, nil
}

// Schedule records an expected rent entry that no one has declared yet.
func (s *Service) Schedule(ctx context.Context, params ScheduleParams) (*Payment, error) {
	if params.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrInvalidDate)
	}

	l, err := s.activeLease(ctx, params.TenantRef, params.PropertyRef)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		LeaseID:        &l.ID,
		TenantRef:      l.TenantRef,
		TenantName:     l.TenantName,
		TenantType:     TenantTypeTenant,
		PropertyRef:    l.PropertyRef,
		ExpectedAmount: l.ExpectedAmount(),
		DueDate:        params.DueDate,
		Status:         StatusPending,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindPaymentScheduled,
		SubjectID: p.ID,
		Recipient: p.TenantRef,
		Message:   fmt.Sprintf("Loyer de %s attendu le %s", money.Format(p.ExpectedAmount), p.DueDate.Format("02/01/2006")),
		Data:      map[string]any{"due_date": p.DueDate.Format(time.DateOnly)},
	})

	return p, nil
}

// Validate settles a bank transfer declaration. It succeeds at most once per payment.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, decision Decision, note string) (*Payment, error) {
	var to Status

	switch decision {
	case DecisionValidated:
		to = StatusPaid
	case DecisionRejected:
		to = StatusRejected
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != StatusPendingValidation {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidStateTransition, p.Status)
	}

	now := s.now()
	note = strings.TrimSpace(note)

	if err := s.repo.Resolve(ctx, p.ID, to, note, now); err != nil {
		return nil, err
	}

	p.Status = to
	p.ResolutionNote = note
	p.ResolvedAt = &now

	if to == StatusRejected {
		s.notify(ctx, notify.Event{
			Kind:      notify.KindPaymentRejected,
			SubjectID: p.ID,
			Recipient: p.TenantRef,
			Message:   fmt.Sprintf("Votre paiement de %s a été refusé", money.Format(p.PaidAmount)),
			Data:      map[string]any{"note": note},
		})

		return p, nil
	}

	if err := s.issueReceipt(ctx, p); err != nil {
		slog.Error("failed to issue receipt", "payment_id", p.ID, "error", err)
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindPaymentValidated,
		SubjectID: p.ID,
		Recipient: p.TenantRef,
		Message:   fmt.Sprintf("Votre paiement de %s a été validé", money.Format(p.PaidAmount)),
		Data:      map[string]any{"receipt_number": p.ReceiptNumber},
	})

	return p, nil
}

// MarkLate flags scheduled entries whose due date has passed.
func (s *Service) MarkLate(ctx context.Context) (int64, error) {
	now := s.now()

	n, err := s.repo.MarkLate(ctx, now)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.notify(ctx, notify.Event{
			Kind:       notify.KindPaymentsLate,
			Recipient:  notify.RecipientOwner,
			Message:    fmt.Sprintf("%d loyer(s) en retard", n),
			Data:       map[string]any{"count": n},
			OccurredAt: now,
		})
	}

	return n, nil
}

// OpenReceipt streams the receipt of a settled payment, rendering it first if it was never stored.
func (s *Service) OpenReceipt(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !p.Status.ReceiptEligible() {
		return nil, nil, fmt.Errorf("%w: payment is %s", ErrNoReceipt, p.Status)
	}

	if p.ReceiptKey == "" {
		if err := s.issueReceipt(ctx, p); err != nil {
			return nil, nil, err
		}
	}

	rc, err := s.receipts.Open(ctx, p.ReceiptKey)
	if err != nil {
		return nil, nil, fmt.Errorf("opening receipt: %w", err)
	}

	return rc, p, nil
}

func (s *Service) issueReceipt(ctx context.Context, p *Payment) error {
	if p.ReceiptNumber == "" {
		p.ReceiptNumber = ulid.MustNew(ulid.Timestamp(s.now()), ulid.DefaultEntropy()).String()
	}

	key, err := s.receipts.GenerateReceipt(ctx, p)
	if err != nil {
		return fmt.Errorf("rendering receipt: %w", err)
	}

	if err := s.repo.SetReceipt(ctx, p.ID, p.ReceiptNumber, key); err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}

	p.ReceiptKey = key

	return nil
}

func (s *Service) notify(ctx context.Context, e notify.Event) {
	if s.notifier == nil {
		return
	}

	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}

	if err := s.notifier.Notify(ctx, e); err != nil {
		slog.Warn("failed to send notification", "kind", e.Kind, "subject_id", e.SubjectID, "error", err)
	}
}

func displayName(p *Payment) string {
	if p.TenantName != "" {
		return p.TenantName
	}

	return p.TenantRef
}
