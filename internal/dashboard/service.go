package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

const cacheKey = "loyer:dashboard:summary"

//go:generate mockgen -source=service.go -destination=service_mock.go -package=dashboard
type Payments interface {
	ListPayments(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
}

type Leases interface {
	CountLeases(ctx context.Context, filter lease.ListFilter) (int, error)
}

// Cache returns ErrCacheMiss from Get when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	payments Payments
	leases   Leases
	cache    Cache
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(payments Payments, leases Leases, cache Cache, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		payments: payments,
		leases:   leases,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Summary serves the cached overview, computing it on a miss. Cache failures
// only cost a recomputation.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	data, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		var cached Summary
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}

		slog.Warn("discarding unreadable dashboard cache entry")
	} else if !errors.Is(err, ErrCacheMiss) {
		slog.Warn("dashboard cache unavailable", "error", err)
	}

	summary, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summary); err == nil {
		if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err != nil {
			slog.Warn("failed to cache dashboard", "error", err)
		}
	}

	return summary, nil
}

func (s *Service) compute(ctx context.Context) (*Summary, error) {
	now := s.now()
	start, end := monthBounds(now)

	month, err := s.payments.ListPayments(ctx, payment.ListFilter{StartDate: &start, EndDate: &end})
	if err != nil {
		return nil, fmt.Errorf("listing payments of the month: %w", err)
	}

	waiting, err := s.payments.ListPayments(ctx, payment.ListFilter{Status: new(payment.StatusPendingValidation)})
	if err != nil {
		return nil, fmt.Errorf("listing payments to validate: %w", err)
	}

	late, err := s.payments.ListPayments(ctx, payment.ListFilter{Status: new(payment.StatusLate)})
	if err != nil {
		return nil, fmt.Errorf("listing late payments: %w", err)
	}

	unsigned, err := s.leases.CountLeases(ctx, lease.ListFilter{Status: new(lease.StatusAwaitingSignatures)})
	if err != nil {
		return nil, fmt.Errorf("counting leases awaiting signatures: %w", err)
	}

	active, err := s.leases.CountLeases(ctx, lease.ListFilter{Status: new(lease.StatusSigned)})
	if err != nil {
		return nil, fmt.Errorf("counting active leases: %w", err)
	}

	summary := &Summary{
		Month:              start.Format("2006-01"),
		PaymentsByStatus:   make(map[payment.Status]int),
		AwaitingValidation: len(waiting),
		LatePayments:       len(late),
		LeasesAwaitingSign: unsigned,
		ActiveLeases:       active,
		GeneratedAt:        now,
	}

	for _, p := range month {
		summary.PaymentsByStatus[p.Status]++
		summary.CollectedThisMonth += collected(p)

		if p.Status != payment.StatusRejected {
			summary.ExpectedThisMonth += p.ExpectedAmount
		}
	}

	for _, p := range waiting {
		summary.AwaitingAmount += p.PaidAmount
	}

	return summary, nil
}
