package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/loyer/internal/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

var (
	now        = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	monthStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	monthEnd   = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
)

type mocks struct {
	payments *dashboard.MockPayments
	leases   *dashboard.MockLeases
	cache    *dashboard.MockCache
}

func setup(t *testing.T) (*dashboard.Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		payments: dashboard.NewMockPayments(ctrl),
		leases:   dashboard.NewMockLeases(ctrl),
		cache:    dashboard.NewMockCache(ctrl),
	}

	svc := dashboard.NewService(m.payments, m.leases, m.cache, time.Minute, dashboard.WithClock(func() time.Time { return now }))

	return svc, m
}

func expectLists(m mocks) {
	m.payments.EXPECT().
		ListPayments(gomock.Any(), payment.ListFilter{StartDate: &monthStart, EndDate: &monthEnd}).
		Return([]*payment.Payment{
			{Status: payment.StatusPaid, ExpectedAmount: 80000, PaidAmount: 80000},
			{Status: payment.StatusPartial, ExpectedAmount: 80000, PaidAmount: 50000},
			{Status: payment.StatusPendingValidation, ExpectedAmount: 60000, PaidAmount: 60000},
			{Status: payment.StatusRejected, ExpectedAmount: 60000, PaidAmount: 60000},
		}, nil)
	m.payments.EXPECT().
		ListPayments(gomock.Any(), payment.ListFilter{Status: new(payment.StatusPendingValidation)}).
		Return([]*payment.Payment{{PaidAmount: 60000}, {PaidAmount: 45000}}, nil)
	m.payments.EXPECT().
		ListPayments(gomock.Any(), payment.ListFilter{Status: new(payment.StatusLate)}).
		Return([]*payment.Payment{{}}, nil)
	m.leases.EXPECT().
		CountLeases(gomock.Any(), lease.ListFilter{Status: new(lease.StatusAwaitingSignatures)}).
		Return(2, nil)
	m.leases.EXPECT().
		CountLeases(gomock.Any(), lease.ListFilter{Status: new(lease.StatusSigned)}).
		Return(3, nil)
}

func TestService_Summary_ComputesOnMiss(t *testing.T) {
	svc, m := setup(t)

	m.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, dashboard.ErrCacheMiss)
	expectLists(m)
	m.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Minute).Return(nil)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-03", got.Month)
	assert.Equal(t, int64(130000), got.CollectedThisMonth)
	assert.Equal(t, int64(220000), got.ExpectedThisMonth)
	assert.Equal(t, 2, got.AwaitingValidation)
	assert.Equal(t, int64(105000), got.AwaitingAmount)
	assert.Equal(t, 1, got.LatePayments)
	assert.Equal(t, 2, got.LeasesAwaitingSign)
	assert.Equal(t, 3, got.ActiveLeases)
	assert.Equal(t, map[payment.Status]int{
		payment.StatusPaid:              1,
		payment.StatusPartial:           1,
		payment.StatusPendingValidation: 1,
		payment.StatusRejected:          1,
	}, got.PaymentsByStatus)
}

func TestService_Summary_ServesCache(t *testing.T) {
	svc, m := setup(t)

	cached, err := json.Marshal(dashboard.Summary{Month: "2024-03", ActiveLeases: 9})
	require.NoError(t, err)

	m.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(cached, nil)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, got.ActiveLeases)
}

func TestService_Summary_CacheDown(t *testing.T) {
	svc, m := setup(t)

	m.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
	expectLists(m)
	m.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.ActiveLeases)
}

func TestService_Summary_StoreError(t *testing.T) {
	svc, m := setup(t)

	m.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, dashboard.ErrCacheMiss)
	m.payments.EXPECT().ListPayments(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
}

func TestNoCache(t *testing.T) {
	var c dashboard.Cache = dashboard.NoCache{}

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, dashboard.ErrCacheMiss)
	assert.NoError(t, c.Set(context.Background(), "k", nil, time.Second))
	assert.NoError(t, c.Delete(context.Background(), "k"))
}
