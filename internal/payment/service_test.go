package payment_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/notify"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

type mocks struct {
	repo      *payment.MockRepository
	tenancies *payment.MockTenancies
	receipts  *payment.MockReceipts
	notifier  *payment.MockNotifier
	payers    *payment.MockPayerMatcher
}

func newService(t *testing.T) (*payment.Service, mocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := mocks{
		repo:      payment.NewMockRepository(ctrl),
		tenancies: payment.NewMockTenancies(ctrl),
		receipts:  payment.NewMockReceipts(ctrl),
		notifier:  payment.NewMockNotifier(ctrl),
		payers:    payment.NewMockPayerMatcher(ctrl),
	}

	svc := payment.NewService(m.repo, m.tenancies, m.receipts, m.notifier,
		payment.WithClock(func() time.Time { return fixedNow }),
		payment.WithPayerMatcher(m.payers),
	)

	return svc, m
}

// signedLease has an expected monthly amount of 450 €.
func signedLease() *lease.Lease {
	return &lease.Lease{
		ID:          uuid.New(),
		Title:       "Studio Croix-Rousse",
		Kind:        lease.KindIndividual,
		PropertyRef: "croix-rousse",
		TenantRef:   "tenant-7",
		TenantName:  "Paul Martin",
		Rent:        42000,
		Charges:     3000,
		Status:      lease.StatusSigned,
	}
}

func createOK(m mocks) {
	m.repo.EXPECT().
		CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *payment.Payment) error {
			p.ID = uuid.New()
			return nil
		})
}

func TestDeriveStatus(t *testing.T) {
	type args struct {
		method   payment.Method
		paid     int64
		expected int64
	}

	type testCase struct {
		name string
		args args
		want payment.Status
	}

	tests := []testCase{
		{name: "BankTransferExact", args: args{payment.MethodBankTransfer, 45000, 45000}, want: payment.StatusPendingValidation},
		{name: "BankTransferShort", args: args{payment.MethodBankTransfer, 40000, 45000}, want: payment.StatusPendingValidation},
		{name: "BankTransferOver", args: args{payment.MethodBankTransfer, 50000, 45000}, want: payment.StatusPendingValidation},
		{name: "CashExact", args: args{payment.MethodCash, 45000, 45000}, want: payment.StatusPaid},
		{name: "CashShort", args: args{payment.MethodCash, 40000, 45000}, want: payment.StatusPartial},
		{name: "CardOver", args: args{payment.MethodCard, 50000, 45000}, want: payment.StatusOverpaid},
		{name: "CardExact", args: args{payment.MethodCard, 45000, 45000}, want: payment.StatusPaid},
		{name: "CheckShort", args: args{payment.MethodCheck, 1, 45000}, want: payment.StatusPartial},
		{name: "DirectDebitExact", args: args{payment.MethodDirectDebit, 45000, 45000}, want: payment.StatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payment.DeriveStatus(tt.args.method, tt.args.paid, tt.args.expected))
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := payment.ParseDate("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)

	got, err = payment.ParseDate("04/03/2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"", "hier", "2024-02-30", "31/02/2024", "2024/03/04"} {
		_, err := payment.ParseDate(raw)
		assert.ErrorIs(t, err, payment.ErrInvalidDate, raw)
	}
}

func TestDueDate(t *testing.T) {
	assert.Equal(t,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		payment.DueDate(time.Date(2024, 3, 28, 15, 0, 0, 0, time.UTC)),
	)
}

func TestService_Declare_CardExactAmount(t *testing.T) {
	svc, m := newService(t)
	l := signedLease()

	m.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-7", "croix-rousse").Return(l, nil)
	createOK(m)
	m.receipts.EXPECT().
		GenerateReceipt(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *payment.Payment) (string, error) {
			assert.NotEmpty(t, p.ReceiptNumber)
			return "receipts/" + p.ReceiptNumber + ".pdf", nil
		})
	m.repo.EXPECT().SetReceipt(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	var recorded notify.Event

	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			recorded = e
			return nil
		})

	got, err := svc.Declare(context.Background(), payment.DeclareParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		Amount:      45000,
		Date:        "2024-03-04",
		Method:      payment.MethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, notify.KindPaymentRecorded, recorded.Kind)
	assert.Equal(t, got.ID, recorded.SubjectID)
	assert.Equal(t, notify.RecipientOwner, recorded.Recipient)
	assert.Equal(t, got.ReceiptNumber, recorded.Data["receipt_number"])
	assert.Equal(t, fixedNow, recorded.OccurredAt)
	assert.Equal(t, payment.StatusPaid, got.Status)
	assert.Equal(t, int64(45000), got.ExpectedAmount)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got.DueDate)
	assert.Equal(t, &l.ID, got.LeaseID)
	assert.Equal(t, payment.TenantTypeTenant, got.TenantType)
	assert.Equal(t, "receipts/"+got.ReceiptNumber+".pdf", got.ReceiptKey)
}

func TestService_Declare_BankTransferShortfallThenValidated(t *testing.T) {
	svc, m := newService(t)
	l := signedLease()

	m.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-7", "croix-rousse").Return(l, nil)
	createOK(m)

	var kinds []notify.Kind

	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			kinds = append(kinds, e.Kind)
			assert.Equal(t, notify.RecipientOwner, e.Recipient)

			return nil
		}).
		Times(2)

	declared, err := svc.Declare(context.Background(), payment.DeclareParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		Amount:      40000,
		Date:        "04/03/2024",
		Method:      payment.MethodBankTransfer,
		Reference:   "LOYER MARS",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPendingValidation, declared.Status)
	assert.Empty(t, declared.ReceiptNumber)
	assert.Equal(t, []notify.Kind{notify.KindPaymentDiscrepancy, notify.KindPaymentDeclared}, kinds)

	m.repo.EXPECT().GetPayment(gomock.Any(), declared.ID).Return(declared, nil)
	m.repo.EXPECT().Resolve(gomock.Any(), declared.ID, payment.StatusPaid, "reçu sur le compte", fixedNow).Return(nil)
	m.receipts.EXPECT().GenerateReceipt(gomock.Any(), declared).Return("receipts/r.pdf", nil)
	m.repo.EXPECT().SetReceipt(gomock.Any(), declared.ID, gomock.Any(), "receipts/r.pdf").Return(nil)
	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			assert.Equal(t, notify.KindPaymentValidated, e.Kind)
			assert.Equal(t, "tenant-7", e.Recipient)

			return nil
		})

	validated, err := svc.Validate(context.Background(), declared.ID, payment.DecisionValidated, " reçu sur le compte ")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, validated.Status)
	assert.NotEmpty(t, validated.ReceiptNumber)
	assert.Equal(t, "receipts/r.pdf", validated.ReceiptKey)
	assert.Equal(t, &fixedNow, validated.ResolvedAt)
}

func TestService_Declare_OverpaidCashNotifiesDiscrepancy(t *testing.T) {
	svc, m := newService(t)

	m.tenancies.EXPECT().ActiveLease(gomock.Any(), gomock.Any(), gomock.Any()).Return(signedLease(), nil)
	createOK(m)

	events := map[notify.Kind]notify.Event{}

	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			events[e.Kind] = e
			return nil
		}).
		Times(2)
	m.receipts.EXPECT().GenerateReceipt(gomock.Any(), gomock.Any()).Return("receipts/o.pdf", nil)
	m.repo.EXPECT().SetReceipt(gomock.Any(), gomock.Any(), gomock.Any(), "receipts/o.pdf").Return(nil)

	got, err := svc.Declare(context.Background(), payment.DeclareParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		Amount:      50000,
		Date:        "2024-03-04",
		Method:      payment.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusOverpaid, got.Status)
	require.Contains(t, events, notify.KindPaymentDiscrepancy)
	assert.Equal(t, int64(5000), events[notify.KindPaymentDiscrepancy].Data["difference"])
	require.Contains(t, events, notify.KindPaymentRecorded)
	assert.Equal(t, "overpaid", events[notify.KindPaymentRecorded].Data["status"])
}

func TestService_Declare_ReceiptFailureKeepsPayment(t *testing.T) {
	svc, m := newService(t)

	m.tenancies.EXPECT().ActiveLease(gomock.Any(), gomock.Any(), gomock.Any()).Return(signedLease(), nil)
	createOK(m)
	m.receipts.EXPECT().GenerateReceipt(gomock.Any(), gomock.Any()).Return("", errors.New("bucket unavailable"))
	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Cond(func(e notify.Event) bool { return e.Kind == notify.KindPaymentRecorded })).
		Return(nil)

	got, err := svc.Declare(context.Background(), payment.DeclareParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		Amount:      45000,
		Date:        "2024-03-04",
		Method:      payment.MethodCheck,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, got.Status)
	assert.Empty(t, got.ReceiptKey)
}

func TestService_Declare_Errors(t *testing.T) {
	type testCase struct {
		name      string
		params    payment.DeclareParams
		setupMock func(m mocks)
		wantErr   error
	}

	valid := payment.DeclareParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		Amount:      45000,
		Date:        "2024-03-04",
		Method:      payment.MethodCash,
	}

	with := func(f func(p *payment.DeclareParams)) payment.DeclareParams {
		p := valid
		f(&p)

		return p
	}

	tests := []testCase{
		{
			name:    "ZeroAmount",
			params:  with(func(p *payment.DeclareParams) { p.Amount = 0 }),
			wantErr: payment.ErrInvalidAmount,
		},
		{
			name:    "NegativeAmount",
			params:  with(func(p *payment.DeclareParams) { p.Amount = -100 }),
			wantErr: payment.ErrInvalidAmount,
		},
		{
			name:    "UnparseableDate",
			params:  with(func(p *payment.DeclareParams) { p.Date = "le 4 mars" }),
			wantErr: payment.ErrInvalidDate,
		},
		{
			name:    "UnknownMethod",
			params:  with(func(p *payment.DeclareParams) { p.Method = "bitcoin" }),
			wantErr: payment.ErrInvalidMethod,
		},
		{
			name:    "UnknownTenantType",
			params:  with(func(p *payment.DeclareParams) { p.TenantType = "guarantor" }),
			wantErr: payment.ErrInvalidPayment,
		},
		{
			name:   "NoSignedLease",
			params: valid,
			setupMock: func(m mocks) {
				m.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-7", "croix-rousse").Return(nil, lease.ErrNotFound)
			},
			wantErr: payment.ErrNoActiveLease,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Declare(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestService_Validate_NotPending(t *testing.T) {
	for _, status := range []payment.Status{
		payment.StatusPaid,
		payment.StatusRejected,
		payment.StatusPartial,
		payment.StatusPending,
	} {
		t.Run(string(status), func(t *testing.T) {
			svc, m := newService(t)
			p := &payment.Payment{ID: uuid.New(), Status: status}

			m.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)

			got, err := svc.Validate(context.Background(), p.ID, payment.DecisionValidated, "")
			assert.ErrorIs(t, err, payment.ErrInvalidStateTransition)
			assert.Nil(t, got)
			assert.Equal(t, status, p.Status)
		})
	}
}

func TestService_Validate_LostRace(t *testing.T) {
	svc, m := newService(t)
	p := &payment.Payment{ID: uuid.New(), Status: payment.StatusPendingValidation}

	m.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
	m.repo.EXPECT().
		Resolve(gomock.Any(), p.ID, payment.StatusRejected, "", fixedNow).
		Return(payment.ErrInvalidStateTransition)

	_, err := svc.Validate(context.Background(), p.ID, payment.DecisionRejected, "")
	assert.ErrorIs(t, err, payment.ErrInvalidStateTransition)
	assert.Equal(t, payment.StatusPendingValidation, p.Status)
}

func TestService_Validate_Rejected(t *testing.T) {
	svc, m := newService(t)
	p := &payment.Payment{ID: uuid.New(), TenantRef: "tenant-7", PaidAmount: 40000, Status: payment.StatusPendingValidation}

	m.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
	m.repo.EXPECT().Resolve(gomock.Any(), p.ID, payment.StatusRejected, "aucun virement reçu", fixedNow).Return(nil)
	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			assert.Equal(t, notify.KindPaymentRejected, e.Kind)
			assert.Equal(t, "tenant-7", e.Recipient)

			return nil
		})

	got, err := svc.Validate(context.Background(), p.ID, payment.DecisionRejected, "aucun virement reçu")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, got.Status)
	assert.Empty(t, got.ReceiptNumber)
}

func TestService_Validate_UnknownDecision(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Validate(context.Background(), uuid.New(), "maybe", "")
	assert.ErrorIs(t, err, payment.ErrInvalidDecision)
}

func TestService_Schedule(t *testing.T) {
	svc, m := newService(t)
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	m.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-7", "croix-rousse").Return(signedLease(), nil)
	createOK(m)
	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Cond(func(e notify.Event) bool {
			return e.Kind == notify.KindPaymentScheduled && e.Recipient == "tenant-7" && e.Data["due_date"] == "2024-04-01"
		})).
		Return(nil)

	got, err := svc.Schedule(context.Background(), payment.ScheduleParams{
		TenantRef:   "tenant-7",
		PropertyRef: "croix-rousse",
		DueDate:     due,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, got.Status)
	assert.Equal(t, int64(45000), got.ExpectedAmount)
	assert.Nil(t, got.PaymentDate)
}

func TestService_MarkLate(t *testing.T) {
	t.Run("NotifiesLate", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().MarkLate(gomock.Any(), fixedNow).Return(int64(2), nil)
		m.notifier.EXPECT().
			Notify(gomock.Any(), gomock.Cond(func(e notify.Event) bool {
				return e.Kind == notify.KindPaymentsLate && e.Data["count"] == int64(2)
			})).
			Return(nil)

		n, err := svc.MarkLate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("NothingLate", func(t *testing.T) {
		svc, m := newService(t)

		m.repo.EXPECT().MarkLate(gomock.Any(), fixedNow).Return(int64(0), nil)

		n, err := svc.MarkLate(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestService_OpenReceipt(t *testing.T) {
	t.Run("GeneratedOnDemand", func(t *testing.T) {
		svc, m := newService(t)
		p := &payment.Payment{ID: uuid.New(), Status: payment.StatusPartial}

		m.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
		m.receipts.EXPECT().GenerateReceipt(gomock.Any(), p).Return("receipts/p.pdf", nil)
		m.repo.EXPECT().SetReceipt(gomock.Any(), p.ID, gomock.Any(), "receipts/p.pdf").Return(nil)
		m.receipts.EXPECT().Open(gomock.Any(), "receipts/p.pdf").Return(io.NopCloser(strings.NewReader("%PDF")), nil)

		rc, got, err := svc.OpenReceipt(context.Background(), p.ID)
		require.NoError(t, err)

		defer rc.Close()

		assert.NotEmpty(t, got.ReceiptNumber)
	})

	t.Run("PendingValidation", func(t *testing.T) {
		svc, m := newService(t)
		p := &payment.Payment{ID: uuid.New(), Status: payment.StatusPendingValidation}

		m.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)

		_, _, err := svc.OpenReceipt(context.Background(), p.ID)
		assert.ErrorIs(t, err, payment.ErrNoReceipt)
	})
}

func TestService_Reconcile(t *testing.T) {
	svc, m := newService(t)

	declaredAt := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	byPayer := &payment.Payment{ID: uuid.New(), TenantRef: "tenant-7", PaidAmount: 45000, PaymentDate: &declaredAt}
	byReference := &payment.Payment{ID: uuid.New(), TenantRef: "tenant-9", PaidAmount: 60000, PaymentDate: &declaredAt, Reference: "Loyer T3"}
	tooOld := &payment.Payment{ID: uuid.New(), TenantRef: "tenant-3", PaidAmount: 30000, PaymentDate: &declaredAt}

	m.repo.EXPECT().
		ListPayments(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f payment.ListFilter) ([]*payment.Payment, error) {
			require.NotNil(t, f.Status)
			assert.Equal(t, payment.StatusPendingValidation, *f.Status)

			return []*payment.Payment{byPayer, byReference, tooOld}, nil
		})
	m.payers.EXPECT().Suggest(gomock.Any(), "VIR SEPA M PAUL MARTIN").Return("tenant-7", nil)
	m.payers.EXPECT().Suggest(gomock.Any(), "VIR DUPONT LOYER T3 MARS").Return("", nil)
	m.payers.EXPECT().Suggest(gomock.Any(), "VIR SEPA M PAUL MARTIN BIS").Return("tenant-7", nil)
	m.payers.EXPECT().Suggest(gomock.Any(), "VIR ANCIEN").Return("tenant-3", nil)

	lines := []payment.StatementLine{
		{Date: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Amount: 45000, Label: "VIR SEPA M PAUL MARTIN"},
		{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Amount: 60000, Label: "VIR DUPONT LOYER T3 MARS"},
		{Date: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Amount: 45000, Label: "VIR SEPA M PAUL MARTIN BIS"},
		{Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), Amount: 30000, Label: "VIR ANCIEN"},
		{Date: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Amount: -1200, Label: "PRLV EDF"},
	}

	matches, err := svc.Reconcile(context.Background(), lines)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, byPayer, matches[0].Payment)
	assert.Equal(t, payment.MatchByPayer, matches[0].Reason)
	assert.Equal(t, byReference, matches[1].Payment)
	assert.Equal(t, payment.MatchByReference, matches[1].Reason)
}
