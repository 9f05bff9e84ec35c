package payment_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	paymentHandler "github.com/MrJamesThe3rd/loyer/internal/http/payment"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

var issuer = auth.NewIssuer("test-secret", "loyer", time.Hour)

func bearer(t *testing.T, role auth.Role, tenantRef string) string {
	t.Helper()

	tok, err := issuer.Issue(role, tenantRef, "")
	require.NoError(t, err)

	return "Bearer " + tok
}

type env struct {
	router    http.Handler
	repo      *payment.MockRepository
	tenancies *payment.MockTenancies
	receipts  *payment.MockReceipts
}

func setup(t *testing.T) env {
	ctrl := gomock.NewController(t)

	e := env{
		repo:      payment.NewMockRepository(ctrl),
		tenancies: payment.NewMockTenancies(ctrl),
		receipts:  payment.NewMockReceipts(ctrl),
	}

	notifier := payment.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc := payment.NewService(e.repo, e.tenancies, e.receipts, notifier)

	r := chi.NewRouter()
	r.Use(issuer.Middleware)
	r.Route("/payments", paymentHandler.NewHandler(svc, nil).Routes)
	e.router = r

	return e
}

func do(h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", authz)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

// activeLease expects 800 € a month.
func activeLease() *lease.Lease {
	return &lease.Lease{
		ID:          uuid.New(),
		Kind:        lease.KindIndividual,
		PropertyRef: "lilas-t2",
		TenantRef:   "tenant-42",
		TenantName:  "Léa Roux",
		Rent:        75000,
		Charges:     5000,
		Status:      lease.StatusSigned,
	}
}

func expectCreate(e env) {
	e.repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *payment.Payment) error {
		p.ID = uuid.New()
		return nil
	})
}

func TestHandler_Declare(t *testing.T) {
	type testCase struct {
		name       string
		body       string
		setupMock  func(e env)
		wantCode   int
		wantStatus payment.Status
	}

	tests := []testCase{
		{
			name: "CardExact",
			body: `{"property_ref":"lilas-t2","amount":80000,"date":"2024-03-05","method":"card"}`,
			setupMock: func(e env) {
				e.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-42", "lilas-t2").Return(activeLease(), nil)
				expectCreate(e)
				e.receipts.EXPECT().GenerateReceipt(gomock.Any(), gomock.Any()).Return("receipts/2024/x.pdf", nil)
				e.repo.EXPECT().SetReceipt(gomock.Any(), gomock.Any(), gomock.Any(), "receipts/2024/x.pdf").Return(nil)
			},
			wantCode:   http.StatusCreated,
			wantStatus: payment.StatusPaid,
		},
		{
			name: "BankTransferWaits",
			body: `{"property_ref":"lilas-t2","amount":50000,"date":"05/03/2024","method":"bank_transfer","reference":"LOYER MARS"}`,
			setupMock: func(e env) {
				e.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-42", "lilas-t2").Return(activeLease(), nil)
				expectCreate(e)
			},
			wantCode:   http.StatusCreated,
			wantStatus: payment.StatusPendingValidation,
		},
		{
			name: "CannotDeclareForSomeoneElse",
			body: `{"tenant_ref":"tenant-1","property_ref":"lilas-t2","amount":80000,"date":"2024-03-05","method":"bank_transfer"}`,
			setupMock: func(e env) {
				e.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-42", "lilas-t2").Return(activeLease(), nil)
				expectCreate(e)
			},
			wantCode:   http.StatusCreated,
			wantStatus: payment.StatusPendingValidation,
		},
		{
			name:     "ZeroAmount",
			body:     `{"property_ref":"lilas-t2","amount":0,"date":"2024-03-05","method":"card"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "BadDate",
			body:     `{"property_ref":"lilas-t2","amount":100,"date":"31/02/2024","method":"card"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "UnknownMethod",
			body:     `{"property_ref":"lilas-t2","amount":100,"date":"2024-03-05","method":"bitcoin"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "NoLease",
			body: `{"property_ref":"elsewhere","amount":100,"date":"2024-03-05","method":"cash"}`,
			setupMock: func(e env) {
				e.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-42", "elsewhere").Return(nil, lease.ErrNotFound)
			},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			if tt.setupMock != nil {
				tt.setupMock(e)
			}

			rec := do(e.router, http.MethodPost, "/payments/declarations", bearer(t, auth.RoleTenant, "tenant-42"), tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantStatus == "" {
				return
			}

			var body struct {
				Status    payment.Status `json:"status"`
				TenantRef string         `json:"tenant_ref"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "tenant-42", body.TenantRef)
		})
	}
}

func pendingTransfer() *payment.Payment {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	return &payment.Payment{
		ID:             uuid.New(),
		TenantRef:      "tenant-42",
		PropertyRef:    "lilas-t2",
		ExpectedAmount: 80000,
		PaidAmount:     80000,
		DueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PaymentDate:    &date,
		Method:         payment.MethodBankTransfer,
		Status:         payment.StatusPendingValidation,
	}
}

func TestHandler_Validate(t *testing.T) {
	t.Run("Validated", func(t *testing.T) {
		e := setup(t)
		p := pendingTransfer()

		e.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)
		e.repo.EXPECT().Resolve(gomock.Any(), p.ID, payment.StatusPaid, "vu sur le relevé", gomock.Any()).Return(nil)
		e.receipts.EXPECT().GenerateReceipt(gomock.Any(), p).Return("receipts/2024/y.pdf", nil)
		e.repo.EXPECT().SetReceipt(gomock.Any(), p.ID, gomock.Any(), "receipts/2024/y.pdf").Return(nil)

		rec := do(e.router, http.MethodPost, "/payments/"+p.ID.String()+"/validation", bearer(t, auth.RoleOwner, ""),
			`{"decision":"validated","note":"vu sur le relevé"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"status":"paid"`)
	})

	t.Run("AlreadySettled", func(t *testing.T) {
		e := setup(t)
		p := pendingTransfer()
		p.Status = payment.StatusPaid

		e.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)

		rec := do(e.router, http.MethodPost, "/payments/"+p.ID.String()+"/validation", bearer(t, auth.RoleOwner, ""),
			`{"decision":"rejected"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("UnknownDecision", func(t *testing.T) {
		e := setup(t)

		rec := do(e.router, http.MethodPost, "/payments/"+uuid.NewString()+"/validation", bearer(t, auth.RoleOwner, ""),
			`{"decision":"maybe"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("TenantForbidden", func(t *testing.T) {
		e := setup(t)

		rec := do(e.router, http.MethodPost, "/payments/"+uuid.NewString()+"/validation", bearer(t, auth.RoleTenant, "tenant-42"),
			`{"decision":"validated"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Unknown", func(t *testing.T) {
		e := setup(t)
		id := uuid.New()

		e.repo.EXPECT().GetPayment(gomock.Any(), id).Return(nil, payment.ErrNotFound)

		rec := do(e.router, http.MethodPost, "/payments/"+id.String()+"/validation", bearer(t, auth.RoleOwner, ""),
			`{"decision":"validated"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Receipt(t *testing.T) {
	t.Run("Streams", func(t *testing.T) {
		e := setup(t)
		p := pendingTransfer()
		p.Status = payment.StatusPaid
		p.ReceiptNumber = "01HQ3"
		p.ReceiptKey = "receipts/2024/01HQ3.pdf"

		e.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil).Times(2)
		e.receipts.EXPECT().Open(gomock.Any(), p.ReceiptKey).Return(io.NopCloser(strings.NewReader("%PDF")), nil)

		rec := do(e.router, http.MethodGet, "/payments/"+p.ID.String()+"/receipt", bearer(t, auth.RoleTenant, "tenant-42"), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "quittance-01HQ3.pdf")
	})

	t.Run("PendingHasNone", func(t *testing.T) {
		e := setup(t)
		p := pendingTransfer()

		e.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil).Times(2)

		rec := do(e.router, http.MethodGet, "/payments/"+p.ID.String()+"/receipt", bearer(t, auth.RoleOwner, ""), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("OtherTenant", func(t *testing.T) {
		e := setup(t)
		p := pendingTransfer()

		e.repo.EXPECT().GetPayment(gomock.Any(), p.ID).Return(p, nil)

		rec := do(e.router, http.MethodGet, "/payments/"+p.ID.String()+"/receipt", bearer(t, auth.RoleTenant, "tenant-1"), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_List(t *testing.T) {
	e := setup(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e.repo.EXPECT().
		ListPayments(gomock.Any(), payment.ListFilter{
			Status:    new(payment.StatusLate),
			TenantRef: "tenant-42",
			StartDate: &start,
		}).
		Return([]*payment.Payment{pendingTransfer()}, nil)

	rec := do(e.router, http.MethodGet, "/payments/?status=late&start_date=2024-01-01", bearer(t, auth.RoleTenant, "tenant-42"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "2024-03-05", body[0]["payment_date"])

	rec = do(e.router, http.MethodGet, "/payments/?start_date=yesterday", bearer(t, auth.RoleOwner, ""), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Schedule(t *testing.T) {
	e := setup(t)

	e.tenancies.EXPECT().ActiveLease(gomock.Any(), "tenant-42", "lilas-t2").Return(activeLease(), nil)
	expectCreate(e)

	rec := do(e.router, http.MethodPost, "/payments/", bearer(t, auth.RoleOwner, ""),
		`{"tenant_ref":"tenant-42","property_ref":"lilas-t2","due_date":"2024-04-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	assert.Contains(t, rec.Body.String(), `"expected_amount":80000`)
}
