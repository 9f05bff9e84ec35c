package export_test

import (
	"archive/zip"
	"bytes"
	"context"
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

	"github.com/MrJamesThe3rd/loyer/internal/export"
	exportHandler "github.com/MrJamesThe3rd/loyer/internal/http/export"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type fakeReceipts struct {
	paid *payment.Payment
	got  payment.ListFilter
}

func (f *fakeReceipts) List(_ context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	f.got = filter
	return []*payment.Payment{f.paid}, nil
}

func (f *fakeReceipts) OpenReceipt(_ context.Context, _ uuid.UUID) (io.ReadCloser, *payment.Payment, error) {
	return io.NopCloser(strings.NewReader("%PDF")), f.paid, nil
}

func setup() (http.Handler, *fakeReceipts) {
	receipts := &fakeReceipts{paid: &payment.Payment{
		ID:            uuid.New(),
		TenantName:    "Paul Martin",
		DueDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		PaidAmount:    80000,
		Status:        payment.StatusPaid,
		ReceiptNumber: "01HQ3",
	}}

	r := chi.NewRouter()
	r.Route("/export", exportHandler.NewHandler(export.NewService(receipts)).Routes)

	return r, receipts
}

func TestHandler_Metadata(t *testing.T) {
	router, receipts := setup()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/",
		strings.NewReader(`{"start_date":"2024-01-01","end_date":"2024-03-31"}`)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"receipt_file":"202403_Paul_Martin_01HQ3.pdf"`)
	assert.Contains(t, rec.Body.String(), "Total encaiss")
	require.NotNil(t, receipts.got.StartDate)
	assert.Equal(t, "2024-01-01", receipts.got.StartDate.Format("2006-01-02"))
}

func TestHandler_Download(t *testing.T) {
	router, _ := setup()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/download", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}

	assert.ElementsMatch(t, []string{"202403_Paul_Martin_01HQ3.pdf", "recapitulatif.txt"}, names)
}

func TestHandler_BadDate(t *testing.T) {
	router, _ := setup()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/export/", strings.NewReader(`{"start_date":"mars"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
