package export

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type fakeReceipts struct {
	payments []*payment.Payment
	numbers  map[uuid.UUID]string
	opened   []uuid.UUID
}

func (f *fakeReceipts) List(_ context.Context, _ payment.ListFilter) ([]*payment.Payment, error) {
	return f.payments, nil
}

func (f *fakeReceipts) OpenReceipt(_ context.Context, id uuid.UUID) (io.ReadCloser, *payment.Payment, error) {
	f.opened = append(f.opened, id)

	number, ok := f.numbers[id]
	if !ok {
		return nil, nil, errors.New("storage unavailable")
	}

	return io.NopCloser(strings.NewReader("pdf " + number)), &payment.Payment{ID: id, ReceiptNumber: number, ReceiptKey: "receipts/" + number}, nil
}

func TestService_Export(t *testing.T) {
	tmpDir := t.TempDir()

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	paid := &payment.Payment{ID: uuid.New(), TenantName: "Paul Martin", DueDate: due, Status: payment.StatusPaid, PaidAmount: 80000}
	pending := &payment.Payment{ID: uuid.New(), TenantName: "Léa Roux", DueDate: due, Status: payment.StatusPendingValidation}

	receipts := &fakeReceipts{
		payments: []*payment.Payment{paid, pending},
		numbers:  map[uuid.UUID]string{paid.ID: "01HQ3"},
	}

	items, err := NewService(receipts).Export(context.Background(), payment.ListFilter{}, tmpDir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if !strings.HasSuffix(items[0].FilePath, "202403_Paul_Martin_01HQ3.pdf") {
		t.Errorf("unexpected file path %s", items[0].FilePath)
	}

	content, _ := os.ReadFile(items[0].FilePath)
	if string(content) != "pdf 01HQ3" {
		t.Errorf("file content mismatch: %q", content)
	}

	if items[1].FilePath != "" {
		t.Errorf("expected no receipt for a pending payment, got %s", items[1].FilePath)
	}

	if len(receipts.opened) != 1 {
		t.Errorf("expected one receipt opened, got %d", len(receipts.opened))
	}
}

func TestService_ExportReceiptFailure(t *testing.T) {
	receipts := &fakeReceipts{
		payments: []*payment.Payment{{ID: uuid.New(), Status: payment.StatusPartial}},
	}

	if _, err := NewService(receipts).Export(context.Background(), payment.ListFilter{}, t.TempDir()); err == nil {
		t.Fatal("expected an error when a receipt cannot be opened")
	}
}

func TestService_GenerateSummary(t *testing.T) {
	s := &Service{}

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []Item{
		{
			Payment: &payment.Payment{
				DueDate: due, TenantName: "Paul Martin", PropertyRef: "APT-12",
				PaidAmount: 80000, Status: payment.StatusPaid,
			},
			FilePath: "/tmp/202403_Paul_Martin_01HQ3.pdf",
		},
		{
			Payment: &payment.Payment{
				DueDate: due, TenantName: "Léa Roux", PropertyRef: "APT-3",
				PaidAmount: 45000, Status: payment.StatusRejected,
			},
		},
	}

	body := s.GenerateSummary(items)

	expectedSubstrings := []string{
		"2024-03 | Paul Martin | APT-12 | 800,00 € | paid | 202403_Paul_Martin_01HQ3.pdf",
		"2024-03 | Léa Roux | APT-3 | 450,00 € | rejected | Pas de quittance",
		"Total encaissé : 800,00 €",
	}

	for _, sub := range expectedSubstrings {
		if !strings.Contains(body, sub) {
			t.Errorf("expected body to contain %q, got:\n%s", sub, body)
		}
	}
}
