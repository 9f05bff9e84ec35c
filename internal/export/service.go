package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

// Item represents a single exported payment with its local receipt file.
type Item struct {
	Payment  *payment.Payment
	FilePath string
}

type Receipts interface {
	List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	OpenReceipt(ctx context.Context, id uuid.UUID) (io.ReadCloser, *payment.Payment, error)
}

// Service gathers the receipts of a period, e.g. for the owner's accountant.
type Service struct {
	receipts Receipts
}

func NewService(receipts Receipts) *Service {
	return &Service{receipts: receipts}
}

// Export copies the receipt of every settled payment matching the filter into outputDir.
// Payments without a receipt are returned with an empty FilePath.
func (s *Service) Export(ctx context.Context, filter payment.ListFilter, outputDir string) ([]Item, error) {
	payments, err := s.receipts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	items := make([]Item, 0, len(payments))

	for _, p := range payments {
		item := Item{Payment: p}

		if p.Status.ReceiptEligible() {
			path, err := s.copyReceipt(ctx, p, outputDir)
			if err != nil {
				return nil, fmt.Errorf("exporting receipt of payment %s: %w", p.ID, err)
			}

			item.FilePath = path
		}

		items = append(items, item)
	}

	return items, nil
}

func (s *Service) copyReceipt(ctx context.Context, p *payment.Payment, dir string) (string, error) {
	rc, settled, err := s.receipts.OpenReceipt(ctx, p.ID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	// OpenReceipt may have just issued the receipt number.
	p.ReceiptNumber = settled.ReceiptNumber
	p.ReceiptKey = settled.ReceiptKey

	path := filepath.Join(dir, fileName(p))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}

// Format: YYYYMM_Tenant_Name_RECEIPTNUMBER.pdf
func fileName(p *payment.Payment) string {
	name := p.TenantName
	if name == "" {
		name = p.TenantRef
	}

	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, name)

	return fmt.Sprintf("%s_%s_%s.pdf", p.DueDate.Format("200601"), safe, p.ReceiptNumber)
}

// GenerateSummary creates an email-ready listing of the exported items.
func (s *Service) GenerateSummary(items []Item) string {
	var sb strings.Builder

	var total int64

	for _, item := range items {
		p := item.Payment

		file := "Pas de quittance"
		if item.FilePath != "" {
			file = filepath.Base(item.FilePath)
			total += p.PaidAmount
		}

		fmt.Fprintf(&sb, "* %s | %s | %s | %s | %s | %s\n",
			p.DueDate.Format("2006-01"), p.TenantName, p.PropertyRef, money.Format(p.PaidAmount), p.Status, file)
	}

	fmt.Fprintf(&sb, "\nTotal encaissé : %s\n", money.Format(total))

	return sb.String()
}
