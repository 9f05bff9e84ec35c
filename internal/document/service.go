// Package document renders lease contracts and rent receipts to PDF and keeps them in storage.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

const contentTypePDF = "application/pdf"

var ErrMissingReceiptNumber = errors.New("receipt number is required")

type Service struct {
	storage  Storage
	landlord Landlord
}

func NewService(storage Storage, landlord Landlord) *Service {
	return &Service{storage: storage, landlord: landlord}
}

func ContractKey(id uuid.UUID) string {
	return "leases/" + id.String() + ".pdf"
}

func ReceiptKey(p *payment.Payment) string {
	return fmt.Sprintf("receipts/%d/%s.pdf", p.DueDate.Year(), p.ReceiptNumber)
}

// GenerateContract renders the lease and stores it, returning the storage key.
func (s *Service) GenerateContract(ctx context.Context, l *lease.Lease) (string, error) {
	var buf bytes.Buffer
	if err := RenderContract(&buf, l, s.landlord); err != nil {
		return "", fmt.Errorf("rendering contract: %w", err)
	}

	key := ContractKey(l.ID)
	if err := s.storage.Put(ctx, key, &buf, contentTypePDF); err != nil {
		return "", err
	}

	return key, nil
}

// GenerateReceipt renders the receipt of a settled payment and stores it.
func (s *Service) GenerateReceipt(ctx context.Context, p *payment.Payment) (string, error) {
	if p.ReceiptNumber == "" {
		return "", ErrMissingReceiptNumber
	}

	var buf bytes.Buffer
	if err := RenderReceipt(&buf, p, s.landlord); err != nil {
		return "", fmt.Errorf("rendering receipt: %w", err)
	}

	key := ReceiptKey(p)
	if err := s.storage.Put(ctx, key, &buf, contentTypePDF); err != nil {
		return "", err
	}

	return key, nil
}

func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, key)
}

type linker interface {
	URL(ctx context.Context, key string) (string, error)
}

// DownloadURL returns a direct link to the document when the storage backend can
// issue one. ok is false for backends that can only stream.
func (s *Service) DownloadURL(ctx context.Context, key string) (url string, ok bool, err error) {
	l, ok := s.storage.(linker)
	if !ok {
		return "", false, nil
	}

	url, err = l.URL(ctx, key)
	if err != nil {
		return "", false, err
	}

	return url, true, nil
}
