package matching

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrInvalidMapping = errors.New("pattern and tenant are required")

// Mapping ties a fragment of a bank statement label to the tenant who pays with it.
type Mapping struct {
	ID         int64
	RawPattern string
	TenantRef  string
	CreatedAt  time.Time
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	FindTenant(ctx context.Context, label string) (string, error)
	CreateMapping(ctx context.Context, rawPattern, tenantRef string) error
	ListMappings(ctx context.Context) ([]Mapping, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns the tenant whose learned pattern appears in the label.
// The longest pattern wins. Returns empty string if no match found.
func (s *Service) Suggest(ctx context.Context, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", nil
	}

	return s.repo.FindTenant(ctx, label)
}

// Learn remembers that statement labels containing rawPattern come from tenantRef.
func (s *Service) Learn(ctx context.Context, rawPattern, tenantRef string) error {
	rawPattern = strings.TrimSpace(rawPattern)
	tenantRef = strings.TrimSpace(tenantRef)

	if rawPattern == "" || tenantRef == "" {
		return ErrInvalidMapping
	}

	return s.repo.CreateMapping(ctx, rawPattern, tenantRef)
}

func (s *Service) Mappings(ctx context.Context) ([]Mapping, error) {
	return s.repo.ListMappings(ctx)
}
