package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=settings
type Repository interface {
	Load(ctx context.Context, key string) (data []byte, version int, updatedAt time.Time, err error)

	// Store writes data if the stored version still equals expectedVersion
	// (0 meaning "never saved") and returns the new version.
	Store(ctx context.Context, key string, data []byte, expectedVersion int) (int, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func (s *Service) Get(ctx context.Context) (*Config, error) {
	data, version, updatedAt, err := s.repo.Load(ctx, Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Default(), nil
		}

		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding quick actions: %w", err)
	}

	cfg.Version = version
	cfg.UpdatedAt = &updatedAt

	return &cfg, nil
}

// Save replaces the configuration. expectedVersion is the version the caller
// edited; a stale version fails with ErrVersionConflict.
func (s *Service) Save(ctx context.Context, cfg Config, expectedVersion int) (*Config, error) {
	if err := s.check(cfg); err != nil {
		return nil, err
	}

	cfg.Version = 0
	cfg.UpdatedAt = nil

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding quick actions: %w", err)
	}

	version, err := s.repo.Store(ctx, Key, data, expectedVersion)
	if err != nil {
		return nil, err
	}

	cfg.Version = version

	return &cfg, nil
}

func (s *Service) check(cfg Config) error {
	switch cfg.Style {
	case StyleFilled, StyleOutlined, StyleText:
	default:
		return fmt.Errorf("%w: unknown style %q", ErrInvalidConfig, cfg.Style)
	}

	if len(cfg.Actions) > maxActions {
		return fmt.Errorf("%w: at most %d actions", ErrInvalidConfig, maxActions)
	}

	seen := make(map[string]bool, len(cfg.Actions))

	for _, a := range cfg.Actions {
		if err := s.validate.Struct(a); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		if seen[a.ID] {
			return fmt.Errorf("%w: duplicate action id %q", ErrInvalidConfig, a.ID)
		}

		seen[a.ID] = true

		if a.Action == nil {
			return fmt.Errorf("%w: action %q does nothing", ErrInvalidConfig, a.ID)
		}

		if err := a.Action.validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}
