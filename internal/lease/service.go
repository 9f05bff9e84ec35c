package lease

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/loyer/internal/notify"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=lease
type Repository interface {
	CreateLease(ctx context.Context, l *Lease) error
	GetLease(ctx context.Context, id uuid.UUID) (*Lease, error)
	ListLeases(ctx context.Context, filter ListFilter) ([]*Lease, error)
	FindActive(ctx context.Context, tenantRef, propertyRef string) (*Lease, error)
	SetDocument(ctx context.Context, id uuid.UUID, documentKey string) error
	ExpireEnded(ctx context.Context, before time.Time) (int64, error)

	BeginSigning(ctx context.Context, id uuid.UUID) (SigningTx, error)
}

// SigningTx holds a lock on one lease row until Commit or Rollback, so the
// read-check-write of a signature capture cannot interleave with another one.
type SigningTx interface {
	Lease() *Lease
	AddSignature(ctx context.Context, leaseID uuid.UUID, sig *Signature) error
	UpdateStatus(ctx context.Context, leaseID uuid.UUID, status Status, signedAt *time.Time) error
	Commit() error
	Rollback() error
}

type Documents interface {
	GenerateContract(ctx context.Context, l *Lease) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

type Service struct {
	repo      Repository
	documents Documents
	notifier  Notifier
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for signature and expiry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, documents Documents, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		documents: documents,
		notifier:  notifier,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	Title        string
	Kind         Kind
	PropertyRef  string
	TenantRef    string
	TenantName   string
	Rent         int64
	Charges      int64
	Deposit      int64
	StartDate    time.Time
	EndDate      *time.Time
	Jurisdiction string
}

func (p CreateParams) validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidLease)
	case !p.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLease, p.Kind)
	case strings.TrimSpace(p.PropertyRef) == "":
		return fmt.Errorf("%w: property is required", ErrInvalidLease)
	case strings.TrimSpace(p.TenantRef) == "":
		return fmt.Errorf("%w: tenant is required", ErrInvalidLease)
	case p.Rent <= 0:
		return fmt.Errorf("%w: rent must be positive", ErrInvalidLease)
	case p.Charges < 0 || p.Deposit < 0:
		return fmt.Errorf("%w: charges and deposit cannot be negative", ErrInvalidLease)
	case p.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidLease)
	case p.EndDate != nil && !p.EndDate.After(p.StartDate):
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidLease)
	}

	return nil
}

type ListFilter struct {
	Status      *Status
	PropertyRef string
	TenantRef   string
}

// Create registers a new lease in draft, ready to collect signatures.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Lease, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	l := &Lease{
		Title:        strings.TrimSpace(params.Title),
		Kind:         params.Kind,
		PropertyRef:  strings.TrimSpace(params.PropertyRef),
		TenantRef:    strings.TrimSpace(params.TenantRef),
		TenantName:   strings.TrimSpace(params.TenantName),
		Rent:         params.Rent,
		Charges:      params.Charges,
		Deposit:      params.Deposit,
		StartDate:    params.StartDate,
		EndDate:      params.EndDate,
		Jurisdiction: params.Jurisdiction,
		Status:       StatusDraft,
		Signatures:   map[Role]*Signature{},
	}
	if err := s.repo.CreateLease(ctx, l); err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindLeaseCreated,
		SubjectID: l.ID,
		Recipient: notify.RecipientOwner,
		Message:   fmt.Sprintf("Bail %q créé, en attente de signatures", l.Title),
		Data: map[string]any{
			"tenant_ref":   l.TenantRef,
			"property_ref": l.PropertyRef,
		},
	})

	return l, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lease, error) {
	return s.repo.GetLease(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Lease, error) {
	return s.repo.ListLeases(ctx, filter)
}

// ActiveLease returns the most recent signed lease binding the tenant to the property.
func (s *Service) ActiveLease(ctx context.Context, tenantRef, propertyRef string) (*Lease, error) {
	return s.repo.FindActive(ctx, tenantRef, propertyRef)
}

// ParseID validates a lease identifier coming from outside the service.
func ParseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: identifier is empty", ErrInvalidContract)
	}

	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidContract, raw)
	}

	return id, nil
}

type SignParams struct {
	Role        Role
	SignerName  string
	SignerEmail string
	Image       []byte
}

// imageType sniffs the drawn signature. Only formats the PDF renderer can embed are accepted.
func (p SignParams) imageType() (string, error) {
	if len(p.Image) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrInvalidSignature)
	}

	ct := http.DetectContentType(p.Image)
	if ct != "image/png" && ct != "image/jpeg" {
		return "", fmt.Errorf("%w: unsupported image type %s", ErrInvalidSignature, ct)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(p.Image)); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return ct, nil
}

func (p SignParams) validate() (string, error) {
	if !p.Role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrRoleNotRequired, p.Role)
	}

	if strings.TrimSpace(p.SignerName) == "" {
		return "", fmt.Errorf("%w: signer name is required", ErrInvalidSignature)
	}

	return p.imageType()
}

type SignResult struct {
	Lease                 *Lease
	AllSignaturesComplete bool
	// Finalized is true only for the capture that moved the lease to signed.
	Finalized bool
}

// RecordSignature stores one party's signature and advances the lease:
// draft -> awaiting_signatures on the first signature, awaiting_signatures -> signed
// once every required role has signed. The capture that completes the lease
// triggers the contract document and the completion notification.
func (s *Service) RecordSignature(ctx context.Context, leaseID string, params SignParams) (*SignResult, error) {
	id, err := ParseID(leaseID)
	if err != nil {
		return nil, err
	}

	imageType, err := params.validate()
	if err != nil {
		return nil, err
	}

	stx, err := s.repo.BeginSigning(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: lease %s does not exist", ErrInvalidContract, id)
		}

		return nil, fmt.Errorf("begin signing: %w", err)
	}
	defer stx.Rollback()

	l := stx.Lease()

	if l.Status != StatusDraft && l.Status != StatusAwaitingSignatures {
		return nil, fmt.Errorf("%w: lease is %s", ErrInvalidStateTransition, l.Status)
	}

	if !l.Requires(params.Role) {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotRequired, params.Role)
	}

	if l.HasSigned(params.Role) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySigned, params.Role)
	}

	sig := &Signature{
		Role:        params.Role,
		SignerName:  strings.TrimSpace(params.SignerName),
		SignerEmail: strings.TrimSpace(params.SignerEmail),
		Image:       params.Image,
		ImageType:   imageType,
		SignedAt:    s.now(),
	}
	if err := stx.AddSignature(ctx, l.ID, sig); err != nil {
		return nil, fmt.Errorf("adding signature: %w", err)
	}

	if l.Signatures == nil {
		l.Signatures = map[Role]*Signature{}
	}

	l.Signatures[sig.Role] = sig

	if l.Status == StatusDraft {
		if err := s.transition(ctx, stx, l, StatusAwaitingSignatures); err != nil {
			return nil, err
		}
	}

	finalized := false

	if l.AllSignaturesComplete() {
		if err := s.transition(ctx, stx, l, StatusSigned); err != nil {
			return nil, err
		}

		finalized = true
	}

	if err := stx.Commit(); err != nil {
		return nil, fmt.Errorf("commit signature: %w", err)
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindSignatureRecorded,
		SubjectID: l.ID,
		Recipient: notify.RecipientOwner,
		Message:   fmt.Sprintf("%s a signé le bail %q", sig.SignerName, l.Title),
		Data: map[string]any{
			"role":          string(sig.Role),
			"missing_roles": l.MissingRoles(),
		},
	})

	if finalized {
		s.finalize(ctx, l)
	}

	return &SignResult{
		Lease:                 l,
		AllSignaturesComplete: l.AllSignaturesComplete(),
		Finalized:             finalized,
	}, nil
}

func (s *Service) transition(ctx context.Context, stx SigningTx, l *Lease, to Status) error {
	if !CanTransition(l.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, l.Status, to)
	}

	var signedAt *time.Time

	if to == StatusSigned {
		now := s.now()
		signedAt = &now
	}

	if err := stx.UpdateStatus(ctx, l.ID, to, signedAt); err != nil {
		return fmt.Errorf("updating lease status: %w", err)
	}

	l.Status = to
	if signedAt != nil {
		l.SignedAt = signedAt
	}

	return nil
}

// finalize runs the side effects of a fully executed lease. A document failure is
// logged and left for RegenerateDocument: the signatures are already committed.
func (s *Service) finalize(ctx context.Context, l *Lease) {
	if err := s.attachDocument(ctx, l); err != nil {
		slog.Error("failed to generate lease document", "lease_id", l.ID, "error", err)
	}

	s.notify(ctx, notify.Event{
		Kind:      notify.KindLeaseSigned,
		SubjectID: l.ID,
		Recipient: notify.RecipientOwner,
		Message:   fmt.Sprintf("Le bail %q est signé par toutes les parties", l.Title),
		Data: map[string]any{
			"tenant_ref":   l.TenantRef,
			"property_ref": l.PropertyRef,
			"document_key": l.DocumentKey,
		},
	})
}

func (s *Service) attachDocument(ctx context.Context, l *Lease) error {
	key, err := s.documents.GenerateContract(ctx, l)
	if err != nil {
		return fmt.Errorf("rendering contract: %w", err)
	}

	if err := s.repo.SetDocument(ctx, l.ID, key); err != nil {
		return fmt.Errorf("saving document key: %w", err)
	}

	l.DocumentKey = key

	return nil
}

// RegenerateDocument renders the contract of an executed lease again.
func (s *Service) RegenerateDocument(ctx context.Context, id uuid.UUID) (*Lease, error) {
	l, err := s.repo.GetLease(ctx, id)
	if err != nil {
		return nil, err
	}

	if l.Status != StatusSigned && l.Status != StatusExpired {
		return nil, fmt.Errorf("%w: lease is %s", ErrInvalidStateTransition, l.Status)
	}

	if err := s.attachDocument(ctx, l); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *Service) OpenDocument(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	l, err := s.repo.GetLease(ctx, id)
	if err != nil {
		return nil, err
	}

	if l.DocumentKey == "" {
		return nil, ErrNoDocument
	}

	return s.documents.Open(ctx, l.DocumentKey)
}

// ExpireEnded marks signed leases whose end date has passed as expired.
func (s *Service) ExpireEnded(ctx context.Context) (int64, error) {
	now := s.now()

	n, err := s.repo.ExpireEnded(ctx, now)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.notify(ctx, notify.Event{
			Kind:       notify.KindLeasesExpired,
			Recipient:  notify.RecipientOwner,
			Message:    fmt.Sprintf("%d bail(s) arrivé(s) à échéance", n),
			Data:       map[string]any{"count": n},
			OccurredAt: now,
		})
	}

	return n, nil
}

func (s *Service) notify(ctx context.Context, e notify.Event) {
	if s.notifier == nil {
		return
	}

	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}

	if err := s.notifier.Notify(ctx, e); err != nil {
		slog.Warn("failed to send notification", "kind", e.Kind, "subject_id", e.SubjectID, "error", err)
	}
}
