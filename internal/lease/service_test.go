package lease_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
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
)

var pngImage = func() []byte {
	var buf bytes.Buffer

	img := image.NewGray(image.Rect(0, 0, 4, 2))
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}

	return buf.Bytes()
}()

var (
	fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	errStore = errors.New("connection reset")
)

type mocks struct {
	repo     *lease.MockRepository
	stx      *lease.MockSigningTx
	docs     *lease.MockDocuments
	notifier *lease.MockNotifier
}

func newService(t *testing.T) (*lease.Service, mocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := mocks{
		repo:     lease.NewMockRepository(ctrl),
		stx:      lease.NewMockSigningTx(ctrl),
		docs:     lease.NewMockDocuments(ctrl),
		notifier: lease.NewMockNotifier(ctrl),
	}

	svc := lease.NewService(m.repo, m.docs, m.notifier, lease.WithClock(func() time.Time { return fixedNow }))

	return svc, m
}

func draftLease(kind lease.Kind) *lease.Lease {
	return &lease.Lease{
		ID:          uuid.New(),
		Title:       "T2 rue des Lilas",
		Kind:        kind,
		PropertyRef: "lilas-t2",
		TenantRef:   "tenant-42",
		Rent:        75000,
		Charges:     5000,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:      lease.StatusDraft,
		Signatures:  map[lease.Role]*lease.Signature{},
	}
}

func TestService_Create(t *testing.T) {
	type args struct {
		params lease.CreateParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m mocks)
		wantErr   error
	}

	valid := lease.CreateParams{
		Title:       "Studio centre",
		Kind:        lease.KindIndividual,
		PropertyRef: "studio-1",
		TenantRef:   "tenant-1",
		Rent:        50000,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{params: valid},
			setupMock: func(m mocks) {
				m.repo.EXPECT().
					CreateLease(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, l *lease.Lease) error {
						l.ID = uuid.New()
						return nil
					})
				m.notifier.EXPECT().
					Notify(gomock.Any(), gomock.Cond(func(e notify.Event) bool {
						return e.Kind == notify.KindLeaseCreated && e.Recipient == notify.RecipientOwner && e.SubjectID != uuid.Nil
					})).
					Return(nil)
			},
		},
		{
			name: "StoreError",
			args: args{params: valid},
			setupMock: func(m mocks) {
				m.repo.EXPECT().CreateLease(gomock.Any(), gomock.Any()).Return(errStore)
			},
			wantErr: errStore,
		},
		{
			name: "UnknownKind",
			args: args{params: func() lease.CreateParams {
				p := valid
				p.Kind = "sublet"

				return p
			}()},
			wantErr: lease.ErrInvalidLease,
		},
		{
			name: "ZeroRent",
			args: args{params: func() lease.CreateParams {
				p := valid
				p.Rent = 0

				return p
			}()},
			wantErr: lease.ErrInvalidLease,
		},
		{
			name: "EndBeforeStart",
			args: args{params: func() lease.CreateParams {
				p := valid
				p.EndDate = new(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC))

				return p
			}()},
			wantErr: lease.ErrInvalidLease,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			got, err := svc.Create(context.Background(), tt.args.params)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, lease.StatusDraft, got.Status)
			assert.NotEqual(t, uuid.Nil, got.ID)
		})
	}
}

func TestService_RecordSignature_IndividualLeaseFlow(t *testing.T) {
	svc, m := newService(t)
	l := draftLease(lease.KindIndividual)

	// Owner signs first: draft -> awaiting_signatures.
	m.repo.EXPECT().BeginSigning(gomock.Any(), l.ID).Return(m.stx, nil)
	m.stx.EXPECT().Lease().Return(l)
	m.stx.EXPECT().AddSignature(gomock.Any(), l.ID, gomock.Any()).Return(nil)
	m.stx.EXPECT().UpdateStatus(gomock.Any(), l.ID, lease.StatusAwaitingSignatures, nil).Return(nil)
	m.stx.EXPECT().Commit().Return(nil)
	m.stx.EXPECT().Rollback().Return(nil)
	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			assert.Equal(t, notify.KindSignatureRecorded, e.Kind)
			assert.Equal(t, fixedNow, e.OccurredAt)

			return nil
		})

	res, err := svc.RecordSignature(context.Background(), l.ID.String(), lease.SignParams{
		Role:       lease.RoleOwner,
		SignerName: "Marie Durand",
		Image:      pngImage,
	})
	require.NoError(t, err)
	assert.False(t, res.AllSignaturesComplete)
	assert.False(t, res.Finalized)
	assert.Equal(t, lease.StatusAwaitingSignatures, res.Lease.Status)
	assert.Equal(t, "image/png", res.Lease.Signatures[lease.RoleOwner].ImageType)
	assert.Equal(t, []lease.Role{lease.RoleTenant}, res.Lease.MissingRoles())

	// Tenant signs: awaiting_signatures -> signed, contract rendered once.
	m.repo.EXPECT().BeginSigning(gomock.Any(), l.ID).Return(m.stx, nil)
	m.stx.EXPECT().Lease().Return(l)
	m.stx.EXPECT().AddSignature(gomock.Any(), l.ID, gomock.Any()).Return(nil)
	m.stx.EXPECT().UpdateStatus(gomock.Any(), l.ID, lease.StatusSigned, &fixedNow).Return(nil)
	m.stx.EXPECT().Commit().Return(nil)
	m.stx.EXPECT().Rollback().Return(nil)
	m.docs.EXPECT().GenerateContract(gomock.Any(), l).Return("leases/"+l.ID.String()+".pdf", nil)
	m.repo.EXPECT().SetDocument(gomock.Any(), l.ID, "leases/"+l.ID.String()+".pdf").Return(nil)

	var kinds []notify.Kind

	m.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e notify.Event) error {
			kinds = append(kinds, e.Kind)
			return nil
		}).
		Times(2)

	res, err = svc.RecordSignature(context.Background(), l.ID.String(), lease.SignParams{
		Role:       lease.RoleTenant,
		SignerName: "Paul Martin",
		Image:      pngImage,
	})
	require.NoError(t, err)
	assert.True(t, res.AllSignaturesComplete)
	assert.True(t, res.Finalized)
	assert.Equal(t, lease.StatusSigned, res.Lease.Status)
	assert.Equal(t, &fixedNow, res.Lease.SignedAt)
	assert.Equal(t, "leases/"+l.ID.String()+".pdf", res.Lease.DocumentKey)
	assert.Equal(t, []notify.Kind{notify.KindSignatureRecorded, notify.KindLeaseSigned}, kinds)
}

func TestService_RecordSignature_Rejections(t *testing.T) {
	type testCase struct {
		name    string
		lease   func() *lease.Lease
		params  lease.SignParams
		wantErr error
	}

	ownerSigned := func() *lease.Lease {
		l := draftLease(lease.KindIndividual)
		l.Status = lease.StatusAwaitingSignatures
		l.Signatures[lease.RoleOwner] = &lease.Signature{Role: lease.RoleOwner}

		return l
	}

	tests := []testCase{
		{
			name:    "AlreadySigned",
			lease:   ownerSigned,
			params:  lease.SignParams{Role: lease.RoleOwner, SignerName: "Marie", Image: pngImage},
			wantErr: lease.ErrAlreadySigned,
		},
		{
			name:    "RoleNotRequired",
			lease:   func() *lease.Lease { return draftLease(lease.KindIndividual) },
			params:  lease.SignParams{Role: lease.RoleRoommate, SignerName: "Léa", Image: pngImage},
			wantErr: lease.ErrRoleNotRequired,
		},
		{
			name:    "OwnerOnColocation",
			lease:   func() *lease.Lease { return draftLease(lease.KindColocation) },
			params:  lease.SignParams{Role: lease.RoleOwner, SignerName: "Marie", Image: pngImage},
			wantErr: lease.ErrRoleNotRequired,
		},
		{
			name: "AlreadyExecuted",
			lease: func() *lease.Lease {
				l := draftLease(lease.KindIndividual)
				l.Status = lease.StatusSigned

				return l
			},
			params:  lease.SignParams{Role: lease.RoleTenant, SignerName: "Paul", Image: pngImage},
			wantErr: lease.ErrInvalidStateTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			l := tt.lease()

			m.repo.EXPECT().BeginSigning(gomock.Any(), l.ID).Return(m.stx, nil)
			m.stx.EXPECT().Lease().Return(l)
			m.stx.EXPECT().Rollback().Return(nil)

			res, err := svc.RecordSignature(context.Background(), l.ID.String(), tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
		})
	}
}

func TestService_RecordSignature_InvalidInput(t *testing.T) {
	type testCase struct {
		name    string
		leaseID string
		params  lease.SignParams
		wantErr error
	}

	valid := lease.SignParams{Role: lease.RoleTenant, SignerName: "Paul", Image: pngImage}

	tests := []testCase{
		{name: "EmptyID", leaseID: "", params: valid, wantErr: lease.ErrInvalidContract},
		{name: "MalformedID", leaseID: "lease-12", params: valid, wantErr: lease.ErrInvalidContract},
		{name: "NilID", leaseID: uuid.Nil.String(), params: valid, wantErr: lease.ErrInvalidContract},
		{
			name:    "EmptyImage",
			leaseID: uuid.NewString(),
			params:  lease.SignParams{Role: lease.RoleTenant, SignerName: "Paul"},
			wantErr: lease.ErrInvalidSignature,
		},
		{
			name:    "NotAnImage",
			leaseID: uuid.NewString(),
			params:  lease.SignParams{Role: lease.RoleTenant, SignerName: "Paul", Image: []byte("%PDF-1.4")},
			wantErr: lease.ErrInvalidSignature,
		},
		{
			name:    "TruncatedPNG",
			leaseID: uuid.NewString(),
			params:  lease.SignParams{Role: lease.RoleTenant, SignerName: "Paul", Image: pngImage[:12]},
			wantErr: lease.ErrInvalidSignature,
		},
		{
			name:    "MissingSignerName",
			leaseID: uuid.NewString(),
			params:  lease.SignParams{Role: lease.RoleTenant, Image: pngImage},
			wantErr: lease.ErrInvalidSignature,
		},
		{
			name:    "UnknownRole",
			leaseID: uuid.NewString(),
			params:  lease.SignParams{Role: "guarantor", SignerName: "Paul", Image: pngImage},
			wantErr: lease.ErrRoleNotRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)

			_, err := svc.RecordSignature(context.Background(), tt.leaseID, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RecordSignature_UnknownLease(t *testing.T) {
	svc, m := newService(t)
	id := uuid.New()

	m.repo.EXPECT().BeginSigning(gomock.Any(), id).Return(nil, lease.ErrNotFound)

	_, err := svc.RecordSignature(context.Background(), id.String(), lease.SignParams{
		Role:       lease.RoleTenant,
		SignerName: "Paul",
		Image:      pngImage,
	})
	assert.ErrorIs(t, err, lease.ErrInvalidContract)
}

func TestService_RecordSignature_DocumentFailureKeepsSignedLease(t *testing.T) {
	svc, m := newService(t)
	l := draftLease(lease.KindColocation)
	l.Status = lease.StatusAwaitingSignatures
	l.Signatures[lease.RoleTenant] = &lease.Signature{Role: lease.RoleTenant}

	m.repo.EXPECT().BeginSigning(gomock.Any(), l.ID).Return(m.stx, nil)
	m.stx.EXPECT().Lease().Return(l)
	m.stx.EXPECT().AddSignature(gomock.Any(), l.ID, gomock.Any()).Return(nil)
	m.stx.EXPECT().UpdateStatus(gomock.Any(), l.ID, lease.StatusSigned, gomock.Any()).Return(nil)
	m.stx.EXPECT().Commit().Return(nil)
	m.stx.EXPECT().Rollback().Return(nil)
	m.docs.EXPECT().GenerateContract(gomock.Any(), l).Return("", errors.New("disk full"))
	m.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	res, err := svc.RecordSignature(context.Background(), l.ID.String(), lease.SignParams{
		Role:       lease.RoleRoommate,
		SignerName: "Léa",
		Image:      pngImage,
	})
	require.NoError(t, err)
	assert.True(t, res.Finalized)
	assert.Equal(t, lease.StatusSigned, res.Lease.Status)
	assert.Empty(t, res.Lease.DocumentKey)
}

func TestService_RecordSignature_CommitFailure(t *testing.T) {
	svc, m := newService(t)
	l := draftLease(lease.KindIndividual)

	m.repo.EXPECT().BeginSigning(gomock.Any(), l.ID).Return(m.stx, nil)
	m.stx.EXPECT().Lease().Return(l)
	m.stx.EXPECT().AddSignature(gomock.Any(), l.ID, gomock.Any()).Return(nil)
	m.stx.EXPECT().UpdateStatus(gomock.Any(), l.ID, lease.StatusAwaitingSignatures, nil).Return(nil)
	m.stx.EXPECT().Commit().Return(errors.New("connection reset"))
	m.stx.EXPECT().Rollback().Return(nil)

	_, err := svc.RecordSignature(context.Background(), l.ID.String(), lease.SignParams{
		Role:       lease.RoleTenant,
		SignerName: "Paul",
		Image:      pngImage,
	})
	assert.Error(t, err)
}

func TestService_RegenerateDocument(t *testing.T) {
	t.Run("Signed", func(t *testing.T) {
		svc, m := newService(t)
		l := draftLease(lease.KindIndividual)
		l.Status = lease.StatusSigned

		m.repo.EXPECT().GetLease(gomock.Any(), l.ID).Return(l, nil)
		m.docs.EXPECT().GenerateContract(gomock.Any(), l).Return("leases/x.pdf", nil)
		m.repo.EXPECT().SetDocument(gomock.Any(), l.ID, "leases/x.pdf").Return(nil)

		got, err := svc.RegenerateDocument(context.Background(), l.ID)
		require.NoError(t, err)
		assert.Equal(t, "leases/x.pdf", got.DocumentKey)
	})

	t.Run("Draft", func(t *testing.T) {
		svc, m := newService(t)
		l := draftLease(lease.KindIndividual)

		m.repo.EXPECT().GetLease(gomock.Any(), l.ID).Return(l, nil)

		_, err := svc.RegenerateDocument(context.Background(), l.ID)
		assert.ErrorIs(t, err, lease.ErrInvalidStateTransition)
	})
}

func TestService_OpenDocument(t *testing.T) {
	t.Run("NoDocument", func(t *testing.T) {
		svc, m := newService(t)
		l := draftLease(lease.KindIndividual)

		m.repo.EXPECT().GetLease(gomock.Any(), l.ID).Return(l, nil)

		_, err := svc.OpenDocument(context.Background(), l.ID)
		assert.ErrorIs(t, err, lease.ErrNoDocument)
	})

	t.Run("Stored", func(t *testing.T) {
		svc, m := newService(t)
		l := draftLease(lease.KindIndividual)
		l.DocumentKey = "leases/x.pdf"

		m.repo.EXPECT().GetLease(gomock.Any(), l.ID).Return(l, nil)
		m.docs.EXPECT().Open(gomock.Any(), "leases/x.pdf").Return(io.NopCloser(strings.NewReader("%PDF")), nil)

		rc, err := svc.OpenDocument(context.Background(), l.ID)
		require.NoError(t, err)

		defer rc.Close()

		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(body))
	})
}

func TestService_ExpireEnded(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(m mocks)
		want      int64
		wantErr   error
	}

	tests := []testCase{
		{
			name: "NotifiesExpired",
			setupMock: func(m mocks) {
				m.repo.EXPECT().ExpireEnded(gomock.Any(), fixedNow).Return(int64(3), nil)
				m.notifier.EXPECT().
					Notify(gomock.Any(), gomock.Cond(func(e notify.Event) bool {
						return e.Kind == notify.KindLeasesExpired && e.Data["count"] == int64(3) && e.OccurredAt.Equal(fixedNow)
					})).
					Return(nil)
			},
			want: 3,
		},
		{
			name: "NothingToExpire",
			setupMock: func(m mocks) {
				m.repo.EXPECT().ExpireEnded(gomock.Any(), fixedNow).Return(int64(0), nil)
			},
		},
		{
			name: "StoreError",
			setupMock: func(m mocks) {
				m.repo.EXPECT().ExpireEnded(gomock.Any(), fixedNow).Return(int64(0), errStore)
			},
			wantErr: errStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			n, err := svc.ExpireEnded(context.Background())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestLease_AllSignaturesComplete(t *testing.T) {
	type testCase struct {
		name   string
		kind   lease.Kind
		signed []lease.Role
		want   bool
	}

	tests := []testCase{
		{name: "IndividualNone", kind: lease.KindIndividual, want: false},
		{name: "IndividualOwnerOnly", kind: lease.KindIndividual, signed: []lease.Role{lease.RoleOwner}, want: false},
		{name: "IndividualTenantOnly", kind: lease.KindIndividual, signed: []lease.Role{lease.RoleTenant}, want: false},
		{name: "IndividualBoth", kind: lease.KindIndividual, signed: []lease.Role{lease.RoleOwner, lease.RoleTenant}, want: true},
		{name: "ColocationTenantOnly", kind: lease.KindColocation, signed: []lease.Role{lease.RoleTenant}, want: false},
		{name: "ColocationBoth", kind: lease.KindColocation, signed: []lease.Role{lease.RoleTenant, lease.RoleRoommate}, want: true},
		{name: "UnknownKind", kind: "sublet", signed: []lease.Role{lease.RoleOwner, lease.RoleTenant}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &lease.Lease{Kind: tt.kind, Signatures: map[lease.Role]*lease.Signature{}}
			for _, r := range tt.signed {
				l.Signatures[r] = &lease.Signature{Role: r}
			}

			assert.Equal(t, tt.want, l.AllSignaturesComplete())
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, lease.CanTransition(lease.StatusDraft, lease.StatusAwaitingSignatures))
	assert.True(t, lease.CanTransition(lease.StatusAwaitingSignatures, lease.StatusSigned))
	assert.True(t, lease.CanTransition(lease.StatusSigned, lease.StatusExpired))
	assert.False(t, lease.CanTransition(lease.StatusDraft, lease.StatusSigned))
	assert.False(t, lease.CanTransition(lease.StatusSigned, lease.StatusAwaitingSignatures))
	assert.False(t, lease.CanTransition(lease.StatusExpired, lease.StatusSigned))
}
