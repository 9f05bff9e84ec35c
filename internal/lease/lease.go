package lease

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of lease. It decides which roles must sign.
type Kind string

const (
	KindIndividual Kind = "individual"
	KindColocation Kind = "colocation"
)

// Role is the capacity in which a party signs a lease.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleTenant   Role = "tenant"
	RoleRoommate Role = "roommate"
)

// Status represents the lifecycle state of a lease.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusAwaitingSignatures Status = "awaiting_signatures"
	StatusSigned             Status = "signed"
	StatusExpired            Status = "expired"
)

var (
	ErrNotFound               = errors.New("lease not found")
	ErrInvalidContract        = errors.New("invalid contract identifier")
	ErrInvalidLease           = errors.New("invalid lease")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrRoleNotRequired        = errors.New("role is not a signatory of this lease")
	ErrAlreadySigned          = errors.New("role has already signed this lease")
	ErrInvalidStateTransition = errors.New("invalid lease state transition")
	ErrNoDocument             = errors.New("lease has no document")
)

// requiredRoles lists the signatories per kind. A colocation agreement binds
// the primary tenant and the roommate joining the household.
var requiredRoles = map[Kind][]Role{
	KindIndividual: {RoleOwner, RoleTenant},
	KindColocation: {RoleTenant, RoleRoommate},
}

// RequiredRoles returns the roles that must sign a lease of the given kind.
func RequiredRoles(k Kind) []Role {
	return requiredRoles[k]
}

func (k Kind) Valid() bool {
	_, ok := requiredRoles[k]
	return ok
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleTenant, RoleRoommate:
		return true
	}

	return false
}

// Signature is one party's consent capture. It is never modified once stored.
type Signature struct {
	Role        Role
	SignerName  string
	SignerEmail string
	Image       []byte
	ImageType   string // image/png or image/jpeg
	SignedAt    time.Time
}

// Lease is a rental agreement between the owner side and the tenant side.
type Lease struct {
	ID           uuid.UUID
	Title        string
	Kind         Kind
	PropertyRef  string
	TenantRef    string
	TenantName   string
	Rent         int64 // Monthly rent in cents
	Charges      int64 // Monthly charges in cents
	Deposit      int64
	StartDate    time.Time
	EndDate      *time.Time
	Jurisdiction string
	Status       Status
	Signatures   map[Role]*Signature
	DocumentKey  string
	SignedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// ExpectedAmount is what the tenant owes each month: rent plus charges.
func (l *Lease) ExpectedAmount() int64 {
	return l.Rent + l.Charges
}

func (l *Lease) Requires(r Role) bool {
	for _, req := range RequiredRoles(l.Kind) {
		if req == r {
			return true
		}
	}

	return false
}

func (l *Lease) HasSigned(r Role) bool {
	sig, ok := l.Signatures[r]
	return ok && sig != nil
}

// AllSignaturesComplete reports whether every role required by the lease kind has signed.
func (l *Lease) AllSignaturesComplete() bool {
	roles := RequiredRoles(l.Kind)
	if len(roles) == 0 {
		return false
	}

	for _, r := range roles {
		if !l.HasSigned(r) {
			return false
		}
	}

	return true
}

// MissingRoles lists required roles without a signature, in signing order.
func (l *Lease) MissingRoles() []Role {
	var missing []Role

	for _, r := range RequiredRoles(l.Kind) {
		if !l.HasSigned(r) {
			missing = append(missing, r)
		}
	}

	return missing
}

var transitions = map[Status][]Status{
	StatusDraft:              {StatusAwaitingSignatures},
	StatusAwaitingSignatures: {StatusSigned},
	StatusSigned:             {StatusExpired},
}

// CanTransition reports whether a lease may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}
