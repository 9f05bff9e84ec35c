package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodCheck        Method = "check"
	MethodDirectDebit  Method = "direct_debit"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodCard, MethodCheck, MethodDirectDebit:
		return true
	}

	return false
}

// Status represents where a rent payment stands.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPendingValidation Status = "pending_validation"
	StatusPaid              Status = "paid"
	StatusPartial           Status = "partial"
	StatusOverpaid          Status = "overpaid"
	StatusLate              Status = "late"
	StatusRejected          Status = "rejected"
)

// ReceiptEligible reports whether a payment in this status gets a receipt document.
func (s Status) ReceiptEligible() bool {
	switch s {
	case StatusPaid, StatusPartial, StatusOverpaid:
		return true
	}

	return false
}

type Decision string

const (
	DecisionValidated Decision = "validated"
	DecisionRejected  Decision = "rejected"
)

type TenantType string

const (
	TenantTypeTenant   TenantType = "tenant"
	TenantTypeRoommate TenantType = "roommate"
)

var (
	ErrNotFound               = errors.New("payment not found")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidDate            = errors.New("invalid payment date")
	ErrInvalidMethod          = errors.New("invalid payment method")
	ErrInvalidDecision        = errors.New("invalid validation decision")
	ErrInvalidPayment         = errors.New("invalid payment")
	ErrNoActiveLease          = errors.New("no signed lease for this tenant and property")
	ErrInvalidStateTransition = errors.New("payment is not awaiting validation")
	ErrNoReceipt              = errors.New("payment has no receipt")
)

// Payment is one rent settlement for a tenant/property pairing. Amounts are in cents.
type Payment struct {
	ID             uuid.UUID
	LeaseID        *uuid.UUID
	TenantRef      string
	TenantName     string
	TenantType     TenantType
	PropertyRef    string
	ExpectedAmount int64
	PaidAmount     int64
	DueDate        time.Time
	PaymentDate    *time.Time
	Method         Method
	Status         Status
	Reference      string
	Notes          string
	ReceiptNumber  string
	ReceiptKey     string
	ResolutionNote string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// Balance is what remains owed (positive) or was paid in excess (negative).
func (p *Payment) Balance() int64 {
	return p.ExpectedAmount - p.PaidAmount
}

// DeriveStatus decides the initial status of a declaration. Bank transfers always
// wait for the owner to check the account; self-reported methods are settled by amount.
func DeriveStatus(method Method, paid, expected int64) Status {
	if method == MethodBankTransfer {
		return StatusPendingValidation
	}

	switch {
	case paid == expected:
		return StatusPaid
	case paid < expected:
		return StatusPartial
	default:
		return StatusOverpaid
	}
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseDate accepts ISO dates and French day-first dates.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// DueDate is the first day of the rent period containing t.
func DueDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
