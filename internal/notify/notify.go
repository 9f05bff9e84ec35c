// Package notify carries domain events to the people and systems that react to them.
// Delivery is fire-and-forget: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event type. It doubles as the Kafka topic suffix.
type Kind string

const (
	KindLeaseCreated       Kind = "lease.created"
	KindSignatureRecorded  Kind = "lease.signature_recorded"
	KindLeaseSigned        Kind = "lease.signed"
	KindLeasesExpired      Kind = "lease.expired"
	KindPaymentScheduled   Kind = "payment.scheduled"
	KindPaymentDeclared    Kind = "payment.declared"
	KindPaymentRecorded    Kind = "payment.recorded"
	KindPaymentDiscrepancy Kind = "payment.discrepancy"
	KindPaymentValidated   Kind = "payment.validated"
	KindPaymentRejected    Kind = "payment.rejected"
	KindPaymentsLate       Kind = "payment.late"
)

// RecipientOwner addresses the property owner. Tenants are addressed by their tenant ref.
const RecipientOwner = "owner"

// Event is a single notification about a lease or a payment.
type Event struct {
	Kind       Kind           `json:"kind"`
	SubjectID  uuid.UUID      `json:"subject_id"`
	Recipient  string         `json:"recipient"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
