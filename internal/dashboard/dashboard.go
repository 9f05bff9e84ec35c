// Package dashboard computes the owner's overview of rents and leases.
package dashboard

import (
	"time"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type Summary struct {
	Month              string                 `json:"month"`
	PaymentsByStatus   map[payment.Status]int `json:"payments_by_status"`
	ExpectedThisMonth  int64                  `json:"expected_this_month"`
	CollectedThisMonth int64                  `json:"collected_this_month"`
	AwaitingValidation int                    `json:"awaiting_validation"`
	AwaitingAmount     int64                  `json:"awaiting_amount"`
	LatePayments       int                    `json:"late_payments"`
	LeasesAwaitingSign int                    `json:"leases_awaiting_signatures"`
	ActiveLeases       int                    `json:"active_leases"`
	GeneratedAt        time.Time              `json:"generated_at"`
}

// collected counts what actually reached the owner: declared cash or card
// payments and validated transfers.
func collected(p *payment.Payment) int64 {
	if p.Status.ReceiptEligible() {
		return p.PaidAmount
	}

	return 0
}

func monthBounds(now time.Time) (start, end time.Time) {
	start = payment.DueDate(now)
	end = start.AddDate(0, 1, -1)

	return start, end
}
