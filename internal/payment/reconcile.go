package payment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// matchWindow is how far a bank credit may be from the declared payment date.
const matchWindow = 7 * 24 * time.Hour

// StatementLine is one credit or debit read from a bank statement. Amount is in
// cents, positive for money received.
type StatementLine struct {
	Date   time.Time
	Amount int64
	Label  string
}

type MatchReason string

const (
	MatchByPayer     MatchReason = "payer"
	MatchByReference MatchReason = "reference"
)

// Match pairs a statement credit with the declaration it most likely settles.
type Match struct {
	Line    StatementLine
	Payment *Payment
	Reason  MatchReason
}

// Reconcile proposes which pending bank transfer declarations are confirmed by
// the given statement. Each payment is matched at most once; nothing is validated.
func (s *Service) Reconcile(ctx context.Context, lines []StatementLine) ([]Match, error) {
	status := StatusPendingValidation

	pending, err := s.repo.ListPayments(ctx, ListFilter{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("listing pending payments: %w", err)
	}

	used := make(map[*Payment]bool, len(pending))

	var matches []Match

	for _, line := range lines {
		if line.Amount <= 0 {
			continue
		}

		tenantRef := ""

		if s.payers != nil {
			tenantRef, err = s.payers.Suggest(ctx, line.Label)
			if err != nil {
				return nil, fmt.Errorf("matching payer: %w", err)
			}
		}

		label := strings.ToUpper(line.Label)

		for _, p := range pending {
			if used[p] || p.PaidAmount != line.Amount || !withinWindow(p.PaymentDate, line.Date) {
				continue
			}

			var reason MatchReason

			switch {
			case tenantRef != "" && tenantRef == p.TenantRef:
				reason = MatchByPayer
			case p.Reference != "" && strings.Contains(label, strings.ToUpper(p.Reference)):
				reason = MatchByReference
			default:
				continue
			}

			used[p] = true
			matches = append(matches, Match{Line: line, Payment: p, Reason: reason})

			break
		}
	}

	return matches, nil
}

func withinWindow(declared *time.Time, booked time.Time) bool {
	if declared == nil {
		return false
	}

	d := booked.Sub(*declared)
	if d < 0 {
		d = -d
	}

	return d <= matchWindow
}
