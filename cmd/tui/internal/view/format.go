package view

import (
	"context"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

const dbTimeout = 5 * time.Second

// FormatAmount formats cents the way receipts print them, e.g. 1 234,50 €.
func FormatAmount(cents int64) string {
	return money.Format(cents)
}

func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return FormatDate(*t)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

var statusColors = map[payment.Status]lipgloss.Color{
	payment.StatusPaid:              "46",
	payment.StatusOverpaid:          "46",
	payment.StatusPartial:           "214",
	payment.StatusPendingValidation: "39",
	payment.StatusLate:              "196",
	payment.StatusRejected:          "196",
}

func statusStyle(s payment.Status) string {
	c, ok := statusColors[s]
	if !ok {
		return string(s)
	}

	return lipgloss.NewStyle().Foreground(c).Render(string(s))
}

func errorStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(s)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}
