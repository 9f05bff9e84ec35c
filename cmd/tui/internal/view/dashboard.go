package view

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type DashboardModel struct {
	CommonModel
	dashboardService *dashboard.Service

	summary *dashboard.Summary
	loading bool
	err     error
}

func NewDashboardModel(svc *dashboard.Service) DashboardModel {
	return DashboardModel{dashboardService: svc, loading: true}
}

func (m DashboardModel) Title() string     { return "Dashboard" }
func (m DashboardModel) ShortHelp() string { return "Esc: back | r: refresh" }

func (m DashboardModel) Init() tea.Cmd {
	return m.loadSummaryCmd()
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case summaryMsg:
		m.loading = false
		m.summary = msg.summary
		m.err = msg.err

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadSummaryCmd()
		}
	}

	return m, nil
}

func (m DashboardModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	if m.loading {
		return style.Render("Loading dashboard...")
	}

	if m.err != nil {
		return style.Render(errorStyle(fmt.Sprintf("Error: %v", m.err)) + "\n\n(r to retry, Esc to back)")
	}

	s := m.summary
	label := lipgloss.NewStyle().Width(24).Faint(true)

	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", lipgloss.NewStyle().Bold(true).Render("Rent for "+s.Month))
	fmt.Fprintf(&b, "%s%s\n", label.Render("Expected"), FormatAmount(s.ExpectedThisMonth))
	fmt.Fprintf(&b, "%s%s\n", label.Render("Collected"), FormatAmount(s.CollectedThisMonth))
	fmt.Fprintf(&b, "%s%d (%s)\n", label.Render("Awaiting validation"), s.AwaitingValidation, FormatAmount(s.AwaitingAmount))
	fmt.Fprintf(&b, "%s%d\n\n", label.Render("Late"), s.LatePayments)
	fmt.Fprintf(&b, "%s%d\n", label.Render("Active leases"), s.ActiveLeases)
	fmt.Fprintf(&b, "%s%d\n\n", label.Render("Awaiting signatures"), s.LeasesAwaitingSign)

	statuses := make([]payment.Status, 0, len(s.PaymentsByStatus))
	for st := range s.PaymentsByStatus {
		statuses = append(statuses, st)
	}

	slices.Sort(statuses)

	b.WriteString("This month by status:\n")

	for _, st := range statuses {
		fmt.Fprintf(&b, "  %s %d\n", lipgloss.NewStyle().Width(20).Render(statusStyle(st)), s.PaymentsByStatus[st])
	}

	fmt.Fprintf(&b, "\n%s", lipgloss.NewStyle().Faint(true).Render("Computed "+s.GeneratedAt.Format("02/01/2006 15:04")))

	return style.Render(b.String())
}

type summaryMsg struct {
	summary *dashboard.Summary
	err     error
}

func (m DashboardModel) loadSummaryCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		summary, err := m.dashboardService.Summary(ctx)

		return summaryMsg{summary: summary, err: err}
	}
}
