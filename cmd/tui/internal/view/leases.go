package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/lease"
)

var leaseStatusFilters = []*lease.Status{
	nil,
	new(lease.StatusDraft),
	new(lease.StatusAwaitingSignatures),
	new(lease.StatusSigned),
	new(lease.StatusExpired),
}

// LeasesModel lists leases with their signature progress.
type LeasesModel struct {
	CommonModel
	leaseService *lease.Service

	table  table.Model
	leases []*lease.Lease

	statusFilterIdx int
	showDetails     bool

	loading bool
	err     error
	status  string
}

func NewLeasesModel(svc *lease.Service) LeasesModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Title", Width: 28},
			{Title: "Kind", Width: 11},
			{Title: "Tenant", Width: 22},
			{Title: "Property", Width: 14},
			{Title: "Monthly", Width: 12},
			{Title: "Status", Width: 20},
			{Title: "Signed", Width: 7},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return LeasesModel{leaseService: svc, table: t, loading: true}
}

func (m LeasesModel) Title() string { return "Leases" }

func (m LeasesModel) ShortHelp() string {
	return "Esc: back | Enter: details | s: status filter | g: regenerate PDF | r: refresh"
}

func (m LeasesModel) Init() tea.Cmd {
	return m.loadLeasesCmd()
}

func (m LeasesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadLeasesMsg:
		m.loading = false
		m.err = msg.err
		m.leases = msg.leases
		m.refreshTable()

		return m, nil

	case regeneratedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error regenerating document: %v", msg.err)
			return m, nil
		}

		m.status = "Document regenerated: " + msg.lease.DocumentKey

		return m, m.loadLeasesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.showDetails {
				m.showDetails = false
				return m, nil
			}

			return m, Back
		case "enter":
			m.showDetails = !m.showDetails
			return m, nil
		case "r":
			m.loading = true
			return m, m.loadLeasesCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(leaseStatusFilters)
			return m, m.loadLeasesCmd()
		case "g":
			if l := m.selected(); l != nil {
				return m, m.regenerateCmd(l)
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m LeasesModel) selected() *lease.Lease {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.leases) {
		return nil
	}

	return m.leases[idx]
}

func (m LeasesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading leases...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(r to retry, Esc to back)", m.err))
	}

	statusLabel := "All"
	if s := leaseStatusFilters[m.statusFilterIdx]; s != nil {
		statusLabel = string(*s)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render("Filter: [s] Status: "+activeStyle(statusLabel)),
		lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Render(m.table.View()),
	)

	if l := m.selected(); m.showDetails && l != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(leaseDetails(l))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func leaseDetails(l *lease.Lease) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", lipgloss.NewStyle().Bold(true).Render(l.Title))
	fmt.Fprintf(&b, "Rent:     %s\n", FormatAmount(l.Rent))
	fmt.Fprintf(&b, "Charges:  %s\n", FormatAmount(l.Charges))
	fmt.Fprintf(&b, "Deposit:  %s\n", FormatAmount(l.Deposit))
	fmt.Fprintf(&b, "From:     %s\n", FormatDate(l.StartDate))
	fmt.Fprintf(&b, "Until:    %s\n\n", formatOptionalDate(l.EndDate))

	b.WriteString("Signatures:\n")

	for _, role := range lease.RequiredRoles(l.Kind) {
		sig, ok := l.Signatures[role]
		if !ok || sig == nil {
			fmt.Fprintf(&b, "  [ ] %s\n", role)
			continue
		}

		fmt.Fprintf(&b, "  [x] %s: %s, %s\n", role, sig.SignerName, FormatDate(sig.SignedAt))
	}

	if l.DocumentKey != "" {
		fmt.Fprintf(&b, "\nDocument: %s\n", l.DocumentKey)
	}

	return b.String()
}

func signedCount(l *lease.Lease) string {
	roles := lease.RequiredRoles(l.Kind)

	n := 0
	for _, r := range roles {
		if l.HasSigned(r) {
			n++
		}
	}

	return fmt.Sprintf("%d/%d", n, len(roles))
}

func (m *LeasesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.leases))
	for _, l := range m.leases {
		rows = append(rows, table.Row{
			l.Title,
			string(l.Kind),
			l.TenantName,
			l.PropertyRef,
			FormatAmount(l.ExpectedAmount()),
			string(l.Status),
			signedCount(l),
		})
	}

	m.table.SetRows(rows)
}

type loadLeasesMsg struct {
	leases []*lease.Lease
	err    error
}

func (m LeasesModel) loadLeasesCmd() tea.Cmd {
	filter := lease.ListFilter{Status: leaseStatusFilters[m.statusFilterIdx]}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		leases, err := m.leaseService.List(ctx, filter)

		return loadLeasesMsg{leases: leases, err: err}
	}
}

type regeneratedMsg struct {
	lease *lease.Lease
	err   error
}

func (m LeasesModel) regenerateCmd(l *lease.Lease) tea.Cmd {
	id := l.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		updated, err := m.leaseService.RegenerateDocument(ctx, id)

		return regeneratedMsg{lease: updated, err: err}
	}
}
