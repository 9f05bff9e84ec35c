package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/money"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type paymentsState int

const (
	paymentsStateBrowse paymentsState = iota
	paymentsStateDeclare
)

var statusFilters = []*payment.Status{
	nil,
	new(payment.StatusPending),
	new(payment.StatusPendingValidation),
	new(payment.StatusPaid),
	new(payment.StatusPartial),
	new(payment.StatusOverpaid),
	new(payment.StatusLate),
	new(payment.StatusRejected),
}

var periodFilters = []Timeframe{TimeframeAll, TimeframeThisMonth, TimeframeLastMonth, TimeframeThisYear}

// PaymentsModel lists rent payments and lets the owner record one on a tenant's behalf.
type PaymentsModel struct {
	CommonModel
	paymentService *payment.Service

	state    paymentsState
	table    table.Model
	payments []*payment.Payment
	form     *huh.Form

	statusFilterIdx int
	periodFilterIdx int

	filter  payment.ListFilter
	loading bool
	err     error
	status  string

	declaration *declarationForm
}

type declarationForm struct {
	tenantRef   string
	propertyRef string
	tenantType  string
	amount      string
	date        string
	method      string
	reference   string
}

func NewPaymentsModel(svc *payment.Service) PaymentsModel {
	columns := []table.Column{
		{Title: "Due", Width: 10},
		{Title: "Tenant", Width: 22},
		{Title: "Property", Width: 14},
		{Title: "Expected", Width: 12},
		{Title: "Paid", Width: 12},
		{Title: "Method", Width: 13},
		{Title: "Status", Width: 18},
		{Title: "Receipt", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
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

	return PaymentsModel{
		paymentService: svc,
		table:          t,
		loading:        true,
	}
}

func (m PaymentsModel) Title() string { return "Payments" }

func (m PaymentsModel) ShortHelp() string {
	if m.state == paymentsStateDeclare {
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | n: record payment | s: status filter | d: period filter | r: refresh"
}

func (m PaymentsModel) Init() tea.Cmd {
	return m.loadPaymentsCmd()
}

func (m PaymentsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadPaymentsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.payments = msg.payments
		m.refreshTable()

		return m, nil

	case declaredMsg:
		m.state = paymentsStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = fmt.Sprintf("Error recording payment: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Recorded %s for %s (%s)", FormatAmount(msg.payment.PaidAmount), msg.payment.TenantName, msg.payment.Status)

		return m, m.loadPaymentsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == paymentsStateDeclare {
		return m.updateDeclare(msg)
	}

	return m.updateBrowse(msg)
}

func (m PaymentsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadPaymentsCmd()
		case "n":
			return m.enterDeclareMode()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(statusFilters)
			m.applyFilter(time.Now())

			return m, m.loadPaymentsCmd()
		case "d":
			m.periodFilterIdx = (m.periodFilterIdx + 1) % len(periodFilters)
			m.applyFilter(time.Now())

			return m, m.loadPaymentsCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m PaymentsModel) enterDeclareMode() (tea.Model, tea.Cmd) {
	m.declaration = &declarationForm{
		tenantType: string(payment.TenantTypeTenant),
		method:     string(payment.MethodCash),
		date:       time.Now().Format("02/01/2006"),
	}

	if idx := m.table.Cursor(); idx >= 0 && idx < len(m.payments) {
		m.declaration.tenantRef = m.payments[idx].TenantRef
		m.declaration.propertyRef = m.payments[idx].PropertyRef
	}

	d := m.declaration
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}

			return nil
		}
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Key("tenant_ref").Title("Tenant").Value(&d.tenantRef).Validate(required("tenant")),
			huh.NewInput().Key("property_ref").Title("Property").Value(&d.propertyRef).Validate(required("property")),
			huh.NewSelect[string]().
				Key("tenant_type").
				Title("Paid by").
				Options(huh.NewOptions(string(payment.TenantTypeTenant), string(payment.TenantTypeRoommate))...).
				Value(&d.tenantType),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Description("Euros, comma before cents: 1 234,56").
				Placeholder("800,00").
				Value(&d.amount).
				Validate(func(s string) error {
					_, err := money.Parse(s)
					return err
				}),
			huh.NewInput().
				Key("date").
				Title("Paid on").
				Placeholder("JJ/MM/AAAA").
				Value(&d.date).
				Validate(func(s string) error {
					_, err := payment.ParseDate(s)
					return err
				}),
			huh.NewSelect[string]().
				Key("method").
				Title("Method").
				Options(
					huh.NewOption("Espèces", string(payment.MethodCash)),
					huh.NewOption("Chèque", string(payment.MethodCheck)),
					huh.NewOption("Carte", string(payment.MethodCard)),
					huh.NewOption("Prélèvement", string(payment.MethodDirectDebit)),
					huh.NewOption("Virement", string(payment.MethodBankTransfer)),
				).
				Value(&d.method),
			huh.NewInput().Key("reference").Title("Reference").Value(&d.reference),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = paymentsStateDeclare
	m.table.Blur()

	return m, m.form.Init()
}

func (m PaymentsModel) updateDeclare(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = paymentsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.declareCmd(*m.declaration)
}

func (m PaymentsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading payments...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(r to retry, Esc to back)", m.err))
	}

	statusLabel := "All"
	if s := statusFilters[m.statusFilterIdx]; s != nil {
		statusLabel = string(*s)
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [d] Period: %s",
		activeStyle(statusLabel),
		activeStyle(periodFilters[m.periodFilterIdx].String()),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == paymentsStateDeclare && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render("Record Payment\n\n" + m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *PaymentsModel) applyFilter(now time.Time) {
	m.filter.Status = statusFilters[m.statusFilterIdx]

	start, end := periodFilters[m.periodFilterIdx].DateRange(now)
	if start.IsZero() {
		m.filter.StartDate = nil
		m.filter.EndDate = nil

		return
	}

	m.filter.StartDate = &start
	m.filter.EndDate = &end
}

func (m *PaymentsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.payments))
	for _, p := range m.payments {
		paid := "-"
		if p.PaidAmount > 0 {
			paid = FormatAmount(p.PaidAmount)
		}

		rows = append(rows, table.Row{
			p.DueDate.Format("01/2006"),
			p.TenantName,
			p.PropertyRef,
			FormatAmount(p.ExpectedAmount),
			paid,
			string(p.Method),
			statusStyle(p.Status),
			p.ReceiptNumber,
		})
	}

	m.table.SetRows(rows)
}

type loadPaymentsMsg struct {
	payments []*payment.Payment
	err      error
}

func (m PaymentsModel) loadPaymentsCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		payments, err := m.paymentService.List(ctx, filter)

		return loadPaymentsMsg{payments: payments, err: err}
	}
}

type declaredMsg struct {
	payment *payment.Payment
	err     error
}

func (m PaymentsModel) declareCmd(d declarationForm) tea.Cmd {
	return func() tea.Msg {
		amount, err := money.Parse(d.amount)
		if err != nil {
			return declaredMsg{err: err}
		}

		ctx, cancel := DbCtx()
		defer cancel()

		p, err := m.paymentService.Declare(ctx, payment.DeclareParams{
			TenantRef:   strings.TrimSpace(d.tenantRef),
			PropertyRef: strings.TrimSpace(d.propertyRef),
			TenantType:  payment.TenantType(d.tenantType),
			Amount:      amount,
			Date:        d.date,
			Method:      payment.Method(d.method),
			Reference:   strings.TrimSpace(d.reference),
		})

		return declaredMsg{payment: p, err: err}
	}
}
