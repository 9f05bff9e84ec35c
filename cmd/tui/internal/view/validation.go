package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

type validationState int

const (
	validationStateDecide validationState = iota
	validationStateRejectNote
)

// ValidationModel walks the owner through bank transfer declarations one at a time.
type ValidationModel struct {
	CommonModel
	paymentService *payment.Service

	state   validationState
	queue   []*payment.Payment
	current *payment.Payment

	noteInput textinput.Model

	loading   bool
	status    string
	validated int
	rejected  int
}

func NewValidationModel(svc *payment.Service) ValidationModel {
	ti := textinput.New()
	ti.Placeholder = "Virement introuvable sur le relevé"
	ti.Width = 60

	return ValidationModel{
		paymentService: svc,
		noteInput:      ti,
		loading:        true,
	}
}

func (m ValidationModel) Title() string { return "Validation Queue" }

func (m ValidationModel) ShortHelp() string {
	if m.state == validationStateRejectNote {
		return "Enter: reject | Esc: cancel"
	}

	return "v: validate | r: reject | s: skip | Esc: back"
}

func (m ValidationModel) Init() tea.Cmd {
	return m.loadPendingCmd()
}

func (m ValidationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadPendingMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.queue = msg.payments
		m.next()

		return m, nil

	case decisionMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
			return m, nil
		}

		switch msg.payment.Status {
		case payment.StatusRejected:
			m.rejected++
		default:
			m.validated++
		}

		m.status = fmt.Sprintf("%s %s", msg.payment.TenantName, msg.payment.Status)
		m.next()

		return m, nil

	case tea.KeyMsg:
		if m.state == validationStateRejectNote {
			return m.updateRejectNote(msg)
		}

		return m.updateDecide(msg)
	}

	return m, nil
}

func (m ValidationModel) updateDecide(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, Back
	case "v":
		if m.current != nil {
			return m, m.decideCmd(m.current, payment.DecisionValidated, "")
		}
	case "r":
		if m.current != nil {
			m.state = validationStateRejectNote
			m.noteInput.SetValue("")

			return m, m.noteInput.Focus()
		}
	case "s":
		if m.current != nil {
			m.status = "Skipped " + m.current.TenantName
			m.next()
		}
	}

	return m, nil
}

func (m ValidationModel) updateRejectNote(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = validationStateDecide
		m.noteInput.Blur()

		return m, nil
	case tea.KeyEnter:
		m.state = validationStateDecide
		m.noteInput.Blur()

		return m, m.decideCmd(m.current, payment.DecisionRejected, m.noteInput.Value())
	}

	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)

	return m, cmd
}

func (m *ValidationModel) next() {
	if len(m.queue) == 0 {
		m.current = nil
		return
	}

	m.current = m.queue[0]
	m.queue = m.queue[1:]
}

func (m ValidationModel) View() string {
	style := lipgloss.NewStyle().Padding(2)

	if m.loading {
		return style.Render("Loading declarations awaiting validation...")
	}

	tally := fmt.Sprintf("%d validated, %d rejected", m.validated, m.rejected)

	if m.current == nil {
		return style.Render(fmt.Sprintf("%s\n\nNothing left to validate (%s).\n\n(Esc to back)", m.status, tally))
	}

	p := m.current
	info := fmt.Sprintf(
		"Tenant:    %s (%s)\nProperty:  %s\nDue:       %s\nPaid on:   %s\nExpected:  %s\nDeclared:  %s\nReference: %s\nNotes:     %s\n",
		p.TenantName, p.TenantRef,
		p.PropertyRef,
		FormatDate(p.DueDate),
		formatOptionalDate(p.PaymentDate),
		FormatAmount(p.ExpectedAmount),
		FormatAmount(p.PaidAmount),
		p.Reference,
		p.Notes,
	)

	if p.PaidAmount != p.ExpectedAmount {
		info += errorStyle(fmt.Sprintf("\nAmount differs from the lease by %s\n", FormatAmount(-p.Balance())))
	}

	content := fmt.Sprintf("Bank transfer (%d remaining, %s)\n\n%s", len(m.queue)+1, tally, info)

	if m.state == validationStateRejectNote {
		content += "\nRejection note:\n" + m.noteInput.View()
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n\n" + content
	}

	return style.Render(content)
}

type loadPendingMsg struct {
	payments []*payment.Payment
	err      error
}

func (m ValidationModel) loadPendingCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		payments, err := m.paymentService.List(ctx, payment.ListFilter{Status: new(payment.StatusPendingValidation)})

		return loadPendingMsg{payments: payments, err: err}
	}
}

type decisionMsg struct {
	payment *payment.Payment
	err     error
}

func (m ValidationModel) decideCmd(p *payment.Payment, decision payment.Decision, note string) tea.Cmd {
	id := p.ID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		updated, err := m.paymentService.Validate(ctx, id, decision, note)

		return decisionMsg{payment: updated, err: err}
	}
}
