package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/importer"
	"github.com/MrJamesThe3rd/loyer/internal/matching"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

const reconcileTimeout = 2 * time.Minute

type reconcileState int

const (
	reconcileStateBankSelect reconcileState = iota
	reconcileStateFilePick
	reconcileStateReading
	reconcileStateMatches
	reconcileStateResult
)

// ReconcileModel reads a bank statement and validates the transfers it confirms.
type ReconcileModel struct {
	CommonModel
	paymentService  *payment.Service
	importService   *importer.Service
	matchingService *matching.Service

	state        reconcileState
	filePicker   filepicker.Model
	selectedBank importer.Bank
	bankOptions  []importer.Bank
	bankCursor   int

	matches   []payment.Match
	credits   int
	matchList list.Model
	selected  map[int]bool

	status string
	err    error
}

func NewReconcileModel(paySvc *payment.Service, impSvc *importer.Service, matchSvc *matching.Service) ReconcileModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return ReconcileModel{
		paymentService:  paySvc,
		importService:   impSvc,
		matchingService: matchSvc,
		filePicker:      fp,
		bankOptions:     append([]importer.Bank{importer.BankAuto}, importer.Banks()...),
		selected:        make(map[int]bool),
	}
}

func (m ReconcileModel) Title() string { return "Bank Reconciliation" }

func (m ReconcileModel) ShortHelp() string {
	if m.state == reconcileStateMatches {
		return "Space: toggle | a: all | n: none | Enter: validate selected | Esc: cancel"
	}

	return "Esc: back | Enter: select"
}

func (m ReconcileModel) Init() tea.Cmd {
	return nil
}

func (m ReconcileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}

		switch m.state {
		case reconcileStateBankSelect:
			return m.updateBankSelect(msg)
		case reconcileStateMatches:
			return m.updateMatches(msg)
		}

	case matchesMsg:
		if msg.err != nil {
			m.state = reconcileStateResult
			m.err = msg.err
			m.status = fmt.Sprintf("Error: %v", msg.err)

			return m, nil
		}

		if len(msg.matches) == 0 {
			m.state = reconcileStateResult
			m.status = fmt.Sprintf("%d credit(s) read, none settles a pending transfer.", msg.credits)

			return m, nil
		}

		m.matches = msg.matches
		m.credits = msg.credits
		m.selected = make(map[int]bool, len(msg.matches))

		items := make([]list.Item, len(m.matches))
		for i, match := range m.matches {
			items[i] = matchItem{match: match, index: i}
			m.selected[i] = true
		}

		m.matchList = list.New(items, matchDelegate{selected: m.selected}, 90, 20)
		m.matchList.Title = fmt.Sprintf("%d transfer(s) found in %d credit(s)", len(m.matches), m.credits)
		m.matchList.SetShowStatusBar(false)
		m.matchList.SetFilteringEnabled(false)
		m.matchList.SetShowHelp(false)
		m.state = reconcileStateMatches

		return m, nil

	case validatedMsg:
		m.state = reconcileStateResult
		m.err = msg.err

		if msg.err != nil {
			m.status = fmt.Sprintf("Validated %d transfer(s) before failing: %v", msg.count, msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Validated %d transfer(s).", msg.count)

		return m, nil
	}

	if m.state != reconcileStateFilePick {
		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = reconcileStateReading
		m.status = fmt.Sprintf("Reading %s...", path)

		return m, m.reconcileCmd(path)
	}

	return m, cmd
}

func (m ReconcileModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case reconcileStateFilePick, reconcileStateResult, reconcileStateMatches:
		m.state = reconcileStateBankSelect
		m.matches = nil
		m.err = nil
		m.status = ""

		return m, nil
	}

	return m, Back
}

func (m ReconcileModel) updateBankSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.bankCursor > 0 {
			m.bankCursor--
		}
	case tea.KeyDown:
		if m.bankCursor < len(m.bankOptions)-1 {
			m.bankCursor++
		}
	case tea.KeyEnter:
		m.selectedBank = m.bankOptions[m.bankCursor]
		m.state = reconcileStateFilePick

		return m, m.filePicker.Init()
	}

	return m, nil
}

func (m ReconcileModel) updateMatches(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ":
		idx := m.matchList.Index()
		m.selected[idx] = !m.selected[idx]

		return m, nil
	case "a":
		for i := range m.matches {
			m.selected[i] = true
		}

		return m, nil
	case "n":
		for i := range m.matches {
			m.selected[i] = false
		}

		return m, nil
	case "enter":
		return m, m.validateCmd()
	}

	var cmd tea.Cmd
	m.matchList, cmd = m.matchList.Update(msg)

	return m, cmd
}

func (m ReconcileModel) View() string {
	switch m.state {
	case reconcileStateBankSelect:
		return m.viewBankSelect()
	case reconcileStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("Select statement (%s):\n\n%s", m.selectedBank, m.filePicker.View()),
		)
	case reconcileStateReading:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case reconcileStateMatches:
		return lipgloss.NewStyle().Padding(1).Render(m.matchList.View())
	case reconcileStateResult:
		status := lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(m.status)
		if m.err != nil {
			status = errorStyle(m.status)
		}

		return lipgloss.NewStyle().Padding(2).Render(status + "\n\n(Esc to go back)")
	}

	return ""
}

func (m ReconcileModel) viewBankSelect() string {
	s := "Statement layout:\n\n"

	for i, bank := range m.bankOptions {
		cursor := " "
		if i == m.bankCursor {
			cursor = ">"
		}

		s += fmt.Sprintf("%s %s\n", cursor, bank)
	}

	return lipgloss.NewStyle().Padding(2).Render(s)
}

type matchesMsg struct {
	matches []payment.Match
	credits int
	err     error
}

type validatedMsg struct {
	count int
	err   error
}

func (m ReconcileModel) reconcileCmd(path string) tea.Cmd {
	bank := m.selectedBank

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return matchesMsg{err: err}
		}
		defer f.Close()

		lines, err := m.importService.Import(bank, f)
		if err != nil {
			return matchesMsg{err: err}
		}

		credits := 0

		for _, l := range lines {
			if l.Amount > 0 {
				credits++
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		matches, err := m.paymentService.Reconcile(ctx, lines)

		return matchesMsg{matches: matches, credits: credits, err: err}
	}
}

// validateCmd validates the selected transfers and remembers the payer label of
// those matched by reference, so the next statement matches them by payer.
func (m ReconcileModel) validateCmd() tea.Cmd {
	matches := m.matches
	selected := m.selected

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		count := 0

		for i, match := range matches {
			if !selected[i] {
				continue
			}

			note := fmt.Sprintf("Relevé du %s : %s", FormatDate(match.Line.Date), match.Line.Label)
			if _, err := m.paymentService.Validate(ctx, match.Payment.ID, payment.DecisionValidated, note); err != nil {
				return validatedMsg{count: count, err: err}
			}

			count++

			if match.Reason != payment.MatchByReference {
				continue
			}

			err := m.matchingService.Learn(ctx, match.Line.Label, match.Payment.TenantRef)
			if err != nil && !errors.Is(err, matching.ErrInvalidMapping) {
				return validatedMsg{count: count, err: fmt.Errorf("learning payer: %w", err)}
			}
		}

		return validatedMsg{count: count}
	}
}

type matchItem struct {
	match payment.Match
	index int
}

func (i matchItem) Title() string       { return i.match.Payment.TenantName }
func (i matchItem) Description() string { return i.match.Line.Label }
func (i matchItem) FilterValue() string { return i.match.Line.Label }

type matchDelegate struct {
	selected map[int]bool
}

func (d matchDelegate) Height() int                             { return 2 }
func (d matchDelegate) Spacing() int                            { return 1 }
func (d matchDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d matchDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(matchItem)
	if !ok {
		return
	}

	checkbox := "[ ]"
	if d.selected[item.index] {
		checkbox = "[x]"
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	line, p := item.match.Line, item.match.Payment

	fmt.Fprintf(w, "%s%s %s  %s  %s\n", cursor, checkbox, FormatDate(line.Date), FormatAmount(line.Amount), line.Label)
	fmt.Fprintf(w, "      %s, %s, declared %s (by %s)", p.TenantName, p.PropertyRef, FormatAmount(p.PaidAmount), item.match.Reason)
}
