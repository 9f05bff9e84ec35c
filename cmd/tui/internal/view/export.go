package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/loyer/internal/export"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
)

const exportTimeout = 2 * time.Minute

type exportStep int

const (
	exportStepPeriod exportStep = iota
	exportStepOptions
	exportStepRunning
	exportStepDone
)

type exportOptions struct {
	dir       string
	tenantRef string
	confirmed bool
}

// ExportModel copies the receipts of a rent period into a local directory,
// ready to be attached to an email or handed to an accountant.
type ExportModel struct {
	CommonModel
	exportService *export.Service

	step    exportStep
	picker  TimeframePicker
	period  TimeframeSelectedMsg
	options *exportOptions
	form    *huh.Form
	spinner spinner.Model

	result exportResultMsg
}

func NewExportModel(svc *export.Service) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ExportModel{
		exportService: svc,
		picker:        NewTimeframePicker(TimeframeLastMonth),
		options:       &exportOptions{dir: "./quittances"},
		spinner:       s,
	}
}

func (m ExportModel) Title() string { return "Export Receipts" }

func (m ExportModel) ShortHelp() string {
	switch m.step {
	case exportStepRunning:
		return "Exporting..."
	case exportStepDone:
		return "Esc: back to menu"
	}

	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return nil
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.period = msg
		m.options.confirmed = false
		m.form = m.optionsForm()
		m.step = exportStepOptions

		return m, m.form.Init()

	case exportResultMsg:
		m.result = msg
		m.step = exportStepDone

		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}
	}

	switch m.step {
	case exportStepPeriod:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)

		return m, cmd

	case exportStepOptions:
		return m.updateOptions(msg)

	case exportStepRunning:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m ExportModel) handleEsc() (tea.Model, tea.Cmd) {
	switch m.step {
	case exportStepPeriod:
		if !m.picker.IsSelecting() {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(tea.KeyMsg{Type: tea.KeyEsc})

			return m, cmd
		}

		return m, Back
	case exportStepOptions:
		m.step = exportStepPeriod
		m.picker.Reset()

		return m, nil
	case exportStepDone:
		return m, Back
	}

	return m, nil
}

func (m ExportModel) updateOptions(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
	case huh.StateAborted:
		m.step = exportStepPeriod
		m.picker.Reset()

		return m, nil
	default:
		return m, cmd
	}

	if !m.options.confirmed {
		m.step = exportStepPeriod
		m.picker.Reset()

		return m, nil
	}

	m.step = exportStepRunning

	return m, tea.Batch(m.spinner.Tick, m.exportCmd(m.period, *m.options))
}

func (m ExportModel) optionsForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("dir").
				Title("Output directory").
				Description("Created if missing").
				Placeholder("./quittances").
				Value(&m.options.dir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("directory is required")
					}

					return nil
				}),
			huh.NewInput().
				Key("tenant_ref").
				Title("Tenant").
				Description("Leave empty for every tenant").
				Value(&m.options.tenantRef),
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Export receipts for %s?", periodLabel(m.period))).
				Affirmative("Export").
				Negative("Back").
				Value(&m.options.confirmed),
		),
	).WithWidth(50).WithShowHelp(false)
}

func periodLabel(p TimeframeSelectedMsg) string {
	if p.All {
		return "all time"
	}

	return FormatDate(p.Start) + " - " + FormatDate(p.End)
}

func (m ExportModel) View() string {
	style := lipgloss.NewStyle().Padding(1)

	switch m.step {
	case exportStepPeriod:
		return style.Render(m.picker.View())
	case exportStepOptions:
		return style.Render(m.form.View())
	case exportStepRunning:
		return style.Render(fmt.Sprintf("%s Rendering and copying receipts...", m.spinner.View()))
	case exportStepDone:
		return style.Render(m.viewResult())
	}

	return ""
}

func (m ExportModel) viewResult() string {
	r := m.result
	if r.err != nil {
		return errorStyle(fmt.Sprintf("Error: %v", r.err))
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render(fmt.Sprintf("%d receipt(s) written to %s", r.written, r.dir))

	parts := []string{header, "", r.summary}

	if len(r.missing) > 0 {
		parts = append(parts, "", errorStyle("No receipt for: "+strings.Join(r.missing, ", ")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

type exportResultMsg struct {
	dir     string
	summary string
	written int
	missing []string
	err     error
}

func (m ExportModel) exportCmd(period TimeframeSelectedMsg, opts exportOptions) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		filter := payment.ListFilter{TenantRef: strings.TrimSpace(opts.tenantRef)}
		if !period.All {
			filter.StartDate = &period.Start
			filter.EndDate = &period.End
		}

		items, err := m.exportService.Export(ctx, filter, opts.dir)
		if err != nil {
			return exportResultMsg{err: err}
		}

		res := exportResultMsg{dir: opts.dir, summary: m.exportService.GenerateSummary(items)}

		for _, it := range items {
			if it.FilePath == "" {
				res.missing = append(res.missing, it.Payment.TenantName)
				continue
			}

			res.written++
		}

		return res
	}
}
