package main

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/loyer/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/loyer/internal/config"
	"github.com/MrJamesThe3rd/loyer/internal/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/database"
	"github.com/MrJamesThe3rd/loyer/internal/document"
	"github.com/MrJamesThe3rd/loyer/internal/export"
	"github.com/MrJamesThe3rd/loyer/internal/importer"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
	leaseStore "github.com/MrJamesThe3rd/loyer/internal/lease/store"
	"github.com/MrJamesThe3rd/loyer/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/loyer/internal/matching/store"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
	paymentStore "github.com/MrJamesThe3rd/loyer/internal/payment/store"
	"github.com/MrJamesThe3rd/loyer/internal/platform"
)

type services struct {
	lease     *lease.Service
	payment   *payment.Service
	matching  *matching.Service
	importer  *importer.Service
	export    *export.Service
	dashboard *dashboard.Service
}

type model struct {
	svc   services
	close func()

	currentView View
	active      view.View
}

type View int

const (
	ViewMenu View = iota
	ViewValidation
	ViewPayments
	ViewLeases
	ViewReconcile
	ViewDashboard
	ViewExport
)

var menu = []struct {
	key  string
	view View
	text string
}{
	{"1", ViewValidation, "Validate Bank Transfers"},
	{"2", ViewPayments, "Payments"},
	{"3", ViewLeases, "Leases"},
	{"4", ViewReconcile, "Reconcile Bank Statement"},
	{"5", ViewDashboard, "Dashboard"},
	{"6", ViewExport, "Export Receipts"},
}

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	storage, err := platform.OpenStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document storage", "error", err)
		os.Exit(1)
	}

	events, err := platform.OpenEvents(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to open event sinks", "error", err)
		os.Exit(1)
	}

	var (
		documents    = document.NewService(storage, document.Landlord(cfg.Landlord))
		leaseRepo    = leaseStore.New(db)
		paymentRepo  = paymentStore.New(db)
		matchingSvc  = matching.NewService(matchingStore.New(db))
		dashboardSvc = dashboard.NewService(paymentRepo, leaseRepo, events.Cache, cfg.Redis.TTL)
		leaseSvc     = lease.NewService(leaseRepo, documents, events.Notifier)
		paymentSvc   = payment.NewService(paymentRepo, leaseSvc, documents, events.Notifier, payment.WithPayerMatcher(matchingSvc))
	)

	return model{
		svc: services{
			lease:     leaseSvc,
			payment:   paymentSvc,
			matching:  matchingSvc,
			importer:  importer.NewService(),
			export:    export.NewService(paymentSvc),
			dashboard: dashboardSvc,
		},
		currentView: ViewMenu,
		close: func() {
			if err := events.Close(); err != nil {
				slog.Warn("failed to close event sinks", "error", err)
			}

			db.Close()
		},
	}
}

func (m model) newView(v View) view.View {
	switch v {
	case ViewValidation:
		return view.NewValidationModel(m.svc.payment)
	case ViewPayments:
		return view.NewPaymentsModel(m.svc.payment)
	case ViewLeases:
		return view.NewLeasesModel(m.svc.lease)
	case ViewReconcile:
		return view.NewReconcileModel(m.svc.payment, m.svc.importer, m.svc.matching)
	case ViewDashboard:
		return view.NewDashboardModel(m.svc.dashboard)
	case ViewExport:
		return view.NewExportModel(m.svc.export)
	}

	return nil
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			if msg.String() == "q" {
				return m, tea.Quit
			}

			for _, item := range menu {
				if msg.String() != item.key {
					continue
				}

				m.currentView = item.view
				m.active = m.newView(item.view)

				return m, m.active.Init()
			}

			return m, nil
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		m.active = nil

		return m, nil
	}

	if m.active == nil {
		return m, nil
	}

	next, cmd := m.active.Update(msg)
	m.active = next.(view.View)

	return m, cmd
}

func (m model) View() string {
	if m.currentView == ViewMenu || m.active == nil {
		s := "Loyer\n\n"
		for _, item := range menu {
			s += item.key + ". " + item.text + "\n"
		}

		return lipgloss.NewStyle().Padding(2).Render(s + "\nq. Quit")
	}

	help := lipgloss.NewStyle().Faint(true).PaddingLeft(1).Render(m.active.Title() + " | " + m.active.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, m.active.View(), help)
}

func main() {
	m := initialModel()
	defer m.close()

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		m.close()
		os.Exit(1)
	}
}
