package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/config"
	"github.com/MrJamesThe3rd/loyer/internal/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/database"
	"github.com/MrJamesThe3rd/loyer/internal/document"
	"github.com/MrJamesThe3rd/loyer/internal/export"
	loyerHttp "github.com/MrJamesThe3rd/loyer/internal/http"
	dashboardHandler "github.com/MrJamesThe3rd/loyer/internal/http/dashboard"
	exportHandler "github.com/MrJamesThe3rd/loyer/internal/http/export"
	leaseHandler "github.com/MrJamesThe3rd/loyer/internal/http/lease"
	paymentHandler "github.com/MrJamesThe3rd/loyer/internal/http/payment"
	reconcileHandler "github.com/MrJamesThe3rd/loyer/internal/http/reconcile"
	settingsHandler "github.com/MrJamesThe3rd/loyer/internal/http/settings"
	"github.com/MrJamesThe3rd/loyer/internal/importer"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
	leaseStore "github.com/MrJamesThe3rd/loyer/internal/lease/store"
	"github.com/MrJamesThe3rd/loyer/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/loyer/internal/matching/store"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
	paymentStore "github.com/MrJamesThe3rd/loyer/internal/payment/store"
	"github.com/MrJamesThe3rd/loyer/internal/platform"
	"github.com/MrJamesThe3rd/loyer/internal/settings"
	settingsStore "github.com/MrJamesThe3rd/loyer/internal/settings/store"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			return err
		}

		slog.Info("database migrated", "applied", applied)
	}

	storage, err := platform.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}

	events, err := platform.OpenEvents(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer events.Close()

	var (
		documents    = document.NewService(storage, document.Landlord(cfg.Landlord))
		leaseRepo    = leaseStore.New(db)
		paymentRepo  = paymentStore.New(db)
		matchingSvc  = matching.NewService(matchingStore.New(db))
		dashboardSvc = dashboard.NewService(paymentRepo, leaseRepo, events.Cache, cfg.Redis.TTL)
		leaseSvc     = lease.NewService(leaseRepo, documents, events.Notifier)
		paymentSvc   = payment.NewService(paymentRepo, leaseSvc, documents, events.Notifier, payment.WithPayerMatcher(matchingSvc))
		settingsSvc  = settings.NewService(settingsStore.New(db))
		exportSvc    = export.NewService(paymentSvc)
	)

	router := loyerHttp.New(
		auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		loyerHttp.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, Timeout: cfg.Server.Timeout},
		loyerHttp.Handlers{
			Leases:    leaseHandler.NewHandler(leaseSvc, documents),
			Payments:  paymentHandler.NewHandler(paymentSvc, documents),
			Settings:  settingsHandler.NewHandler(settingsSvc),
			Dashboard: dashboardHandler.NewHandler(dashboardSvc),
			Reconcile: reconcileHandler.NewHandler(importer.NewService(), paymentSvc, matchingSvc),
			Export:    exportHandler.NewHandler(exportSvc),
		},
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "port", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
