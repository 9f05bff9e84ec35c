package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/config"
	"github.com/MrJamesThe3rd/loyer/internal/database"
	"github.com/MrJamesThe3rd/loyer/internal/lease"
	leaseStore "github.com/MrJamesThe3rd/loyer/internal/lease/store"
	"github.com/MrJamesThe3rd/loyer/internal/payment"
	paymentStore "github.com/MrJamesThe3rd/loyer/internal/payment/store"
	"github.com/MrJamesThe3rd/loyer/internal/platform"
)

func openDB() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, _ := cmd.Flags().GetBool("list")
			if list {
				migrations, err := database.Migrations()
				if err != nil {
					return err
				}

				for _, m := range migrations {
					fmt.Fprintf(cmd.OutOrStdout(), "%04d\t%s\n", m.Version, m.Name)
				}

				return nil
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
				return nil
			}

			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %04d\n", v)
			}

			return nil
		},
	}

	cmd.Flags().Bool("list", false, "list embedded migrations without touching the database")

	return cmd
}

func expireLeasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-leases",
		Short: "Mark signed leases whose end date has passed as expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := platform.OpenEvents(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer events.Close()

			n, err := lease.NewService(leaseStore.New(db), nil, events.Notifier).ExpireEnded(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d lease(s) expired\n", n)

			return nil
		},
	}
}

func markLateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-late",
		Short: "Flag scheduled rents past their due date as late",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := platform.OpenEvents(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer events.Close()

			n, err := payment.NewService(paymentStore.New(db), nil, nil, events.Notifier).MarkLate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d payment(s) marked late\n", n)

			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			role, _ := cmd.Flags().GetString("role")
			tenant, _ := cmd.Flags().GetString("tenant")
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if ttl == 0 {
				ttl = cfg.Auth.TokenTTL
			}

			token, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, ttl).Issue(auth.Role(role), tenant, subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().String("role", string(auth.RoleOwner), "owner or tenant")
	cmd.Flags().String("tenant", "", "tenant ref, required for tenant tokens")
	cmd.Flags().String("subject", "", "who the token is for, e.g. an email")
	cmd.Flags().Duration("ttl", 0, "token lifetime (default AUTH_TOKEN_TTL)")

	return cmd
}
