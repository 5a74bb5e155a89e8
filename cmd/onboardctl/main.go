// Command onboardctl is the operator CLI of the onboarding service: schema
// migrations, admin bootstrap and provisioning recovery.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"school-onboarding.backend/internal/app"
	"school-onboarding.backend/internal/config"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/infrastructure/datasources/postgres"
	"school-onboarding.backend/internal/infrastructure/migrations"
	"school-onboarding.backend/pkg/logger"
)

const (
	Version = "0.1.0"
	appName = "onboardctl"
)

type migrator interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
	Version(ctx context.Context) (int64, error)
}

var (
	loadCfg     = config.Load
	openSQL     = postgres.NewConnection
	openGorm    = postgres.OpenGorm
	newMigrator = func(db *sql.DB) (migrator, error) { return migrations.NewMigrator(db) }
	closeDB     = func(db *sql.DB) error { return db.Close() }
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operator tooling for the school onboarding service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			level, err := zapcore.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			logger.Init(loadCfg().Server.Env)
			logger.SetLevel(level)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		migrateCmd(),
		provisionCmd(),
		reconcileCmd(),
		seedAdminCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	run := func(step func(context.Context, migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			sqlDB, err := openSQL(loadCfg().Database)
			if err != nil {
				return err
			}
			defer closeDB(sqlDB)

			m, err := newMigrator(sqlDB)
			if err != nil {
				return err
			}
			if err := step(cmd.Context(), m); err != nil {
				return err
			}
			version, err := m.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  run(func(ctx context.Context, m migrator) error { return m.Up(ctx) }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE:  run(func(ctx context.Context, m migrator) error { return m.Down(ctx) }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print migration status",
			RunE:  run(func(ctx context.Context, m migrator) error { return m.Status(ctx) }),
		},
	)
	return cmd
}

// withContainer opens the database and hands a wired container to fn
func withContainer(fn func(*app.Container) error) error {
	cfg := loadCfg()
	sqlDB, err := openSQL(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(sqlDB)

	var db *gorm.DB
	if db, err = openGorm(sqlDB, cfg.Server.Env); err != nil {
		return err
	}
	return fn(app.NewContainer(cfg, db, app.Options{}))
}

func provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <account-id>",
		Short: "Create the missing role profile of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id %q: %w", args[0], err)
			}
			return withContainer(func(c *app.Container) error {
				profile, err := c.Onboarding.ProvisionAccount(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "profile %s role=%s status=%s\n", profile.ID, profile.Role, profile.Status)
				return nil
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one provisioning reconcile pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				report := c.Reconcile.RunOnce(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "scanned=%d provisioned=%d\n", report.Scanned, report.Provisioned)
				kinds := make([]string, 0, len(report.Failed))
				for kind := range report.Failed {
					kinds = append(kinds, string(kind))
				}
				sort.Strings(kinds)
				for _, kind := range kinds {
					fmt.Fprintf(out, "failed %s=%d\n", kind, report.Failed[domainerrors.Kind(kind)])
				}
				return nil
			})
		},
	}
}

func seedAdminCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account with an approved profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *app.Container) error {
				result, err := c.Onboarding.BootstrapAdmin(cmd.Context(), email, password, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s account=%s profile=%s\n", result.Account.Email, result.Account.ID, result.Profile.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
