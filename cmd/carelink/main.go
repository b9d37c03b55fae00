package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/app"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "carelink",
		Short:         "CareLink home-care coordination API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(weeklyBatchCmd())
	rootCmd.AddCommand(generateInvoicesCmd())
	rootCmd.AddCommand(createUserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	log = log.With(
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)
	return cfg, log, nil
}

// withApp builds the application, runs fn and releases everything afterwards.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App, log *zap.Logger) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()
	return fn(ctx, a, log)
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, websocket hub and scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, func(ctx context.Context, a *app.App, log *zap.Logger) error {
				if migrate {
					if err := database.Migrate(a.DB, log); err != nil {
						return err
					}
				}
				err := a.Serve(ctx)
				log.Info("server stopped")
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Run database migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Connect(cfg.Database, log.Named("gorm"))
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			return database.Migrate(db, log)
		},
	}
}

func weeklyBatchCmd() *cobra.Command {
	var (
		offset  int
		channel string
	)
	cmd := &cobra.Command{
		Use:   "weekly-batch",
		Short: "Send every patient and provider their schedule for a week",
		RunE: func(cmd *cobra.Command, _ []string) error {
			channels, err := service.ParseBatchChannels(channel)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				res, err := a.Services.Notifications.WeeklyBatch(ctx, offset, channels)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cmd.Flags().IntVar(&offset, "week-offset", 1, "Weeks after the current one (0 is this week)")
	cmd.Flags().StringVar(&channel, "channel", "both", "email, sms or both")
	return cmd
}

func generateInvoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-invoices",
		Short: "Invoice the previous calendar month for every billable patient",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App, _ *zap.Logger) error {
				res, err := a.Services.Billing.GenerateMonthly(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func createUserCmd() *cobra.Command {
	var c service.CreateUserCommand
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision an active account, typically the first administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.Role = domain.Role(role)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App, log *zap.Logger) error {
				u, err := a.Services.Auth.CreateUser(ctx, c)
				if err != nil {
					return err
				}
				log.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
				return printJSON(cmd, u)
			})
		},
	}
	cmd.Flags().StringVar(&c.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&c.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&c.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&c.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdministrator), "Account role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
