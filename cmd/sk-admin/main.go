// Command sk-admin runs maintenance tasks against the portal database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/youth-governance-backend/internal/config"
	"github.com/ignatzorin/youth-governance-backend/internal/db"
	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// systemActor performs CLI operations that the API reserves for admins.
var systemActor = service.Actor{Role: models.RoleAdmin, IP: "cli"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "sk-admin",
		Short:         "Administration tasks for the youth governance portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logLevel)
			logger.SetTextFormatter()
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(migrateCmd(), importCmd(), createUserCmd())
	return cmd
}

// openDatabase loads the configuration and connects to Postgres.
func openDatabase(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, conn, nil
}
