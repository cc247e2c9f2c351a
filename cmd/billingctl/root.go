package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/infrastructure/config"
	"github.com/rentalops/backend/internal/infrastructure/logger"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// env is what every subcommand needs once the root has connected
type env struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *persistence.Database
	projectID *uuid.UUID
}

func (e *env) close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Error closing database", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

func newRootCommand() *cobra.Command {
	var (
		logLevel string
		project  string
	)
	e := &env{}

	root := &cobra.Command{
		Use:   "billingctl",
		Short: "Maintenance commands for the rental billing ledger",
		Long: `billingctl connects to the billing database configured for the server
(config.toml, .env and RENTAL_ variables) and runs operator tasks:
bulk reconciliation after manual data fixes, and collection summaries.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			e.log = log

			if project != "" {
				id, err := uuid.Parse(project)
				if err != nil || id == uuid.Nil {
					return errors.New("--project must be a project UUID")
				}
				e.projectID = &id
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			e.cfg = cfg

			db, err := persistence.NewDatabase(&cfg.Database, log)
			if err != nil {
				return err
			}
			e.db = db
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.log != nil {
				e.close()
			}
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&project, "project", "", "Project UUID to operate on")

	root.AddCommand(newReconcileCommand(e), newSummaryCommand(e))
	return root
}
