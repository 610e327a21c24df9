package main

import (
	"encoding/json"
	"fmt"
	"io"

	"invoice-bookkeeping-backend/internal/config"
	"invoice-bookkeeping-backend/internal/logger"
	"invoice-bookkeeping-backend/internal/migration"
	"invoice-bookkeeping-backend/internal/services/stats"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "1.0.0"

// app holds what the subcommands share. Everything is opened lazily so
// commands like normalize never touch the database.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log.Named("bookkeeper")
	return nil
}

// openDB connects and, when configured, brings the schema up to date.
func (a *app) openDB() error {
	if a.db != nil {
		return nil
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	db, err := config.InitDB(a.cfg.Database, a.log)
	if err != nil {
		return err
	}
	if err := migration.Bootstrap(a.cfg.Database, db, a.log); err != nil {
		_ = config.CloseDB(db)
		return err
	}
	a.db = db
	return nil
}

func (a *app) aggregator() *stats.Aggregator {
	return stats.NewAggregator(a.db, a.log, stats.WithTolerance(a.cfg.Stats.DriftTolerance))
}

func (a *app) close() {
	if a.db != nil {
		_ = config.CloseDB(a.db)
		a.db = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "bookkeeper",
		Short: "Offline maintenance for the invoice bookkeeping database",
		Long: `bookkeeper runs the jobs that do not belong in the HTTP server:
schema migrations, stats recompute and reconciliation, data repair,
CSV import and money normalization.

Configuration is read the same way the server reads it: .env, config.toml
and BOOKKEEPING_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newStatsCmd(a),
		newRepairCmd(a),
		newImportCmd(a),
		newNormalizeCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
