package main

import (
	"fmt"

	"invoice-bookkeeping-backend/internal/migration"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
		Example: `  bookkeeper migrate up
  bookkeeper migrate down --steps 1
  bookkeeper migrate version`,
	}

	open := func() (*migration.Migrator, error) {
		if err := a.loadConfig(); err != nil {
			return nil, err
		}
		if a.cfg.Database.Driver != "postgres" {
			return nil, fmt.Errorf("migrate needs database.driver=postgres, got %q", a.cfg.Database.Driver)
		}
		return migration.Open(a.cfg.Database.URL(), a.log)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Up()
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 0 {
				return fmt.Errorf("--steps must be positive")
			}
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			if steps > 0 {
				return m.Steps(-steps)
			}
			return m.Down()
		},
	}
	down.Flags().Int("steps", 0, "Number of migrations to roll back (0 = all)")

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			defer m.Close()
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, ver)
	return cmd
}
