package main

import (
	"fmt"
	"os"

	"invoice-bookkeeping-backend/internal/services/importer"
	"invoice-bookkeeping-backend/internal/services/matching"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Bulk import invoices from a spreadsheet export",
		Long: `Imports a CSV export of the submission sheet. Columns are matched by
header name (Indonesian or English) and the delimiter is detected from the
first line. The stats snapshot is recomputed once after the import.`,
		Example: `  bookkeeper import export.csv --dry-run
  bookkeeper import export.csv --skip-duplicates=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			if err := a.openDB(); err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			skip, _ := cmd.Flags().GetBool("skip-duplicates")
			batch, _ := cmd.Flags().GetInt("batch-size")

			im := importer.New(a.db, matching.NewResolver(a.db, a.log), a.aggregator(), a.log)
			res, err := im.ImportCSV(cmd.Context(), f, importer.Options{
				DryRun:         dryRun,
				SkipDuplicates: skip,
				BatchSize:      batch,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Bool("dry-run", false, "Parse and validate without writing")
	cmd.Flags().Bool("skip-duplicates", true, "Skip invoice numbers already stored or repeated in the file")
	cmd.Flags().Int("batch-size", importer.DefaultBatchSize, "Rows per insert statement")
	return cmd
}
