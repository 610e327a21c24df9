package main

import (
	"invoice-bookkeeping-backend/internal/currency"
	"invoice-bookkeeping-backend/internal/services/repair"

	"github.com/spf13/cobra"
)

func newRepairCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Find and fix known data problems",
	}

	service := func() (*repair.Service, error) {
		if err := a.openDB(); err != nil {
			return nil, err
		}
		return repair.NewService(a.db, a.aggregator(), a.log), nil
	}

	largeTotals := &cobra.Command{
		Use:   "large-totals",
		Short: "Divide totals above the threshold by 100",
		Long: `Totals entered with the decimal separator dropped ("5648956278" for
56.489.562,78) end up 100 times too large. This divides every total above
the threshold by 100 and recomputes the stats snapshot once.`,
		Example: `  bookkeeper repair large-totals --dry-run
  bookkeeper repair large-totals --threshold 500000000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := service()
			if err != nil {
				return err
			}
			threshold := a.cfg.Repair.LargeTotalThreshold
			if raw, _ := cmd.Flags().GetString("threshold"); raw != "" {
				if threshold, err = currency.Normalize(raw); err != nil {
					return err
				}
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			report, err := svc.FixLargeTotals(cmd.Context(), threshold, dryRun)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	largeTotals.Flags().String("threshold", "", "Totals above this are divided (default repair.large_total_threshold)")
	largeTotals.Flags().Bool("dry-run", false, "Report the changes without writing them")

	duplicates := &cobra.Command{
		Use:   "duplicates",
		Short: "List invoice numbers stored more than once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := service()
			if err != nil {
				return err
			}
			report, err := svc.FindDuplicates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	overflow := &cobra.Command{
		Use:   "overflow",
		Short: "List totals that would not fit numeric(p,2)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := service()
			if err != nil {
				return err
			}
			precision, _ := cmd.Flags().GetInt("precision")
			report, err := svc.CheckOverflow(cmd.Context(), precision)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	overflow.Flags().Int("precision", repair.DefaultOverflowPrecision, "Target numeric precision")

	cmd.AddCommand(largeTotals, duplicates, overflow)
	return cmd
}
