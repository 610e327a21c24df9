package main

import (
	"fmt"

	"invoice-bookkeeping-backend/internal/currency"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Inspect or rebuild the invoice stats snapshot",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the cached snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openDB(); err != nil {
				return err
			}
			snap, err := a.aggregator().Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "invoices:    %d\n", snap.Total)
			fmt.Fprintf(w, "paid:        %d\n", snap.Paid)
			fmt.Fprintf(w, "unpaid:      %d\n", snap.Unpaid)
			fmt.Fprintf(w, "total value: %s\n", currency.FormatIDR(snap.TotalValue))
			fmt.Fprintf(w, "updated:     %s\n", snap.LastUpdated.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	recompute := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild the snapshot from a full scan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openDB(); err != nil {
				return err
			}
			snap, err := a.aggregator().Recompute(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the snapshot with a full scan and repair drift",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openDB(); err != nil {
				return err
			}
			report, err := a.aggregator().Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.AddCommand(show, recompute, reconcile)
	return cmd
}
