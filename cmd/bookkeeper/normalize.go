package main

import (
	"fmt"

	"invoice-bookkeeping-backend/internal/currency"

	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "normalize <raw...>",
		Short:   "Show how money text would be stored",
		Example: `  bookkeeper normalize "Rp 56.489.562,78" 165.522`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			failed := 0
			for _, raw := range args {
				a, err := currency.Normalize(raw)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%q\terror: %v\n", raw, err)
					continue
				}
				fmt.Fprintf(w, "%q\t%s\t%s\n", raw, a, currency.FormatIDR(a))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d values could not be normalized", failed, len(args))
			}
			return nil
		},
	}
}
