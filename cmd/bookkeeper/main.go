// Command bookkeeper runs the offline maintenance jobs: schema migrations,
// stats reconciliation, data repair, CSV import and money normalization.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
