// Command worker-dev serves a demo handler over pooled hosts with
// bindings configured from flags.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "worker-dev",
	Short: "Local development server for worker bindings",
	Long: `Local development server for worker bindings.

Bindings are declared with flags and exposed on every request's env:

  worker-dev serve --var GREETING=hello --kv CACHE --queue JOBS
  worker-dev serve --d1 DB=main --d1-dir ./data --script GEO=./geo.ts`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
