package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "indice",
	Short: "Theoretical index engine for B3 equities",
	Long: `indice - theoretical index computation and rebalancing engine

Maintains rule-based stock indices: daily total-return points,
methodology-driven screening and hysteresis-controlled rebalancing.

Usage:
  go run ./cmd/indice [command]

Examples:
  go run ./cmd/indice setup config/methodology/iqbx.yaml
  go run ./cmd/indice calculate
  go run ./cmd/indice rebalance
  go run ./cmd/indice scheduler start
  go run ./cmd/indice api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
