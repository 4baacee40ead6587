package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantbr/indice/internal/methodology"
)

var (
	setupTicker string
	setupName   string
)

// setupCmd creates an index from a methodology file
var setupCmd = &cobra.Command{
	Use:   "setup [methodology.yaml]",
	Short: "Create an index and its initial composition",
	Long: `Creates an index definition from a methodology YAML file, runs the
initial screening and writes the first composition plus the baseline
point of 100.

Setup is idempotent: re-running it against an existing index with a
populated composition is a no-op.

Example:
  go run ./cmd/indice setup config/methodology/iqbx.yaml --ticker IQBX --name "Indice Quant Brasil"`,
	Args: cobra.ExactArgs(1),
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&setupTicker, "ticker", "", "index ticker (required)")
	setupCmd.Flags().StringVar(&setupName, "name", "", "index display name (required)")
	setupCmd.MarkFlagRequired("ticker")
	setupCmd.MarkFlagRequired("name")
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, _, err := methodology.Load(args[0])
	if err != nil {
		return fmt.Errorf("load methodology: %w", err)
	}

	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Printf("Setting up index %s (%s)...\n", setupTicker, setupName)

	def, err := rt.service.Setup(ctx, setupTicker, setupName, *cfg)
	if err != nil {
		return fmt.Errorf("setup index: %w", err)
	}

	fmt.Printf("✅ Index %s ready (id=%d, methodology %s)\n", def.Ticker, def.ID, def.MethodologyHash[:12])
	return nil
}
