package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// rebalanceCmd runs the screening/rebalance batch immediately
var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Screen the market and rebalance every index",
	Long: `Runs the screening and rebalance batch outside of its schedule.

The market universe is fetched once, each index's methodology is
applied to it, and membership changes (exits before entries) are
written together with fresh target weights and the audit log.

Example:
  go run ./cmd/indice rebalance`,
	RunE: runRebalance,
}

func init() {
	rootCmd.AddCommand(rebalanceCmd)
}

func runRebalance(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	fmt.Println("Running screening/rebalance...")

	if err := rt.service.RebalanceAll(ctx); err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}

	fmt.Println("✅ Rebalance completed")
	return nil
}
