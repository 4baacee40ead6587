package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// calculateCmd runs the mark-to-market batch immediately
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute today's point for every index",
	Long: `Runs the daily mark-to-market batch outside of its schedule.

Each index carries yesterday's realized weights forward, fetches
current prices and cash dividends, and appends today's total-return
point. Indices already computed today are skipped via checkpoints.

Example:
  go run ./cmd/indice calculate`,
	RunE: runCalculate,
}

func init() {
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	fmt.Println("Running mark-to-market...")

	if err := rt.service.MarkToMarketAll(ctx); err != nil {
		return fmt.Errorf("mark-to-market: %w", err)
	}

	fmt.Println("✅ Mark-to-market completed")
	return nil
}
