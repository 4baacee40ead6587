package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantbr/indice/internal/index"
)

// statusCmd shows the state of every index
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every index with its latest point and composition",
	Long: `Prints each index definition together with its latest history point
and current membership size.

Example:
  go run ./cmd/indice status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	definitions := index.NewDefinitionRepository(rt.db.Pool)
	compositions := index.NewCompositionRepository(rt.db.Pool)
	points := index.NewPointRepository(rt.db.Pool)

	defs, err := definitions.List(ctx)
	if err != nil {
		return fmt.Errorf("list indices: %w", err)
	}

	if len(defs) == 0 {
		fmt.Println("No indices configured. Run 'indice setup' first.")
		return nil
	}

	fmt.Printf("Indices: %d\n\n", len(defs))

	for _, def := range defs {
		fmt.Printf("📈 %s - %s\n", def.Ticker, def.Name)
		fmt.Printf("   Methodology: %s (hash %s)\n", def.Methodology.Meta.MethodologyID, def.MethodologyHash[:12])

		latest, err := points.GetLatestPoint(ctx, def.ID)
		if err != nil {
			return fmt.Errorf("latest point for %s: %w", def.Ticker, err)
		}
		if latest == nil {
			fmt.Println("   Points: none yet")
		} else {
			fmt.Printf("   Latest Point: %.4f (%+.4f%%) on %s\n",
				latest.Points, latest.DailyChange, latest.Date.Format("2006-01-02"))
		}

		snapshot, err := compositions.GetComposition(ctx, def.ID)
		if err != nil {
			return fmt.Errorf("composition for %s: %w", def.Ticker, err)
		}
		fmt.Printf("   Members: %d (target weight %.4f)\n", len(snapshot.Positions), snapshot.TotalWeight())

		fmt.Println()
	}

	return nil
}
