package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantbr/indice/internal/api"
	"github.com/quantbr/indice/internal/api/handlers"
	"github.com/quantbr/indice/internal/index"
)

// apiCmd starts the read-only operations API
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only HTTP API",
	Long: `Starts the operations API server.

Endpoints:
  GET /health
  GET /api/indices
  GET /api/indices/{ticker}
  GET /api/indices/{ticker}/points
  GET /api/indices/{ticker}/composition
  GET /api/indices/{ticker}/rebalances

Example:
  go run ./cmd/indice api`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	rt, err := initRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	definitions := index.NewDefinitionRepository(rt.db.Pool)
	compositions := index.NewCompositionRepository(rt.db.Pool)
	points := index.NewPointRepository(rt.db.Pool)
	auditLog := index.NewRebalanceLogRepository(rt.db.Pool)

	indexHandler := handlers.NewIndexHandler(definitions, compositions, points, auditLog, rt.log)
	router := api.NewRouter(indexHandler, nil, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("API server listening on :%s\n", rt.cfg.APIPort)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	fmt.Println("\nShutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
