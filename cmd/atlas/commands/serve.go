package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AllanBico/atlas/internal/api"
	"github.com/AllanBico/atlas/internal/stream"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report API and live event stream",
	Long: `Starts the HTTP server.

Endpoints:
  GET /health
  GET /ws                                  - live event stream
  GET /api/backtest-runs?page&pageSize&job_id
  GET /api/backtests/{runId}
  GET /api/backtests/{runId}/equity-curve
  GET /api/backtests/{runId}/trades?page&pageSize
  GET /api/optimizations?page&pageSize
  GET /api/optimizations/{jobId}

Example:
  atlas serve --port 8080`,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.HTTPPort = servePort
	}
	ctx, cancel := signalContext()
	defer cancel()

	hub := stream.NewHub(log, 0)
	// Server logs also reach the live view. The hub keeps the plain logger.
	appLog := stream.NewTeeLogger(log, hub)

	store, err := openStore(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer store.Close()

	router := api.NewRouter(api.NewHandler(store, appLog), hub, log)
	server := api.NewServer(fmt.Sprintf(":%d", cfg.HTTPPort), router, appLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		hub.Close()
		return err
	case <-ctx.Done():
	}

	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
