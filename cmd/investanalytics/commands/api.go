package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tylerle0/InvestAnalytics/internal/api"
	"github.com/tylerle0/InvestAnalytics/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the REST API server.

This command:
- serves forecasts from the cache, regenerating stale entries
- runs the popular-symbol refresher and cache pruning in-process
  (unless --scheduler=false or REFRESHER_ENABLED=false)
- exposes Prometheus metrics on METRICS_PORT

Endpoints:
  GET  /health
  GET  /api/predictions?symbol=AAPL
  GET  /api/currentinfo?symbol=AAPL
  GET  /api/news?symbol=AAPL
  GET  /api/stream          (websocket refresh events)

Example:
  go run ./cmd/investanalytics api
  go run ./cmd/investanalytics api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT or 5000)")
	apiCmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run background jobs in-process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	if err := a.migrate(ctx); err != nil {
		return err
	}

	// Background jobs
	if withScheduler && a.cfg.Refresher.Enabled {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Metrics
	var metricsServer *http.Server
	if a.cfg.MetricsEnabled {
		metricsServer = &http.Server{
			Addr:              ":" + a.cfg.MetricsPort,
			Handler:           a.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	router := api.NewRouter(api.Routes{
		Forecast: handlers.NewForecastHandler(a.orchestrator, a.aggregator, log),
		Health:   handlers.NewHealthHandler(a.db, "investanalytics"),
		Stream:   a.hub,
		Metrics:  a.metrics,
	}, log)

	server := api.New(a.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
