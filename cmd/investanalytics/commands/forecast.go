package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tylerle0/InvestAnalytics/internal/api/handlers"
	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

// forecastCmd regenerates one symbol and prints the stored entry
var forecastCmd = &cobra.Command{
	Use:   "forecast [symbol]",
	Short: "Regenerate and print a forecast",
	Long: `Run the refresh pipeline for one symbol, ignoring the cache, and print
the stored result as the /api/predictions endpoint would.

Example:
  go run ./cmd/investanalytics forecast AAPL
  go run ./cmd/investanalytics forecast btc-usd --cached`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

var forecastCached bool

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().BoolVar(&forecastCached, "cached", false, "go through the freshness gate instead of forcing a refresh")
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	sym, err := contracts.ParseSymbol(args[0])
	if err != nil {
		return err
	}

	var entry *contracts.CacheEntry
	if forecastCached {
		entry, err = a.orchestrator.Request(ctx, sym.Ticker)
	} else {
		if err := a.orchestrator.Refresh(ctx, sym.Ticker); err != nil {
			return fmt.Errorf("refresh %s: %w", sym.Ticker, err)
		}
		entry, err = a.repo.Read(ctx, sym.Key)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", sym.Ticker, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(handlers.NewPredictionsResponse(entry))
}
