package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	symbolsFile string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "investanalytics",
	Short: "InvestAnalytics - stock forecast cache service",
	Long: `InvestAnalytics Unified CLI

Serves weekly price forecasts for stocks and crypto pairs. Forecasts are
cached in PostgreSQL and regenerated when older than the cache TTL.

Usage:
  go run ./cmd/investanalytics [command]

Examples:
  go run ./cmd/investanalytics api
  go run ./cmd/investanalytics scheduler start
  go run ./cmd/investanalytics forecast AAPL
  go run ./cmd/investanalytics migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&symbolsFile, "symbols", "", "symbol lists YAML (default: SYMBOLS_FILE or built-in lists)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
