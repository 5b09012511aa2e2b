package main

import (
	"os"

	"github.com/tylerle0/InvestAnalytics/cmd/investanalytics/commands"
)

// main is the entry point for the InvestAnalytics CLI
// go run ./cmd/investanalytics [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
