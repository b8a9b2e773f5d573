package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "Market data quality monitor",
	Long: `MarketPulse - Data Quality Monitor

Polls the collection pipeline's quality API, scores and grades the
feed, and serves the aggregate state over REST and websocket.

Usage:
  go run ./cmd/marketpulse [command]

Examples:
  go run ./cmd/marketpulse start
  go run ./cmd/marketpulse start --port 8090
  go run ./cmd/marketpulse status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
