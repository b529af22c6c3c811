package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "darwin",
	Short: "Generational parameter search for zenbot strategies",
	Long: `darwin evolves populations of strategy parameter sets by running the
zenbot simulator on every member, scoring the reports and breeding the
next generation from the best performers.

Usage:
  go run ./cmd/darwin [command]

Examples:
  go run ./cmd/darwin run --selector=bitfinex.ETH-USD --days=10 --currency_capital=5000 --use_strategies=macd,trend_ema
  go run ./cmd/darwin strategies
  go run ./cmd/darwin parse sim_output.txt
  go run ./cmd/darwin checkpoint inspect generation_data_1700000000_gen_3.json`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
