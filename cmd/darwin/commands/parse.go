package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/contracts"
	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/internal/report"
)

// parseCmd parses a saved simulator report
var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Parse a saved simulator report",
	Long: `Parses the output of one simulator run (as captured from zenbot sim)
and prints the metrics darwin would score it with. Use - to read stdin.

Example:
  go run ./cmd/darwin parse sim_output.txt
  ./zenbot.sh sim bitfinex.ETH-USD --strategy=macd | go run ./cmd/darwin parse - --capital=1000`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var parseCapital float64

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Float64Var(&parseCapital, "capital", 0, "starting capital used for ROI")
}

func runParse(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	result, err := report.Parse(string(data), parseCapital)
	if err != nil {
		return err
	}

	t := newTable(result.Strategy)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows(resultRows(result))
	t.Render()
	return nil
}

func resultRows(r *contracts.Result) []table.Row {
	return []table.Row{
		{"Fitness", contracts.Round(genome.Fitness(*r), contracts.DerivedPrecision)},
		{"VS Buy Hold (%)", r.VsBuyHold},
		{"End Balance", r.EndBalance},
		{"Buy Hold", r.BuyHold},
		{"ROI (%)", r.ROI},
		{"Wins / Losses", fmt.Sprintf("%d / %d", r.Wins, r.Losses)},
		{"Win/Loss Ratio", r.WinLossRatio.String()},
		{"Error Rate (%)", r.ErrorRate},
		{"Days", r.Days},
		{"Trades/Day", r.Frequency},
		{"Period", r.Period},
		{"Min Periods", r.MinPeriods},
		{"Order Type", r.OrderType},
		{"Params", r.Params},
	}
}
