package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/genome"
)

// strategiesCmd lists the searchable strategies and their gene domains
var strategiesCmd = &cobra.Command{
	Use:   "strategies [name...]",
	Short: "List strategies and their parameter domains",
	Long: `Prints every registered strategy with the domain of each tunable gene.
A YAML file given with --strategies-file (or DARWIN_STRATEGIES_FILE)
adds strategies and overrides built-in ones.

Example:
  go run ./cmd/darwin strategies
  go run ./cmd/darwin strategies macd trend_ema
  go run ./cmd/darwin strategies --strategies-file=strategies.yaml`,
	RunE: listStrategies,
}

var strategiesFile string

func init() {
	rootCmd.AddCommand(strategiesCmd)
	strategiesCmd.Flags().StringVar(&strategiesFile, "strategies-file", "", "YAML strategies override")
}

func listStrategies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strategiesFile != "" {
		cfg.Darwin.StrategiesFile = strategiesFile
	}

	registry, err := loadRegistry(cfg.Darwin.StrategiesFile)
	if err != nil {
		return err
	}

	selection := genome.SelectAll
	if len(args) > 0 {
		selection = strings.Join(args, ",")
	}
	strategies, err := registry.Select(selection)
	if err != nil {
		return err
	}

	t := newTable(fmt.Sprintf("%d strategies", len(strategies)))
	t.AppendHeader(table.Row{"Strategy", "Gene", "Kind", "Domain"})
	for _, s := range strategies {
		rows := strategyRows(s)
		t.AppendRows(rows)
		t.AppendSeparator()
	}
	t.Render()
	return nil
}

// strategyRows renders one strategy: genes first, then fixed arguments
func strategyRows(s *genome.Strategy) []table.Row {
	rows := make([]table.Row, 0, s.Schema.Len()+len(s.Fixed))
	for _, g := range s.Schema.Genes() {
		rows = append(rows, table.Row{s.Name, g.Name, g.Kind, g.Domain()})
	}
	for _, a := range s.Fixed {
		rows = append(rows, table.Row{s.Name, a.Name, "fixed", a.Value})
	}
	return rows
}
