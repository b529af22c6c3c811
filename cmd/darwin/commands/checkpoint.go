package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/export"
	"github.com/realjkeee/zenbot/internal/genome"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Checkpoint utilities",
}

// checkpointInspectCmd validates a checkpoint against the registry
var checkpointInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Validate a checkpoint and summarize its populations",
	Long: `Loads a generation_data_*.json checkpoint exactly as run --population_data
would, and prints the members restored per strategy. Strategies that are
not registered are reported as ignored.

Example:
  go run ./cmd/darwin checkpoint inspect generation_data_1700000000_gen_3.json
  go run ./cmd/darwin checkpoint inspect gen.json --members`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpointInspect,
}

var (
	checkpointMembers    bool
	checkpointStrategies string
)

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointInspectCmd)

	checkpointInspectCmd.Flags().BoolVar(&checkpointMembers, "members", false, "print every restored member")
	checkpointInspectCmd.Flags().StringVar(&checkpointStrategies, "strategies-file", "", "YAML strategies override")
}

func runCheckpointInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if checkpointStrategies != "" {
		cfg.Darwin.StrategiesFile = checkpointStrategies
	}

	registry, err := loadRegistry(cfg.Darwin.StrategiesFile)
	if err != nil {
		return err
	}
	strategies, err := registry.Select(genome.SelectAll)
	if err != nil {
		return err
	}

	cp, err := export.LoadCheckpoint(args[0], strategies)
	if err != nil {
		return err
	}

	t := newTable(args[0])
	t.AppendHeader(table.Row{"Strategy", "Members", "Evaluated"})
	total := 0
	for _, s := range strategies {
		members := cp.Members(s.Name)
		if len(members) == 0 {
			continue
		}
		evaluated := 0
		for _, m := range members {
			if m.Evaluated() {
				evaluated++
			}
		}
		total += len(members)
		t.AppendRow(table.Row{s.Name, len(members), evaluated})
	}
	t.AppendFooter(table.Row{"Total", total, ""})
	t.Render()

	if len(cp.Ignored) > 0 {
		fmt.Printf("\n⚠️  Ignored (not registered): %v\n", cp.Ignored)
	}

	if checkpointMembers {
		for _, s := range strategies {
			members := cp.Members(s.Name)
			if len(members) == 0 {
				continue
			}
			mt := newTable(s.Name)
			mt.AppendHeader(table.Row{"#", "Parameters"})
			for i, m := range members {
				mt.AppendRow(table.Row{i, m.Key()})
			}
			mt.Render()
		}
	}
	return nil
}
