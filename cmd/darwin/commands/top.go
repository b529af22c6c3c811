package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/store"
	"github.com/realjkeee/zenbot/pkg/database"
)

// topCmd reads the best stored results from PostgreSQL
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the best results stored in PostgreSQL",
	Long: `Queries darwin.results for the highest fitness phenotypes across all
runs. Requires DATABASE_URL.

Example:
  go run ./cmd/darwin top
  go run ./cmd/darwin top --strategy=macd --limit=20`,
	RunE: runTop,
}

var (
	topStrategy string
	topLimit    int
)

func init() {
	rootCmd.AddCommand(topCmd)
	topCmd.Flags().StringVar(&topStrategy, "strategy", "", "only this strategy")
	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of rows")
}

func runTop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	results, err := store.NewRepository(db.Pool).TopResults(ctx, topStrategy, topLimit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results stored yet")
		return nil
	}

	t := newTable(fmt.Sprintf("Top %d", len(results)))
	t.AppendHeader(table.Row{"Fitness", "VS Buy Hold (%)", "W/L", "Strategy", "Gen", "Run", "Parameters"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Fitness, r.VsBuyHold, r.WinLoss.String(), r.Strategy, r.Generation, shortID(r.RunID), r.Key,
		})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
