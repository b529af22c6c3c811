package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/realjkeee/zenbot/internal/store"
	"github.com/realjkeee/zenbot/pkg/redis"
)

// statusCmd reads a running search's leaderboards from Redis
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the leaderboards of the latest run from Redis",
	Long: `Reads the leaderboards a running (or finished) search mirrored to Redis.
Requires REDIS_ENABLED=true on both sides.

Example:
  go run ./cmd/darwin status
  go run ./cmd/darwin status --strategy=macd --limit=5 --run=<run id>`,
	RunE: runStatus,
}

var (
	statusRun      string
	statusStrategy string
	statusLimit    int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusRun, "run", "", "run id (default latest)")
	statusCmd.Flags().StringVar(&statusStrategy, "strategy", "", "only this strategy")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 5, "entries per strategy")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled {
		return fmt.Errorf("redis is disabled (set REDIS_ENABLED=true)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rc.Close()
	mirror := store.NewRedisMirror(rc)

	runID := statusRun
	if runID == "" {
		latest, ok, err := mirror.LatestRun(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No run mirrored yet")
			return nil
		}
		runID = latest
	}

	strategies := []string{statusStrategy}
	if statusStrategy == "" {
		snapshot, ok, err := mirror.Checkpoint(ctx, runID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("No checkpoint for run %s yet\n", runID)
			return nil
		}
		strategies = snapshot.Strategies()
	}

	PrintHeader("darwin status", fmt.Sprintf("Run ID: %s", runID))
	for _, s := range strategies {
		leaders, err := mirror.Leaders(ctx, runID, s, statusLimit)
		if err != nil {
			return err
		}

		t := newTable(s)
		t.AppendHeader(table.Row{"Fitness", "VS Buy Hold (%)", "End Balance", "W/L", "Gen", "Parameters"})
		for _, e := range leaders {
			t.AppendRow(table.Row{e.Fitness, e.VsBuyHold, e.EndBalance, e.WinLoss.String(), e.Generation, e.Key})
		}
		t.Render()
	}
	return nil
}
