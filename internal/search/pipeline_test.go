package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realjkeee/zenbot/internal/evaluation"
	"github.com/realjkeee/zenbot/internal/export"
)

// scriptedRunner answers each evaluator command with a canned stdout
type scriptedRunner struct {
	outputs map[string]string
}

func (s *scriptedRunner) Run(_ context.Context, cmd evaluation.Command) (evaluation.Output, error) {
	out, ok := s.outputs[cmd.String()]
	if !ok {
		return evaluation.Output{ExitCode: 1}, fmt.Errorf("unexpected command %s", cmd)
	}
	return evaluation.Output{Stdout: out}, nil
}

func macdReport(vsBuyHold float64) string {
	return fmt.Sprintf(`{
  "strategy": "macd",
  "period": "35m",
  "min_periods": 52,
  "order_type": "maker",
  "currency_capital": 1000,
  "days": 10
}
end balance: %.8f (0.00%%)
buy hold: 1000.00000000 (0.00%%)
vs. buy hold: %.2f%%
win/loss: 2/1
error rate: 0.00%%
`, 1000*(1+vsBuyHold/100), vsBuyHold)
}

func TestRunGeneration_ThroughPipelineAndCSV(t *testing.T) {
	pops := newPopulations(t, 4, "macd")
	sim := evaluation.SimConfig{Selector: "gdax.BTC-USD", Days: 10, CurrencyCapital: 1000}
	builder := evaluation.NewCommandBuilder("./zenbot.sh")

	// member 0 prints no parameter echo; the rest score 30, 10 and 20
	reports := []string{
		"end balance: 1100.00000000 (10.00%)\nbuy hold: 1000.00000000 (0.00%)\nvs. buy hold: 10.00%\n",
		macdReport(30),
		macdReport(10),
		macdReport(20),
	}
	runner := &scriptedRunner{outputs: map[string]string{}}
	for i, m := range pops[0].Members() {
		cmd, err := builder.Sim(sim, pops[0].Strategy(), m)
		require.NoError(t, err)
		require.NotContains(t, runner.outputs, cmd.String(), "members must be distinct")
		runner.outputs[cmd.String()] = reports[i]
	}

	dir := t.TempDir()
	finished := time.Unix(1700000000, 0)
	pipeline := evaluation.NewPipeline(builder, runner, sim, evaluation.Options{Workers: 2}, nil)
	loop, err := NewLoop(Config{RunID: "csv"}, pipeline, nil, pops, nil,
		WithSinks(export.NewCSVSink(dir)),
		WithCheckpointStores(export.NewCheckpointFile(dir)),
		WithClock(func() time.Time { return finished }))
	require.NoError(t, err)

	summary, err := loop.RunGeneration(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "backtesting_1700000000_gen_1.csv"))
	require.NoError(t, err)
	rows, err := export.ReadResults(data)
	require.NoError(t, err)

	want := []float64{30, 20, 10}
	require.Len(t, rows, len(want))
	for i, vs := range want {
		assert.Equal(t, vs, rows[i].VsBuyHold)
		assert.Equal(t, "macd", rows[i].Strategy)
		assert.Equal(t, "35m", rows[i].Period)
		assert.Equal(t, 2, rows[i].Wins)
		assert.Equal(t, 1, rows[i].Losses)
		if i > 0 {
			assert.Greater(t, rows[i-1].Fitness, rows[i].Fitness)
		}
	}

	line, found := summary.Strategy("macd")
	require.True(t, found)
	assert.Equal(t, 3, line.Evaluated)
	assert.Equal(t, 1, line.Failed)

	assert.FileExists(t, filepath.Join(dir, "generation_data_1700000000_gen_1.json"))
	assert.Equal(t, 4, pops[0].Size())
	assert.Equal(t, 2, loop.Generation())
}
