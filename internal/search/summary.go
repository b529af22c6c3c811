package search

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/gonum/stat"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// StrategySummary is the best-of-generation line for one strategy
type StrategySummary struct {
	Strategy    string                  `json:"strategy"`
	Members     int                     `json:"members"`
	Evaluated   int                     `json:"evaluated"`
	Failed      int                     `json:"failed"`
	Best        *contracts.ScoredResult `json:"best,omitempty"`
	MeanFitness float64                 `json:"mean_fitness"`
	StdFitness  float64                 `json:"std_fitness"`
}

// GenerationSummary describes one finished generation
type GenerationSummary struct {
	RunID      string            `json:"run_id"`
	Generation int               `json:"generation"`
	Dispatched int               `json:"dispatched"`
	Failed     int               `json:"failed"`
	Duration   time.Duration     `json:"duration"`
	Strategies []StrategySummary `json:"strategies"`
}

// Strategy returns the summary line of one strategy
func (g *GenerationSummary) Strategy(name string) (StrategySummary, bool) {
	for _, s := range g.Strategies {
		if s.Strategy == name {
			return s, true
		}
	}
	return StrategySummary{}, false
}

// summarize builds the per-strategy summary from a generation record
func summarize(record *contracts.GenerationRecord, strategies []string, members map[string]int, failed map[string]int) *GenerationSummary {
	summary := &GenerationSummary{
		RunID:      record.RunID,
		Generation: record.Generation,
		Dispatched: record.Dispatched,
		Failed:     record.Failed,
		Duration:   record.FinishedAt.Sub(record.StartedAt),
	}

	for _, name := range strategies {
		line := StrategySummary{
			Strategy: name,
			Members:  members[name],
			Failed:   failed[name],
		}

		var fitness []float64
		for _, r := range record.Results {
			if r.Strategy == name {
				fitness = append(fitness, r.Fitness)
			}
		}
		line.Evaluated = len(fitness)

		if best, ok := record.Best(name); ok {
			line.Best = &best
		}
		switch len(fitness) {
		case 0:
		case 1:
			line.MeanFitness = fitness[0]
		default:
			line.MeanFitness, line.StdFitness = stat.MeanStdDev(fitness, nil)
		}

		summary.Strategies = append(summary.Strategies, line)
	}

	return summary
}

// Render writes the best-of-generation table
func (g *GenerationSummary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Generation %d's Best Results", g.Generation))
	t.AppendHeader(table.Row{"Strategy", "Evaluated", "Failed", "Fitness", "VS Buy Hold (%)", "End Balance", "Win/Loss", "Mean", "StdDev"})

	for _, s := range g.Strategies {
		row := table.Row{s.Strategy, fmt.Sprintf("%d/%d", s.Evaluated, s.Members), s.Failed}
		if s.Best != nil {
			row = append(row,
				round(s.Best.Fitness),
				s.Best.Result.VsBuyHold,
				s.Best.Result.EndBalance,
				s.Best.Result.WinLossRatio.String(),
				round(s.MeanFitness),
				round(s.StdFitness),
			)
		} else {
			row = append(row, "-", "-", "-", "-", "-", "-")
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{"", "", g.Failed, "", "", "", "", "", g.Duration.Round(time.Second).String()})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func round(v float64) float64 {
	return contracts.Round(v, contracts.DerivedPrecision)
}
