package export

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/realjkeee/zenbot/internal/contracts"
)

// ResultRow is one line of the generation result export
type ResultRow struct {
	Fitness      float64         `csv:"Fitness"`
	VsBuyHold    float64         `csv:"VS Buy Hold (%)"`
	WinLossRatio contracts.Ratio `csv:"Win/Loss Ratio"`
	Frequency    float64         `csv:"# Trades/Day"`
	Strategy     string          `csv:"Strategy"`
	OrderType    string          `csv:"Order Type"`
	EndBalance   float64         `csv:"Ending Balance ($)"`
	BuyHold      float64         `csv:"Buy Hold ($)"`
	Wins         int             `csv:"# Wins"`
	Losses       int             `csv:"# Losses"`
	Period       string          `csv:"Period"`
	MinPeriods   int             `csv:"Min Periods"`
	Days         int             `csv:"# Days"`
	Params       string          `csv:"Full Parameters"`
}

// NewResultRow flattens a scored result into an export row
func NewResultRow(r contracts.ScoredResult) ResultRow {
	strategy := r.Result.Strategy
	if strategy == "" {
		strategy = r.Strategy
	}
	return ResultRow{
		Fitness:      contracts.Round(r.Fitness, contracts.DerivedPrecision),
		VsBuyHold:    r.Result.VsBuyHold,
		WinLossRatio: r.Result.WinLossRatio,
		Frequency:    r.Result.Frequency,
		Strategy:     strategy,
		OrderType:    r.Result.OrderType,
		EndBalance:   r.Result.EndBalance,
		BuyHold:      r.Result.BuyHold,
		Wins:         r.Result.Wins,
		Losses:       r.Result.Losses,
		Period:       r.Result.Period,
		MinPeriods:   r.Result.MinPeriods,
		Days:         r.Result.Days,
		Params:       r.Result.Params,
	}
}

// CSVSink writes every generation to backtesting_<unix>_gen_<n>.csv
type CSVSink struct {
	dir string
}

// NewCSVSink creates a sink writing into dir
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

// Name implements contracts.ResultSink
func (s *CSVSink) Name() string {
	return "csv"
}

// Path returns the file a record is exported to.
// The generation keeps two generations finished within the same second apart.
func (s *CSVSink) Path(record *contracts.GenerationRecord) string {
	return filepath.Join(s.dir, fmt.Sprintf("backtesting_%d_gen_%d.csv", record.FinishedAt.Unix(), record.Generation))
}

// WriteResults implements contracts.ResultSink.
// Rows keep the record's order (best first); a generation with no result still gets a header.
func (s *CSVSink) WriteResults(_ context.Context, record *contracts.GenerationRecord) error {
	rows := make([]*ResultRow, 0, len(record.Results))
	for _, r := range record.Results {
		row := NewResultRow(r)
		rows = append(rows, &row)
	}

	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	if err := writeFileAtomic(s.Path(record), buf.Bytes()); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// ReadResults reads an exported results file back
func ReadResults(data []byte) ([]ResultRow, error) {
	var rows []ResultRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return rows, nil
}
