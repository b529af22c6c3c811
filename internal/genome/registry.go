package genome

import (
	"errors"
	"fmt"
	"strings"
)

// SelectAll selects every registered strategy
const SelectAll = "all"

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrNoStrategies    = errors.New("no strategies selected")
)

// Arg is a fixed evaluator argument passed with every run of a strategy
type Arg struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Strategy binds a strategy name to its gene schema and fixed arguments
type Strategy struct {
	Name   string
	Schema *Schema
	Fixed  []Arg
}

// Registry maps strategy names to strategies. Immutable after construction.
type Registry struct {
	strategies map[string]*Strategy
	order      []string
}

// NewRegistry builds a registry, rejecting duplicates
func NewRegistry(strategies ...*Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[string]*Strategy, len(strategies))}
	for _, s := range strategies {
		if s.Name == "" {
			return nil, fmt.Errorf("strategy name is required")
		}
		if s.Schema == nil {
			return nil, fmt.Errorf("strategy %s: schema is required", s.Name)
		}
		if _, dup := r.strategies[s.Name]; dup {
			return nil, fmt.Errorf("duplicate strategy %q", s.Name)
		}
		r.strategies[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

// Get returns a strategy by name
func (r *Registry) Get(name string) (*Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns strategy names in registration order
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of strategies
func (r *Registry) Len() int {
	return len(r.order)
}

// Select resolves a selection ("all" or "a,b,c") into strategies.
// Unknown names and empty selections are errors.
func (r *Registry) Select(selection string) ([]*Strategy, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || selection == SelectAll {
		if r.Len() == 0 {
			return nil, ErrNoStrategies
		}
		out := make([]*Strategy, 0, r.Len())
		for _, name := range r.order {
			out = append(out, r.strategies[name])
		}
		return out, nil
	}

	seen := make(map[string]bool)
	var out []*Strategy
	for _, name := range strings.Split(selection, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		s, ok := r.strategies[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		seen[name] = true
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, ErrNoStrategies
	}
	return out, nil
}

// Merge returns a new registry where other's strategies replace or extend r's
func (r *Registry) Merge(other *Registry) *Registry {
	merged := &Registry{strategies: make(map[string]*Strategy, r.Len()+other.Len())}
	for _, name := range r.order {
		merged.strategies[name] = r.strategies[name]
		merged.order = append(merged.order, name)
	}
	for _, name := range other.order {
		if _, exists := merged.strategies[name]; !exists {
			merged.order = append(merged.order, name)
		}
		merged.strategies[name] = other.strategies[name]
	}
	return merged
}

// CommonGenes are shared by every built-in strategy
func CommonGenes(minPeriodsMax int) []Gene {
	return []Gene{
		RangePeriod("period", 1, 120, "m"),
		Range("min_periods", 1, minPeriodsMax),
		RangeFloat("markup_pct", 0, 5),
		MakerTaker("order_type"),
		Range0("sell_stop_pct", 1, 50),
		Range0("buy_stop_pct", 1, 50),
		Range0("profit_stop_enable_pct", 1, 20),
		Range("profit_stop_pct", 1, 20),
	}
}

func builtin(name string, minPeriodsMax int, fixed []Arg, genes ...Gene) *Strategy {
	return &Strategy{
		Name:   name,
		Schema: MustSchema(append(CommonGenes(minPeriodsMax), genes...)...),
		Fixed:  fixed,
	}
}

// DefaultRegistry returns the built-in strategy table
// ⭐ SSOT: 기본 전략/유전자 범위 테이블
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		builtin("cci_srsi", 200, nil,
			Range("cci_periods", 1, 200),
			Range("rsi_periods", 1, 200),
			Range("srsi_periods", 1, 200),
			Range("srsi_k", 1, 50),
			Range("srsi_d", 1, 50),
			Range("oversold_rsi", 1, 100),
			Range("overbought_rsi", 1, 100),
			Range("oversold_cci", -100, 100),
			Range("overbought_cci", 1, 100),
			RangeFloat("constant", 0.001, 0.05),
		),
		builtin("srsi_macd", 200, nil,
			Range("rsi_periods", 1, 200),
			Range("srsi_periods", 1, 200),
			Range("srsi_k", 1, 50),
			Range("srsi_d", 1, 50),
			Range("oversold_rsi", 1, 100),
			Range("overbought_rsi", 1, 100),
			Range("ema_short_period", 1, 20),
			Range("ema_long_period", 20, 100),
			Range("signal_period", 1, 20),
			Range("up_trend_threshold", 0, 20),
			Range("down_trend_threshold", 0, 20),
		),
		builtin("macd", 200, nil,
			Range("ema_short_period", 1, 20),
			Range("ema_long_period", 20, 100),
			Range("signal_period", 1, 20),
			Range("up_trend_threshold", 0, 50),
			Range("down_trend_threshold", 0, 50),
			Range("overbought_rsi_periods", 1, 50),
			Range("overbought_rsi", 20, 100),
		),
		builtin("rsi", 200, nil,
			Range("rsi_periods", 1, 200),
			Range("oversold_rsi", 1, 100),
			Range("overbought_rsi", 1, 100),
			Range("rsi_recover", 1, 100),
			Range("rsi_drop", 0, 100),
			Range("rsi_divisor", 1, 10),
		),
		builtin("sar", 100, nil,
			RangeFloat("sar_af", 0.01, 1.0),
			RangeFloat("sar_max_af", 0.01, 1.0),
		),
		builtin("speed", 100, nil,
			Range("baseline_periods", 1, 5000),
			RangeFloat("trigger_factor", 0.1, 10),
		),
		builtin("trend_ema", 100, []Arg{{Name: "neutral_rate", Value: "auto"}},
			Range("trend_ema", 20, 20),
			Range("oversold_rsi_periods", 15, 25),
			Range("oversold_rsi", 20, 35),
		),
		builtin("trust_distrust", 100, nil,
			Range("sell_threshold", 1, 100),
			Range0("sell_threshold_max", 1, 100),
			Range("sell_min", 1, 100),
			Range("buy_threshold", 1, 100),
			Range0("buy_threshold_max", 1, 100),
			Range("greed", 1, 100),
		),
	)
	if err != nil {
		panic(err)
	}
	return r
}
