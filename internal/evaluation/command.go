package evaluation

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/realjkeee/zenbot/internal/genome"
)

// SimConfig is the caller-owned simulation window shared by every task
type SimConfig struct {
	Selector        string   // e.g. gdax.BTC-USD
	Days            int      // 0 = evaluator default
	CurrencyCapital float64  // starting currency, also the ROI base
	AssetCapital    float64  // 0 = omitted
	Symmetrical     bool     // --symmetrical=true
	Start           string   // optional window start (evaluator syntax)
	End             string   // optional window end
	Extra           []string // raw extra evaluator args, passed verbatim
}

// Validate checks the simulation window
func (s SimConfig) Validate() error {
	if strings.TrimSpace(s.Selector) == "" {
		return fmt.Errorf("selector is required")
	}
	if s.Days < 0 {
		return fmt.Errorf("days must be >= 0")
	}
	if s.CurrencyCapital < 0 || s.AssetCapital < 0 {
		return fmt.Errorf("capital must be >= 0")
	}
	return nil
}

// Args renders the window as evaluator flags
func (s SimConfig) Args() []string {
	var args []string
	if s.Days > 0 {
		args = append(args, "--days="+strconv.Itoa(s.Days))
	}
	if s.CurrencyCapital > 0 {
		args = append(args, "--currency_capital="+formatFloat(s.CurrencyCapital))
	}
	if s.AssetCapital > 0 {
		args = append(args, "--asset_capital="+formatFloat(s.AssetCapital))
	}
	if s.Symmetrical {
		args = append(args, "--symmetrical=true")
	}
	if s.Start != "" {
		args = append(args, "--start="+s.Start)
	}
	if s.End != "" {
		args = append(args, "--end="+s.End)
	}
	return append(args, s.Extra...)
}

// Command is one evaluator invocation (argv, no shell)
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// DefaultBinary is the evaluator entry point for the current platform
func DefaultBinary() string {
	if runtime.GOOS == "windows" {
		return "zenbot.bat"
	}
	return "./zenbot.sh"
}

// CommandBuilder assembles evaluator commands.
// ⭐ SSOT: 문자열 인자 조립은 여기서만 수행
type CommandBuilder struct {
	Binary string
}

// NewCommandBuilder falls back to DefaultBinary when binary is empty
func NewCommandBuilder(binary string) CommandBuilder {
	if binary == "" {
		binary = DefaultBinary()
	}
	return CommandBuilder{Binary: binary}
}

// Sim builds `<zenbot> sim <selector> <window> --strategy=<name> --<gene>=<v>... --<fixed>=<v>...`
func (b CommandBuilder) Sim(sim SimConfig, strategy *genome.Strategy, p *genome.Phenotype) (Command, error) {
	args := []string{"sim", sim.Selector}
	args = append(args, sim.Args()...)
	args = append(args, "--strategy="+strategy.Name)

	for _, g := range strategy.Schema.Genes() {
		v, ok := p.Get(g.Name)
		if !ok {
			return Command{}, fmt.Errorf("strategy %s: phenotype lacks gene %s", strategy.Name, g.Name)
		}
		args = append(args, "--"+g.Name+"="+g.Format(v))
	}
	for _, a := range strategy.Fixed {
		args = append(args, "--"+a.Name+"="+a.Value)
	}

	return Command{Name: b.Binary, Args: args}, nil
}

// Backfill builds `<zenbot> backfill <selector> --days=N`
func (b CommandBuilder) Backfill(sim SimConfig) Command {
	args := []string{"backfill", sim.Selector}
	if sim.Days > 0 {
		args = append(args, "--days="+strconv.Itoa(sim.Days))
	}
	return Command{Name: b.Binary, Args: args}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
