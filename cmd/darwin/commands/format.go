package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/realjkeee/zenbot/internal/genome"
	"github.com/realjkeee/zenbot/pkg/config"
	"github.com/realjkeee/zenbot/pkg/logger"
)

// ═══════════════════════════════════════════════════════════
// Common helpers shared by every command
// ═══════════════════════════════════════════════════════════

// loadConfig loads the environment config and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// loadRegistry returns the built-in strategies, overridden by a YAML file when given
func loadRegistry(path string) (*genome.Registry, error) {
	reg := genome.DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	custom, err := genome.LoadRegistryFile(path)
	if err != nil {
		return nil, fmt.Errorf("load strategies file: %w", err)
	}
	return reg.Merge(custom), nil
}

// newTable returns a table writer printing to stdout
func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	if title != "" {
		t.SetTitle(title)
	}
	t.SetStyle(table.StyleLight)
	return t
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a command banner
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	for _, l := range lines {
		fmt.Printf("  %s\n", l)
	}
	PrintDoubleSeparator()
}

// newLogger is the single logger construction point for commands
func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(cfg)
}
