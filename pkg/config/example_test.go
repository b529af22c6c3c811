package config_test

import (
	"fmt"

	"github.com/realjkeee/zenbot/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Output dir: %s\n", cfg.Darwin.OutputDir)
	fmt.Printf("Result database enabled: %v\n", cfg.Database.Enabled())
}
