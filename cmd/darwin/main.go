package main

import (
	"os"

	"github.com/realjkeee/zenbot/cmd/darwin/commands"
)

// main is the entry point for the darwin CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/darwin [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
