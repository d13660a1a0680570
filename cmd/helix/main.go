package main

import (
	"os"

	"github.com/wonny/helix/cmd/helix/commands"
)

// main is the entry point for the Helix CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/helix [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
