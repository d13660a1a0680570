package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "helix",
	Short: "Helix - 모의 거래소 트레이딩 코어",
	Long: `Helix Unified CLI

지정가/시장가 매칭 엔진, 지갑 원장, 포지션 트래커를 갖춘 모의 거래소.

Usage:
  go run ./cmd/helix [command]

Examples:
  go run ./cmd/helix api
  go run ./cmd/helix api --ephemeral
  go run ./cmd/helix seed`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
