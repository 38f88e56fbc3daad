package main

import (
	"os"

	"github.com/airchains-network/zk-coprocessor/cmd/coprocessor/commands"
	"github.com/spf13/cobra"
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "zk-coprocessor",
		Short: "Orchestrator for multi-chain zero-knowledge balance proofs",
		Long: `Orchestrator for multi-chain zero-knowledge balance proofs.
It validates batches of proof requests, runs them on a local executor or the boundless
proving market, and decodes the resulting journals for verification.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("home", "", "Config directory (default ~/.zk-coprocessor)")

	// Add commands
	rootCmd.AddCommand(commands.InitCmd)
	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.ExecCmd)
	rootCmd.AddCommand(commands.ProveCmd)
	rootCmd.AddCommand(commands.KeygenCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
