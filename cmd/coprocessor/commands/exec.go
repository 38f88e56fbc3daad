package commands

import (
	"context"
	"fmt"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/spf13/cobra"
)

// ExecCmd runs one batch on the executor and prints the cycle accounting
var ExecCmd = &cobra.Command{
	Use:   "exec [batch.json]",
	Short: "Execute a batch locally and print cycles and journal entries",
	Long: `Execute a batch on the configured executor without producing a proof.
The batch is read from the given JSON file, or from stdin when the argument is "-".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execCommand(cmd, args[0])
	},
}

func execCommand(cmd *cobra.Command, path string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg.General.LogLevel)

	req, err := readBatch(path)
	if err != nil {
		return err
	}
	execClient, err := newExecBackend(cfg, log)
	if err != nil {
		return err
	}
	if execClient == nil {
		return fmt.Errorf("prover.exec_url is not configured")
	}

	orch := orchestrator.New(execClient, nil, orchestrator.WithLogger(log))
	res, err := orch.ExecuteLocal(context.Background(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Segments ===")
	for i, cycles := range res.SegmentCycles {
		fmt.Fprintf(out, "segment %d: %d cycles\n", i, cycles)
	}
	fmt.Fprintf(out, "total: %d cycles\n", res.TotalCycles())

	return printEntries(out, res.Journal, batch.Flatten(req))
}
