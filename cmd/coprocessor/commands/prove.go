package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// ProveCmd submits one batch to the boundless market and waits for the proof
var ProveCmd = &cobra.Command{
	Use:   "prove [batch.json]",
	Short: "Prove a batch on the boundless market",
	Long: `Submit a batch to the boundless market and wait until it is fulfilled.
With --onchain the request is anchored in a registry transaction first; that transaction is
sent at most once and interrupting afterwards only stops waiting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return proveCommand(cmd, args[0])
	},
}

func init() {
	ProveCmd.Flags().Bool("onchain", false, "Anchor the request on-chain before submitting it")
}

func proveCommand(cmd *cobra.Command, path string) error {
	onchain, _ := cmd.Flags().GetBool("onchain")

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg.General.LogLevel)

	req, err := readBatch(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	marketClient, ethClient, err := newMarketBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	if ethClient != nil {
		defer ethClient.Close()
	}
	if marketClient == nil {
		return fmt.Errorf("market.url is not configured")
	}

	orch := orchestrator.New(nil, marketClient, orchestrator.WithLogger(log))
	res, err := orch.ExecuteMarket(ctx, req, onchain)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "request: %s\n", res.RequestID.Hex())
	if res.AnchorTx != nil {
		fmt.Fprintf(out, "anchor tx: %s\n", res.AnchorTx.Hex())
	}
	fmt.Fprintf(out, "journal: %s\n", hexutil.Encode(res.Journal))
	fmt.Fprintf(out, "seal: %s\n", hexutil.Encode(res.Seal))
	return printEntries(out, res.Journal, batch.Flatten(req))
}
