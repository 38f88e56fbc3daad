package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/airchains-network/zk-coprocessor/chains"
	"github.com/airchains-network/zk-coprocessor/config"
	"github.com/airchains-network/zk-coprocessor/eth"
	"github.com/airchains-network/zk-coprocessor/journal"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/airchains-network/zk-coprocessor/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func homeDir(cmd *cobra.Command) (string, error) {
	home, _ := cmd.Flags().GetString("home")
	if home != "" {
		return home, nil
	}
	return config.DefaultHome()
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	home, err := homeDir(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return cfg, home, fmt.Errorf("failed to load config (run `zk-coprocessor init` first): %w", err)
	}
	return cfg, home, nil
}

// readBatch decodes a batch from path, or from stdin when path is "-".
func readBatch(path string) (types.ProofBatchRequest, error) {
	var req types.ProofBatchRequest
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("failed to open batch file: %v", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode batch: %v", err)
	}
	return req, nil
}

func parseImageID(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, fmt.Errorf("prover.image_id is not configured")
	}
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid image id %q: want 32 bytes", s)
	}
	return common.BytesToHash(b), nil
}

func newExecBackend(cfg config.Config, log *logrus.Logger) (*prover.ExecClient, error) {
	if cfg.Prover.ExecURL == "" {
		return nil, nil
	}
	imageID, err := parseImageID(cfg.Prover.ImageID)
	if err != nil {
		return nil, err
	}
	timeout, err := config.ParseDuration("prover.timeout", cfg.Prover.Timeout)
	if err != nil {
		return nil, err
	}
	log.Infof("Initialized exec backend with URL: %s", cfg.Prover.ExecURL)
	return prover.NewExecClient(cfg.Prover.ExecURL, imageID, timeout, log), nil
}

// newMarketBackend returns the market backend and, when on-chain anchoring
// is configured, the eth client it holds open.
func newMarketBackend(ctx context.Context, cfg config.Config, log *logrus.Logger) (*prover.BoundlessClient, *eth.Client, error) {
	if cfg.Market.URL == "" {
		return nil, nil, nil
	}
	imageID, err := parseImageID(cfg.Prover.ImageID)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := config.ParseDuration("market.timeout", cfg.Market.Timeout)
	if err != nil {
		return nil, nil, err
	}
	poll, err := config.ParseDuration("market.poll_interval", cfg.Market.PollInterval)
	if err != nil {
		return nil, nil, err
	}
	opts := []prover.BoundlessOption{prover.WithPollInterval(poll)}

	var ethClient *eth.Client
	if cfg.Anchor.PrivateKey != "" && cfg.Anchor.Registry != "" {
		if !common.IsHexAddress(cfg.Anchor.Registry) {
			return nil, nil, fmt.Errorf("invalid anchor.registry %q", cfg.Anchor.Registry)
		}
		ethClient, err = eth.NewClient(ctx, cfg.Anchor.RPCURL)
		if err != nil {
			return nil, nil, err
		}
		anchorer, err := eth.NewAnchorer(ethClient, common.HexToAddress(cfg.Anchor.Registry), cfg.Anchor.PrivateKey, cfg.Anchor.GasLimit, log)
		if err != nil {
			ethClient.Close()
			return nil, nil, err
		}
		opts = append(opts, prover.WithAnchorer(anchorer))
		log.Infof("On-chain anchoring enabled on %s (chain %s) from %s",
			chains.Name(ethClient.ChainID().Uint64()), ethClient.ChainID(), anchorer.From().Hex())
	} else {
		log.Warn("Anchor key or registry not configured, on-chain submission disabled")
	}

	log.Infof("Initialized boundless backend with URL: %s", cfg.Market.URL)
	return prover.NewBoundlessClient(cfg.Market.URL, imageID, timeout, log, opts...), ethClient, nil
}

func printEntries(w io.Writer, journalBytes []byte, obligations []types.ProofObligation) error {
	entries, err := orchestrator.DecodeAndVerify(journalBytes, obligations)
	if err != nil {
		return fmt.Errorf("journal verification failed: %w", err)
	}
	fmt.Fprintf(w, "\n=== Journal (%d entries) ===\n", len(entries))
	for i, e := range entries {
		printEntry(w, i, e)
	}
	return nil
}

func printEntry(w io.Writer, i int, e journal.Entry) {
	fmt.Fprintf(w, "[%d] sender=%s market=%s chain=%s(%d) dst=%s(%d) l1_inclusion=%v acc_in=%s acc_out=%s\n",
		i, e.Sender.Hex(), e.Market.Hex(),
		chains.Name(uint64(e.ChainID)), e.ChainID,
		chains.Name(uint64(e.DstChainID)), e.DstChainID,
		e.L1Inclusion, e.AccAmountIn.ToBig(), e.AccAmountOut.ToBig())
}
