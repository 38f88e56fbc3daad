package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/airchains-network/zk-coprocessor/api"
	"github.com/airchains-network/zk-coprocessor/batch/da"
	"github.com/airchains-network/zk-coprocessor/db"
	"github.com/airchains-network/zk-coprocessor/internal/pool"
	"github.com/airchains-network/zk-coprocessor/orchestrator"
	"github.com/airchains-network/zk-coprocessor/prover"
	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// StartCmd represents the start command
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the coprocessor API",
	Long: `Start the coprocessor API with the configuration from ~/.zk-coprocessor/config.toml.
Accepted batches are proven in the background and can be followed over /v1/proofs/:id or /v1/ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCommand(cmd)
	},
}

func startCommand(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg.General.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize request store
	store, err := db.Open(cfg.Database.Engine, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open request store: %v", err)
	}
	defer store.Close()

	tracker := state.NewTracker(store, log)
	if _, err := tracker.FailInterrupted(); err != nil {
		log.Warnf("Failed to scan for interrupted requests: %v", err)
	}

	// Initialize backends
	var execBackend, marketBackend prover.Backend
	execClient, err := newExecBackend(cfg, log)
	if err != nil {
		return err
	}
	if execClient != nil {
		execBackend = execClient
	}
	marketClient, ethClient, err := newMarketBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	if marketClient != nil {
		marketBackend = marketClient
	}
	if ethClient != nil {
		defer ethClient.Close()
	}
	if execBackend == nil && marketBackend == nil {
		return fmt.Errorf("neither prover.exec_url nor market.url is configured")
	}

	// Initialize DA client
	daClient, err := da.New(ctx, da.Config{
		Type:      cfg.DA.Type,
		NodeAddr:  cfg.DA.NodeAddr,
		AuthToken: cfg.DA.AuthToken,
		Namespace: cfg.DA.Namespace,
		Attempts:  cfg.DA.Attempts,
	}, log)
	if err != nil {
		return err
	}
	if daClient != nil {
		log.Infof("Publishing completed market proofs to %s", daClient.Name())
		if closer, ok := daClient.(*da.CelestiaClient); ok {
			defer closer.Close()
		}
	}

	orch := orchestrator.New(execBackend, marketBackend,
		orchestrator.WithTracker(tracker),
		orchestrator.WithLogger(log),
	)

	// Start job pool
	jobs := pool.NewJobPool(cfg.Pool.Workers, cfg.Pool.QueueSize, log)
	jobs.Start(ctx)
	defer jobs.Stop()

	server := api.NewServer(orch, tracker, jobs, daClient, log)
	if err := server.Run(ctx, cfg.General.APIAddr); err != nil {
		return fmt.Errorf("API server failed: %v", err)
	}
	return nil
}
