package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airchains-network/zk-coprocessor/config"
	"github.com/airchains-network/zk-coprocessor/db"
	"github.com/spf13/cobra"
)

// InitCmd represents the init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the coprocessor",
	Long: `Initialize the coprocessor with the required configuration.
This command creates the home directory, the request database directory and config.toml.
Secrets (ANCHOR_PRIVATE_KEY, DA_AUTH_TOKEN) belong in the .env file next to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd)
	},
}

func init() {
	// Prover configuration flags
	InitCmd.Flags().String("prover.exec-url", "http://127.0.0.1:8090", "Executor service URL")
	InitCmd.Flags().String("prover.image-id", "", "Guest program image id (32 byte hex)")
	InitCmd.Flags().String("market.url", "", "Boundless market URL")

	// Anchor configuration flags
	InitCmd.Flags().String("anchor.rpc-url", "http://127.0.0.1:8545", "RPC URL of the chain hosting the request registry")
	InitCmd.Flags().String("anchor.registry", "", "Request registry contract address")

	// DA configuration flags
	InitCmd.Flags().String("da.type", "", "DA layer for publishing proofs (avail/celestia, empty to disable)")
	InitCmd.Flags().String("da.node-addr", "", "DA node address")
	InitCmd.Flags().String("da.namespace", "", "DA namespace (Celestia) or AppID (Avail)")

	// General configuration flags
	InitCmd.Flags().String("api.addr", ":11111", "API listen address")
	InitCmd.Flags().String("db.engine", db.EngineLevelDB, "Request store engine (leveldb/bolt)")

	InitCmd.MarkFlagRequired("prover.image-id")
}

func initCommand(cmd *cobra.Command) error {
	// Get flag values
	execURL, _ := cmd.Flags().GetString("prover.exec-url")
	imageID, _ := cmd.Flags().GetString("prover.image-id")
	marketURL, _ := cmd.Flags().GetString("market.url")
	rpcURL, _ := cmd.Flags().GetString("anchor.rpc-url")
	registry, _ := cmd.Flags().GetString("anchor.registry")
	daType, _ := cmd.Flags().GetString("da.type")
	nodeAddr, _ := cmd.Flags().GetString("da.node-addr")
	namespace, _ := cmd.Flags().GetString("da.namespace")
	apiAddr, _ := cmd.Flags().GetString("api.addr")
	engine, _ := cmd.Flags().GetString("db.engine")

	log := newLogger("info")

	if daType != "" && daType != "avail" && daType != "celestia" {
		return fmt.Errorf("invalid --da.type: %s. Must be either 'avail' or 'celestia'", daType)
	}
	if engine != db.EngineLevelDB && engine != db.EngineBolt {
		return fmt.Errorf("invalid --db.engine: %s. Must be either 'leveldb' or 'bolt'", engine)
	}
	if _, err := parseImageID(imageID); err != nil {
		return err
	}

	home, err := homeDir(cmd)
	if err != nil {
		return err
	}

	// Create config with command-line flags
	cfg := config.DefaultConfig(home)
	cfg.Prover.ExecURL = execURL
	cfg.Prover.ImageID = imageID
	cfg.Market.URL = marketURL
	cfg.Anchor.RPCURL = rpcURL
	cfg.Anchor.Registry = registry
	cfg.DA.Type = daType
	cfg.DA.NodeAddr = nodeAddr
	cfg.DA.Namespace = namespace
	cfg.General.APIAddr = apiAddr
	cfg.Database.Engine = engine
	if engine == db.EngineBolt {
		cfg.Database.Path = filepath.Join(home, "data", "requests.db")
	}

	// bolt opens a file, leveldb a directory
	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", dataDir, err)
	}

	// Save config file
	configPath := filepath.Join(home, config.ConfigFileName)
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %v", err)
	}
	log.Infof("Created config file at: %s", configPath)

	// Show configuration summary
	fmt.Println("\n=== Configuration Summary ===")
	fmt.Printf("Executor URL: %s\n", cfg.Prover.ExecURL)
	fmt.Printf("Image ID: %s\n", cfg.Prover.ImageID)
	fmt.Printf("Market URL: %s\n", cfg.Market.URL)
	fmt.Printf("Anchor RPC URL: %s\n", cfg.Anchor.RPCURL)
	fmt.Printf("Anchor Registry: %s\n", cfg.Anchor.Registry)
	fmt.Printf("DA Layer: %s\n", cfg.DA.Type)
	fmt.Printf("Database: %s (%s)\n", cfg.Database.Path, cfg.Database.Engine)
	fmt.Printf("API Address: %s\n", cfg.General.APIAddr)
	fmt.Printf("Config File: %s\n", configPath)

	log.Info("Initialization completed successfully!")
	log.Infof("Put ANCHOR_PRIVATE_KEY and DA_AUTH_TOKEN in %s, or run `zk-coprocessor keygen`", filepath.Join(home, config.EnvFileName))
	return nil
}
