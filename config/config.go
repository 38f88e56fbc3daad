package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
)

const (
	HomeDirName    = ".zk-coprocessor"
	ConfigFileName = "config.toml"
	EnvFileName    = ".env"

	EnvAnchorPrivateKey = "ANCHOR_PRIVATE_KEY"
	EnvDAAuthToken      = "DA_AUTH_TOKEN"
)

// Config holds the application configuration
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Database DatabaseConfig `toml:"database"`
	Prover   ProverConfig   `toml:"prover"`
	Market   MarketConfig   `toml:"market"`
	Anchor   AnchorConfig   `toml:"anchor"`
	DA       DAConfig       `toml:"da"`
	Pool     PoolConfig     `toml:"pool"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	LogLevel string `toml:"log_level"`
	APIAddr  string `toml:"api_addr"`
}

// DatabaseConfig selects the request store
type DatabaseConfig struct {
	Engine string `toml:"engine"` // "leveldb" or "bolt"
	Path   string `toml:"path"`
}

// ProverConfig configures the local execution backend
type ProverConfig struct {
	ExecURL string `toml:"exec_url"`
	ImageID string `toml:"image_id"`
	Timeout string `toml:"timeout"`
}

// MarketConfig configures the boundless market backend
type MarketConfig struct {
	URL          string `toml:"url"`
	PollInterval string `toml:"poll_interval"`
	Timeout      string `toml:"timeout"`
}

// AnchorConfig configures on-chain submission. The private key is read from
// the environment only.
type AnchorConfig struct {
	RPCURL     string `toml:"rpc_url"`
	Registry   string `toml:"registry"`
	GasLimit   uint64 `toml:"gas_limit"`
	PrivateKey string `toml:"-"`
}

// DAConfig holds DA (Data Availability) settings
type DAConfig struct {
	Type      string `toml:"type"` // "celestia", "avail" or empty to disable
	NodeAddr  string `toml:"node_addr"`
	AuthToken string `toml:"auth_token"`
	Namespace string `toml:"namespace"`
	Attempts  int    `toml:"attempts"`
}

// PoolConfig sizes the background job pool used by the API
type PoolConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// DefaultHome returns ~/.zk-coprocessor
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %v", err)
	}
	return filepath.Join(home, HomeDirName), nil
}

// DefaultConfig returns the configuration written by `init`
func DefaultConfig(home string) Config {
	return Config{
		General: GeneralConfig{
			LogLevel: "info",
			APIAddr:  ":11111",
		},
		Database: DatabaseConfig{
			Engine: "leveldb",
			Path:   filepath.Join(home, "data", "requests"),
		},
		Prover: ProverConfig{
			ExecURL: "http://127.0.0.1:8090",
			Timeout: "10m",
		},
		Market: MarketConfig{
			URL:          "",
			PollInterval: "5s",
			Timeout:      "30s",
		},
		Anchor: AnchorConfig{
			RPCURL: "http://127.0.0.1:8545",
		},
		DA: DAConfig{
			Attempts: 3,
		},
		Pool: PoolConfig{
			Workers:   4,
			QueueSize: 64,
		},
	}
}

// Save writes the config as TOML
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadConfig reads from config.toml and returns Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}

	err = toml.Unmarshal(file, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	return cfg, nil
}

// LoadEnv overlays secrets from envPath (if present) and the process
// environment. Variables already set in the environment win over the file.
func (c *Config) LoadEnv(envPath string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %v", envPath, err)
	}
	if key := os.Getenv(EnvAnchorPrivateKey); key != "" {
		c.Anchor.PrivateKey = key
	}
	if token := os.Getenv(EnvDAAuthToken); token != "" {
		c.DA.AuthToken = token
	}
	return nil
}

// Load reads config.toml and .env from home.
func Load(home string) (Config, error) {
	cfg, err := LoadConfig(filepath.Join(home, ConfigFileName))
	if err != nil {
		return cfg, err
	}
	if err := cfg.LoadEnv(filepath.Join(home, EnvFileName)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseDuration parses a duration field, treating "" as zero.
func ParseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", field, value, err)
	}
	return d, nil
}
