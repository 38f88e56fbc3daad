package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/airchains-network/zk-coprocessor/config"
	"github.com/airchains-network/zk-coprocessor/eth"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// KeygenCmd creates the key used to sign anchoring transactions
var KeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create a new anchoring key",
	Long: `Create a new secp256k1 key for on-chain request anchoring and store it as
ANCHOR_PRIVATE_KEY in the .env file of the home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return keygenCommand(cmd)
	},
}

func init() {
	KeygenCmd.Flags().Bool("force", false, "Replace an existing key")
}

func keygenCommand(cmd *cobra.Command) error {
	force, _ := cmd.Flags().GetBool("force")
	home, err := homeDir(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0700); err != nil {
		return fmt.Errorf("failed to create home directory: %v", err)
	}

	envPath := filepath.Join(home, config.EnvFileName)
	env, err := godotenv.Read(envPath)
	if errors.Is(err, fs.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %v", envPath, err)
	}
	if env[config.EnvAnchorPrivateKey] != "" && !force {
		return fmt.Errorf("%s already set in %s, use --force to replace it", config.EnvAnchorPrivateKey, envPath)
	}

	key, address, err := eth.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %v", err)
	}
	env[config.EnvAnchorPrivateKey] = key
	if err := writeSecretEnv(envPath, env); err != nil {
		return fmt.Errorf("failed to write %s: %v", envPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Key created successfully!\nAddress: %s\nStored in: %s\n", address.Hex(), envPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nIMPORTANT: fund this address on the anchoring chain before using --onchain")
	return nil
}

// writeSecretEnv writes env to path, restricting the file to its owner
// before any secret reaches it.
func writeSecretEnv(path string, env map[string]string) error {
	content, err := godotenv.Marshal(env)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Chmod(0600); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteString(content + "\n"); err != nil {
		return err
	}
	return f.Sync()
}
