package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airchains-network/zk-coprocessor/batch"
	"github.com/airchains-network/zk-coprocessor/config"
	"github.com/airchains-network/zk-coprocessor/journal"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const sampleBatch = `{
	"sources": [
		{
			"chain_id": 59144,
			"users": ["0x2693946791da99dA78Ac441abA6D5Ce2Bccd96D3"],
			"assets": ["0xC7Bc6bD45Eb84D594f51cED3c5497E6812C7732f"],
			"dst_chain_ids": [10]
		}
	],
	"l1_inclusion": true,
	"fallback": false
}`

func newTestCmd(t *testing.T, home string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.Flags().String("home", home, "")
	cmd.Flags().Bool("force", false, "")
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(sampleBatch), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	req, err := readBatch(path)
	if err != nil {
		t.Fatalf("readBatch: %v", err)
	}
	if len(req.Sources) != 1 || req.Sources[0].ChainID != 59144 || !req.L1Inclusion {
		t.Fatalf("batch = %+v", req)
	}
	if err := batch.Validate(req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseImageID(t *testing.T) {
	if _, err := parseImageID(""); err == nil {
		t.Fatal("expected error for empty image id")
	}
	if _, err := parseImageID("0x1234"); err == nil {
		t.Fatal("expected error for short image id")
	}
	id, err := parseImageID("0x" + strings.Repeat("ab", 32))
	if err != nil || id[0] != 0xab {
		t.Fatalf("id = %x, %v", id, err)
	}
}

func TestPrintEntries(t *testing.T) {
	req, _ := readBatch(writeTemp(t, sampleBatch))
	obligations := batch.Flatten(req)
	e, err := journal.NewEntry(obligations[0], nil, nil)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	data, err := journal.EncodeEntries([]journal.Entry{e})
	if err != nil {
		t.Fatalf("EncodeEntries: %v", err)
	}

	var out bytes.Buffer
	if err := printEntries(&out, data, obligations); err != nil {
		t.Fatalf("printEntries: %v", err)
	}
	if !strings.Contains(out.String(), "chain=linea(59144) dst=optimism(10)") {
		t.Fatalf("output = %s", out.String())
	}
}

func TestKeygen(t *testing.T) {
	home := t.TempDir()
	cmd := newTestCmd(t, home)
	if err := keygenCommand(cmd); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	envPath := filepath.Join(home, config.EnvFileName)
	env, err := godotenv.Read(envPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	first := env[config.EnvAnchorPrivateKey]
	if len(first) != 64 {
		t.Fatalf("key = %q", first)
	}

	if err := keygenCommand(cmd); err == nil {
		t.Fatal("expected refusal to overwrite key")
	}
	cmd.Flags().Set("force", "true")
	if err := keygenCommand(cmd); err != nil {
		t.Fatalf("keygen --force: %v", err)
	}
	env, _ = godotenv.Read(envPath)
	if env[config.EnvAnchorPrivateKey] == first {
		t.Fatal("key was not replaced")
	}
}

func TestKeygenRestrictsEnvFile(t *testing.T) {
	home := t.TempDir()
	envPath := filepath.Join(home, config.EnvFileName)
	if err := os.WriteFile(envPath, []byte("DA_AUTH_TOKEN=secret\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := keygenCommand(newTestCmd(t, home)); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	info, err := os.Stat(envPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("mode = %o, want 600", perm)
	}
	env, err := godotenv.Read(envPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if env[config.EnvDAAuthToken] != "secret" || len(env[config.EnvAnchorPrivateKey]) != 64 {
		t.Fatalf("env = %v", env)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
