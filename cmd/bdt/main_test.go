package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// The configuration is loaded once per process, so every database command
// shares one directory.
func TestDatabaseCommands(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	cfgYAML := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "bdt.db") +
		"\n  auto_migrate: true\nauth:\n  bcrypt_cost: 4\n  jwt:\n    secret: test-cli\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfgYAML), 0o600))

	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("services: [Accueil]\nservice_intervenants: [Informatique]\nusers:\n  - username: admin\n    password: changeme\n    permissions: [AdminAccess]\n"), 0o600))

	out, err := execute(t, "migrate", "--config", cfgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "schema at version")

	out, err = execute(t, "seed", "--file", seed, "--config", cfgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 1 service(s), 1 service intervenant(s), 0 category(ies), 1 user(s)")

	out, err = execute(t, "cleanup", "--period", "1y", "--config", cfgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 bon(s) seraient supprimés")

	_, err = execute(t, "cleanup", "--period", "1y", "--confirm", "oui", "--config", cfgDir)
	assert.Error(t, err)
	confirmFlag = ""

	_, err = execute(t, "cleanup", "--period", "10y", "--config", cfgDir)
	assert.Error(t, err)

	out, err = execute(t, "reset-password", "--username", "admin", "--password", "nouveau1", "--config", cfgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Password of admin reset")

	_, err = execute(t, "reset-password", "--username", "personne", "--password", "nouveau1", "--config", cfgDir)
	assert.Error(t, err)
}

func TestSynthesizeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out, err := execute(t, "synthesize", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 secret(s)")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bdt dev")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
