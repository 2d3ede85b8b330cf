package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the root command with stdout captured.
func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = old })

	cmd := newRootCmd()
	cmd.SetArgs(args)
	execErr := cmd.Execute()

	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, execErr)
	return string(out)
}

func TestStatus_MissingConfig(t *testing.T) {
	t.Setenv("BILLABLE_HOME", t.TempDir())

	out := runCommand(t, "status")
	assert.Contains(t, out, "not found (using defaults)")
	assert.Contains(t, out, "Gateway:")
}

func TestStatus_WithConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BILLABLE_HOME", home)
	cfgPath := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gateway:\n  port: 9999\n"), 0o600))

	out := runCommand(t, "status")
	assert.NotContains(t, out, "not found (using defaults)")
	assert.Contains(t, out, "port=9999")
}
