package handlers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupApp writes a config with a temp-file SQLite store and redirects
// stdout into the returned buffer.
func setupApp(t *testing.T, jsonOutput bool) (Options, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "hvplane.yaml")
	cfg := fmt.Sprintf("store:\n  driver: sqlite\n  dsn: %s\nlogging:\n  level: error\n",
		filepath.Join(dir, "hvplane.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	return Options{ConfigPath: cfgPath, JSON: jsonOutput}, &buf
}
