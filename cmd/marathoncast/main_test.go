package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
hosts:
  - name: Stage1
    ip: 127.0.0.1
    port: 4455
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	configPath = path
	cmd := configCmd()

	var buf bytes.Buffer
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	err = cmd.RunE(cmd, nil)
	w.Close()
	os.Stdout = old
	require.NoError(t, err)

	_, err = buf.ReadFrom(r)
	require.NoError(t, err)

	require.Contains(t, buf.String(), "Stage1")
	require.Contains(t, buf.String(), "not configured")
}
