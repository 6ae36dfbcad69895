package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesHostsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
hosts:
  - name: A
    ip: 127.0.0.1
    port: 4455
    password: secret
    enable_voice: true
short_transition: Cut
long_transition: Fade
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.HostSettings.Hosts, 1)
	require.Equal(t, "A", cfg.HostSettings.Hosts[0].Name)
	require.Equal(t, 4455, cfg.HostSettings.Hosts[0].Engine.Port)
	require.True(t, cfg.HostSettings.Hosts[0].EnableVoice)
	require.True(t, cfg.HostSettings.KeepUnusedStreams, "default true when unset in YAML")
	require.Equal(t, 28010, cfg.WebPort)
}

func TestLoadHonorsKeepUnusedStreamsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep_unused_streams: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.HostSettings.KeepUnusedStreams)
}

func TestLoadEnvOverridesWebPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hosts: []\n"), 0o644))

	t.Setenv("MARATHONCAST_WEB_PORT", "9000")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.WebPort)
}
