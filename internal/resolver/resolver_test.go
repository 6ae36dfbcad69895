package resolver

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeResolver drops a tiny script acting as the external resolver
// command, emitting the expected JSON shape on stdout.
func writeFakeResolver(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-resolver.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + body + "\nEOF\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestResolveParsesStreams(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	path := writeFakeResolver(t, `{"streams":{"best":{"url":"https://example/best.m3u8"},"source":{"url":"https://example/source.m3u8"}}}`)

	r := New(path, nil)
	urls, err := r.Resolve(context.Background(), "some_handle")
	require.NoError(t, err)
	require.Equal(t, "https://example/best.m3u8", urls["best"])
	require.Equal(t, "https://example/source.m3u8", urls["source"])
}

func TestResolveSurfacesReportedError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	path := writeFakeResolver(t, `{"error":"no playable streams found"}`)

	r := New(path, nil)
	_, err := r.Resolve(context.Background(), "offline_handle")
	require.ErrorContains(t, err, "no playable streams found")
}
