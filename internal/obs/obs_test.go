package obs

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerFormatsLevelTimeAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "stream started", 0)
	r.AddAttrs(slog.String("host", "alpha"))

	require.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	require.Contains(t, out, "stream started")
	require.Contains(t, out, "host=alpha")
	require.True(t, strings.HasPrefix(out, "[INFO"))
}

func TestPrettyHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf)

	withAttrs := h.WithAttrs([]slog.Attr{slog.String("component", "mixer")})
	withGroup := withAttrs.WithGroup("voice")

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "vad fallback", 0)
	require.NoError(t, withGroup.Handle(context.Background(), r))

	out := buf.String()
	require.Contains(t, out, "component=mixer")
	require.Contains(t, out, "vad fallback")
}

func TestPrettyHandlerEnabledRespectsLevel(t *testing.T) {
	h := newPrettyHandler(&bytes.Buffer{})
	require.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestTracerReturnsNonNilTracer(t *testing.T) {
	tr := Tracer("marathoncast/test")
	require.NotNil(t, tr)
}
