package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Debug ": slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	} {
		assert.Equal(t, want, parseLogLevel(in), "parseLogLevel(%q)", in)
	}
}

func TestNewJSONLogger_FiltersAndEncodes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newJSONLogger(&buf, "warn")

	log.Info("auth.login.ok", "user_id", "u1")
	assert.Zero(t, buf.Len(), "info must be filtered at warn level")

	log.Warn("auth.refresh.reuse", "user_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "auth.refresh.reuse", rec["msg"])
	assert.Equal(t, "u1", rec["user_id"])
	assert.Contains(t, rec, "source")
}
