package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/platform/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Str("contract", "C-001").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "C-001", entry["contract"])
	assert.Equal(t, "hr-lifecycle", entry["service"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "verbose"}, &buf)

	log.Debug().Msg("dropped")
	log.Info().Msg("kept")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNewWithWriter_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "info", Format: "console"}, &buf)

	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
