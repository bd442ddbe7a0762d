package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewWithWriter(t *testing.T) {
	t.Run("production logs JSON", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "production", "info")
		log.Info("skill_validated", "skill_id", 3)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "skill_validated", line["msg"])
		assert.Equal(t, "skillproof", line["service"])
	})

	t.Run("level filters debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "development", "info")
		log.Debug("hidden")
		assert.Empty(t, buf.String())
	})
}
