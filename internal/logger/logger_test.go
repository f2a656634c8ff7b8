package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json output with level", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Config{Level: "warn", Output: &buf})

		log.Info().Msg("hidden")
		log.Warn().Str("name", "alice").Msg("visible")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "visible", entry["message"])
		assert.Equal(t, "alice", entry["name"])
		assert.Contains(t, entry, "time")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		log := New(Config{Level: "loud", Output: &bytes.Buffer{}})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

		log = New(Config{Output: &bytes.Buffer{}})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Config{Level: "debug", Pretty: true, Output: &buf})
		log.Debug().Msg("session started")

		assert.Contains(t, buf.String(), "session started")
		assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	})
}
