package internal

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&bytes.Buffer{}, "prod", tt.level)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLogger_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "info")

	logger.Info().Str("order_id", "42").Msg("order priced")
	logger.Debug().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "order priced", entry["message"])
	assert.Equal(t, "42", entry["order_id"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_DevWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "dev", "info")

	logger.Info().Msg("order priced")

	assert.Contains(t, buf.String(), "order priced")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}
