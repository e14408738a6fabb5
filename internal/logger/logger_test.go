package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", "json")
	l.Debug().Str("ticket", "42").Msg("status changed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "42", entry["ticket"])
	assert.Equal(t, "status changed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriterLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "nonsense", "json")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "console")
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
