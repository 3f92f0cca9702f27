package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rigtwin/twin/internal/dispatcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ dispatcher.Logger = (*Zerolog)(nil)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestZerolog_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*Zerolog)
	}{
		{"debug", func(l *Zerolog) { l.Debug("handling event", "command", ":RECORD:START:", "args", 2) }},
		{"info", func(l *Zerolog) { l.Info("handling event", "command", ":RECORD:START:", "args", 2) }},
		{"warn", func(l *Zerolog) { l.Warn("handling event", "command", ":RECORD:START:", "args", 2) }},
		{"error", func(l *Zerolog) { l.Error("handling event", "command", ":RECORD:START:", "args", 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(FromZerolog(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "handling event", entry["message"])
			assert.Equal(t, ":RECORD:START:", entry["command"])
			assert.Equal(t, float64(2), entry["args"])
		})
	}
}

func TestZerolog_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf).Level(zerolog.InfoLevel))
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestZerolog_OddAndNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	l := FromZerolog(zerolog.New(&buf))
	l.Error("event failed", "error", errors.New("boom"), 7, "ignored", "dangling")

	entry := decode(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "dangling")
	assert.Len(t, entry, 3)
}
