package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Options{Service: "court-reservation", Env: "test", Level: "info"})

	logger.Debug("hidden")
	logger.Info("reservation created", "reservation_id", "r-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reservation created", line["msg"])
	assert.Equal(t, "court-reservation", line["service"])
	assert.Equal(t, "r-1", line["reservation_id"])
}

func TestNewWithWriter_TextAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "app.log")
	logger := NewWithWriter(&buf, Options{Format: "text", Level: "debug", File: file, MaxSizeMB: 1})

	logger.Debug("slot scan", "count", 8)
	assert.Contains(t, buf.String(), "msg=\"slot scan\"")
	assert.FileExists(t, file)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
