package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSink_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithSink(Config{Level: "info", Service: "meeteasy-api"}, zapcore.AddSync(&buf))

	logger.Info("search finished", zap.String("keyword", "jazz"), zap.Int("results", 3))
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "search finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "meeteasy-api", entry["service"])
	assert.Equal(t, "production", entry["environment"])
	assert.Equal(t, "jazz", entry["keyword"])
	assert.Equal(t, float64(3), entry["results"])
}

func TestNewWithSink_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithSink(Config{Level: "warn"}, zapcore.AddSync(&buf))

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in).Level(), "level %q", in)
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
