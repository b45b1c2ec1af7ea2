package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"ghostrecon/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerAttachesServiceAttrs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := &config.Config{
		Service: &config.ServiceConfig{Name: "ghostrecon-backend", Env: "test", Add: ":0"},
		Logger:  &config.LoggerConfig{Level: "debug", Format: "json"},
	}
	var buf bytes.Buffer
	log := NewLogger(cfg, &buf)
	log.Debug("server - start - listening")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "ghostrecon-backend", rec["service"])
	assert.Equal(t, "test", rec["env"])
	assert.Contains(t, rec, "pid")
	assert.Same(t, log, slog.Default())
}
