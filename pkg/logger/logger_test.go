package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "info", "json"))
	log.Debug("hidden")
	log.Info("search completed", "query", "laptops")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "search completed", rec["msg"])
	assert.Equal(t, "laptops", rec["query"])
}

func TestNewHandlerZapWritesOutput(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "debug", "zap"))
	log.Warn("catalog reload failed", "error", "boom")
	assert.Contains(t, buf.String(), "catalog reload failed")
}

func TestFromContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewHandler(&buf, "info", "text")))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRequestID(context.Background(), "req-42")
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "request_id=req-42")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
