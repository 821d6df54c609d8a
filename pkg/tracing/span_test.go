package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansInheritTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	_, child := StartChildSpan(ctx, "score")
	child.SetAttr("candidates", 4)
	child.End()

	require.Len(t, root.Children(), 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Same(t, root, SpanFromContext(ctx))
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
}

func TestLogIfSlow(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "rank")
	child.End()
	root.LogIfSlow(logger, time.Hour)
	assert.Empty(t, buf.String())

	root.LogIfSlow(logger, 0)
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=span"))
	assert.Contains(t, buf.String(), "span=rank")
}
