// Package tracing records per-request span trees in the request context. The
// search executor opens one span per pipeline stage; the tree is logged when
// the request is slow enough to be worth looking at.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan creates a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{Name: name, TraceID: traceID, StartTime: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a span under the one in ctx. Without a parent it
// behaves like an untraced root, so callers never need to nil-check.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, StartTime: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End records the span's duration.
func (s *Span) End() {
	s.Duration = time.Since(s.StartTime)
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Children returns a snapshot of the direct child spans.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Span, len(s.children))
	copy(out, s.children)
	return out
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// LogIfSlow ends s and logs the whole tree at info when it took at least
// threshold, otherwise at debug.
func (s *Span) LogIfSlow(logger *slog.Logger, threshold time.Duration) {
	s.End()
	level := slog.LevelDebug
	if s.Duration >= threshold {
		level = slog.LevelInfo
	}
	s.log(logger, level, 0)
}

func (s *Span) log(logger *slog.Logger, level slog.Level, depth int) {
	s.mu.Lock()
	attrs := append([]any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_us", s.Duration.Microseconds(),
		"depth", depth,
	}, s.attrs...)
	children := s.children
	s.mu.Unlock()
	logger.Log(context.Background(), level, "span", attrs...)
	for _, child := range children {
		child.log(logger, level, depth+1)
	}
}
