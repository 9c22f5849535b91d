// Package tracing records a tree of timed pipeline stages for one run. Spans
// travel through Go contexts and the finished tree is logged through slog.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "ngram_span"

// Recorder observes every span as it ends. It is used to feed stage
// durations into metrics.
type Recorder func(name string, d time.Duration)

// Span is one timed stage of a run.
type Span struct {
	Name      string
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	recorder  Recorder
	mu        sync.Mutex
}

// Start creates a root span for runID and stores it in the returned context.
func Start(ctx context.Context, name string, runID string, rec Recorder) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		RunID:     runID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		recorder:  rec,
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChild creates a span under the one in ctx. Without a parent the child
// is a detached root.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	child := &Span{
		Name:      name,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	if parent != nil {
		child.RunID = parent.RunID
		child.recorder = parent.recorder
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, child), child
}

// End records the span's end time and duration.
func (s *Span) End() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.recorder != nil {
		s.recorder(s.Name, s.Duration)
	}
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// FromContext extracts the current Span from ctx, or nil if none.
func FromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Walk visits the span tree depth-first.
func (s *Span) Walk(fn func(depth int, span *Span)) {
	s.walk(0, fn)
}

func (s *Span) walk(depth int, fn func(int, *Span)) {
	fn(depth, s)
	s.mu.Lock()
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	for _, child := range children {
		child.walk(depth+1, fn)
	}
}

// Log writes the span tree to logger.
func (s *Span) Log(logger *slog.Logger) {
	s.Walk(func(depth int, span *Span) {
		attrs := []any{
			"run_id", span.RunID,
			"span", span.Name,
			"duration_ms", span.Duration.Milliseconds(),
			"depth", depth,
		}
		span.mu.Lock()
		for k, v := range span.Attrs {
			attrs = append(attrs, k, v)
		}
		span.mu.Unlock()
		logger.Info("span", attrs...)
	})
}
