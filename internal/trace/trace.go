// Package trace tags a unit of work (a CLI command or a consumed change
// message) with an ID carried in the context and logs its start and end.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// IDKey is the context key for the trace ID
	IDKey ContextKey = "trace_id"

	FieldTraceID = "trace_id"
)

// GenerateID creates a unique ID for tracing
func GenerateID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("op_%d", time.Now().UnixNano())
	}
	return "op_" + hex.EncodeToString(bytes)
}

// WithID returns ctx carrying id. An empty id gets a generated one.
func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = GenerateID()
	}
	return context.WithValue(ctx, IDKey, id)
}

// ID extracts the trace ID from context
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(IDKey).(string); ok {
		return id
	}
	return ""
}

// Span is one traced unit of work.
type Span struct {
	ctx    context.Context
	logger *slog.Logger
	name   string
	start  time.Time
}

// Start tags ctx with a trace ID (keeping one already present) and logs the
// start of name at debug level.
func Start(ctx context.Context, logger *slog.Logger, name string, args ...any) (context.Context, *Span) {
	if logger == nil {
		logger = slog.Default()
	}
	if ID(ctx) == "" {
		ctx = WithID(ctx, "")
	}
	logger = logger.With(FieldTraceID, ID(ctx), "operation", name)
	logger.DebugContext(ctx, "Operation started", args...)
	return ctx, &Span{ctx: ctx, logger: logger, name: name, start: time.Now()}
}

// End logs completion with the elapsed time. A non-nil err is logged at
// error level.
func (s *Span) End(err error) time.Duration {
	duration := time.Since(s.start)
	level := slog.LevelDebug
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"duration_human", duration.String(),
		"success", err == nil,
	}
	if err != nil {
		level = slog.LevelError
		args = append(args, "error", err)
	}
	s.logger.Log(s.ctx, level, "Operation completed", args...)
	return duration
}

// Logger returns the span's logger with the trace ID attached.
func (s *Span) Logger() *slog.Logger {
	return s.logger
}
