// Package logger sets up structured JSON logging with zerolog and carries a
// trace ID through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Option adjusts Init.
type Option func(*options)

type options struct {
	out     io.Writer
	console bool
}

// Console switches output to zerolog's human-readable console writer.
func Console() Option { return func(o *options) { o.console = true } }

// Output redirects log output, stdout by default.
func Output(w io.Writer) Option { return func(o *options) { o.out = w } }

// Init creates a logger for the given service and installs it as the global
// zerolog logger. An unknown level falls back to info.
func Init(service, level string, opts ...Option) zerolog.Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := o.out
	if o.console {
		out = zerolog.ConsoleWriter{Out: o.out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", service).
		Logger()

	// Package-level log.Info() etc. use the same output.
	log.Logger = l
	return l
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a symbol and timestamp.
// Format: "{symbol}-{unixNano}".
func GenerateTraceID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, ts.UnixNano())
}

// FromContext returns the global logger, with trace_id attached when ctx
// carries one.
func FromContext(ctx context.Context) zerolog.Logger {
	tid := TraceID(ctx)
	if tid == "" {
		return log.Logger
	}
	return log.Logger.With().Str("trace_id", tid).Logger()
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
