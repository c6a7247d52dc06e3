package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New returns the process logger. Output goes to stderr so that parsed
// statements written to stdout stay clean. Production mode emits JSON lines,
// otherwise a human readable console format.
func New(production bool) zerolog.Logger {
	if production {
		return NewWithWriter(os.Stderr)
	}
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel applies a textual level ("debug", "info", ...) to the logger.
func SetLevel(log zerolog.Logger, level string) (zerolog.Logger, error) {
	if level == "" {
		return log, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return log, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.Level(lvl), nil
}

// WithContext stores the logger in ctx.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}
