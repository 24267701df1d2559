package apiclient

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logging interface used by the dispatcher.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DebugConfig selects which parts of the call lifecycle are logged at debug level.
type DebugConfig struct {
	Enabled     bool
	LogRequests bool
	LogRetries  bool
	LogCache    bool
	LogRefresh  bool
	LogCancel   bool
}

// DefaultDebugConfig returns a disabled config with every category selected.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests: true,
		LogRetries:  true,
		LogCache:    true,
		LogRefresh:  true,
		LogCancel:   true,
	}
}

// NewSlogLogger adapts logger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger
}

// NewSimpleLogger returns a text logger writing every level to stderr.
func NewSimpleLogger() Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loggerFor prefers a logger carried by ctx.
func (d *Dispatcher) loggerFor(ctx context.Context) Logger {
	if logger, ok := LoggerFromContext(ctx); ok {
		return logger
	}
	return d.logger
}

func (d *Dispatcher) debugEnabled(category bool) bool {
	return d.debug != nil && d.debug.Enabled && category
}
