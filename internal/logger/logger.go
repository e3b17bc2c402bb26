// Package logger holds the process-wide structured logger used by the
// allocator and pool packages. It discards everything until Init is called or
// KALLOC_LOG_ALLOC is set in the environment.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// EnvLogAlloc turns on debug logging to stderr at startup when non-empty.
const EnvLogAlloc = "KALLOC_LOG_ALLOC"

// L is the global logger instance. It's initialized to discard all output by default.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo
	JSON    bool       // Emit JSON records instead of key=value text
}

func init() {
	if os.Getenv(EnvLogAlloc) != "" {
		Init(Options{Enabled: true, Level: slog.LevelDebug})
	}
}

// Init configures logging. Call from main() before any allocator work.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, handlerOpts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Debugging reports whether debug records would be emitted. Callers use it to
// skip building expensive attributes.
func Debugging() bool {
	return L.Enabled(context.Background(), slog.LevelDebug)
}
