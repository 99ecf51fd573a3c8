// Package logger provides the bridge's structured logging: a
// package-level zerolog.Logger, an optional OpenTelemetry log bridge,
// and file output. The bridge's own persisted operator log rotates
// with internal/rotatelog's single ".old" sibling scheme; lumberjack
// here instead backs a separate, higher-volume structured JSON sink.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/bridges/otelzerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance. Nop until Init is called.
var Log zerolog.Logger = zerolog.Nop()

// OtelConfig configures the optional OTEL log bridge.
type OtelConfig struct {
	Endpoint string
	Insecure bool
}

// Options configures Init.
type Options struct {
	// JSONLogPath, if set, enables a lumberjack-backed JSON file sink
	// (high-volume structured log, distinct from the single rolling
	// text log which is written separately via rotatelog).
	JSONLogPath string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int

	// Console enables a human-readable console writer on stderr
	// (clawker-bridge serve turns it on; the reference TUI client,
	// which owns the terminal, leaves it off).
	Console bool

	// Otel, if non-nil, wires the zerolog-to-OTEL log bridge.
	Otel *OtelConfig

	Level zerolog.Level
}

// loggerProvider is retained so Shutdown can flush exported records.
var loggerProvider *sdklog.LoggerProvider

// Init initializes the global logger per Options. It is safe to call
// once at process startup.
func Init(opts Options) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if opts.JSONLogPath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.JSONLogPath,
			MaxSize:    defaultInt(opts.MaxSizeMB, 50),
			MaxBackups: defaultInt(opts.MaxBackups, 3),
			MaxAge:     defaultInt(opts.MaxAgeDays, 7),
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	base := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	if opts.Level != 0 {
		base = base.Level(opts.Level)
	}

	if opts.Otel != nil {
		exporter, err := newOtelExporter(*opts.Otel)
		if err != nil {
			return err
		}
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
		loggerProvider = provider
		hook := otelzerolog.NewHook("clawker-bridge", otelzerolog.WithLoggerProvider(provider))
		base = base.Hook(hook)
	}

	Log = base
	return nil
}

// WithSession returns a child logger tagged with session/turn context.
func WithSession(sessionID string, turn int64) zerolog.Logger {
	return Log.With().Str("session_id", sessionID).Int64("turn", turn).Logger()
}

// Shutdown flushes and releases any OTEL export resources.
func Shutdown(ctx context.Context) error {
	if loggerProvider == nil {
		return nil
	}
	return loggerProvider.Shutdown(ctx)
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
