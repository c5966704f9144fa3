// Package log provides the shared slog setup. Loggers are scoped to a
// component so records from the veeam client, the report generator and the
// workers can be told apart in one stream.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a component-scoped slog.Logger. The component attribute is
// attached once, on the embedded handle; all slog methods are promoted.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Output: os.Stdout}
}

// New creates a logger writing text records to the configured output.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level})
	return &Logger{Logger: slog.New(handler)}
}

// With returns a logger carrying the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a logger whose records carry exactly one component
// attribute, replacing none but never stacking a second one.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    l.Logger.With("component", component),
		component: component,
	}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the logger as the process-wide slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
