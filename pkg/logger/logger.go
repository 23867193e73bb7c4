// Package logger provides the structured logger shared by every component.
// It is a thin layer over logrus that carries a component name on each entry.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config configures a Logger.
type Config struct {
	// Name is attached to every entry as the "component" field.
	Name string

	// Level is a logrus level name ("debug", "info", "warn", "error").
	// Empty means "info".
	Level string

	// Format is "json" or "text". Empty means "text".
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// Logger is a logrus entry bound to a component.
type Logger struct {
	*logrus.Entry
}

// New creates a logger from cfg. An unknown level falls back to info.
func New(cfg Config) *Logger {
	base := logrus.New()

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logrus.NewEntry(base)
	if cfg.Name != "" {
		entry = entry.WithField("component", cfg.Name)
	}
	return &Logger{Entry: entry}
}

// NewDefault creates an info-level text logger for the named component.
func NewDefault(name string) *Logger {
	return New(Config{Name: name})
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return New(Config{Output: io.Discard, Level: "panic"})
}

// Named returns a child logger for a sub-component sharing the same output.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithField returns a child logger with one extra field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithFields returns a child logger with the given fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a child logger carrying err.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}
