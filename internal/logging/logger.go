// Package logging provides the component logger used across memeboard.
package logging

import (
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// Options configures the process-wide logrus instance.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Out    io.Writer
}

var base = logrus.New()

// Configure applies level and format to the shared logrus instance.
func Configure(opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	if strings.EqualFold(opts.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	base.SetLevel(level)
	return nil
}

type entryLogger struct {
	entry *logrus.Entry
}

func (l *entryLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *entryLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *entryLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *entryLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

// NewComponentLogger returns the application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	return &entryLogger{entry: base.WithField("component", component)}
}

// WithField returns a logger carrying an extra structured field. Loggers
// not created by this package are returned unchanged.
func WithField(logger Logger, key string, value any) Logger {
	if el, ok := logger.(*entryLogger); ok {
		return &entryLogger{entry: el.entry.WithField(key, value)}
	}
	return OrNop(logger)
}
