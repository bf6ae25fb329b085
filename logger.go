package bayeux

import "github.com/sirupsen/logrus"

// Logger defines the logging interface this module leverages, grounded
// on the teacher's v2/logger.go. It exists so the module never forces a
// particular logging library on callers: WithLogger installs any
// implementation, WithSlogLogger (slog.go, go1.21+) wraps log/slog, and
// a nullLogger that discards everything is the default when no logger is
// configured. The logrus wrapper below (newLogrusLogger) is not selected
// by any Option.
type Logger interface {
	// Debug logs routine, high-volume events (every poll, every heartbeat).
	Debug(msg string, args ...any)
	// Info logs state transitions and other notable, low-volume events.
	Info(msg string, args ...any)
	// Warn logs recoverable failures (extension panics, a single failed
	// heartbeat).
	Warn(msg string, args ...any)
	// Error logs unrecoverable failures (handshake failure, exhausted
	// reconnect attempts).
	Error(msg string, args ...any)
	// WithError returns a Logger that attaches err to every subsequent
	// log line.
	WithError(error) Logger
	// WithField returns a Logger that attaches key/value to every
	// subsequent log line.
	WithField(key string, value any) Logger
}

type nullLogger struct{}

func (*nullLogger) Debug(msg string, args ...any) {}
func (*nullLogger) Info(msg string, args ...any)  {}
func (*nullLogger) Warn(msg string, args ...any)  {}
func (*nullLogger) Error(msg string, args ...any) {}

func (l *nullLogger) WithError(err error) Logger             { return l }
func (l *nullLogger) WithField(key string, value any) Logger { return l }

func newNullLogger() *nullLogger {
	return &nullLogger{}
}

type wrappedFieldLogger struct {
	logrus.FieldLogger
}

// newLogrusLogger wraps a logrus.FieldLogger (or a fresh *logrus.Logger
// if nil) as the default Logger implementation.
func newLogrusLogger(base logrus.FieldLogger) Logger {
	if base == nil {
		base = logrus.New()
	}
	return &wrappedFieldLogger{base}
}

func (w *wrappedFieldLogger) Debug(msg string, args ...any) {
	w.FieldLogger.Debug(append([]any{msg}, args...)...)
}

func (w *wrappedFieldLogger) Info(msg string, args ...any) {
	w.FieldLogger.Info(append([]any{msg}, args...)...)
}

func (w *wrappedFieldLogger) Warn(msg string, args ...any) {
	w.FieldLogger.Warn(append([]any{msg}, args...)...)
}

func (w *wrappedFieldLogger) Error(msg string, args ...any) {
	w.FieldLogger.Error(append([]any{msg}, args...)...)
}

func (w *wrappedFieldLogger) WithError(err error) Logger {
	return &wrappedFieldLogger{w.FieldLogger.WithError(err)}
}

func (w *wrappedFieldLogger) WithField(key string, value any) Logger {
	return &wrappedFieldLogger{w.FieldLogger.WithField(key, value)}
}
