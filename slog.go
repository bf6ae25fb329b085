//go:build go1.21
// +build go1.21

package bayeux

import "log/slog"

// wrappedSlog adapts *slog.Logger to the Logger interface, grounded on
// the teacher's v2/slog.go.
type wrappedSlog struct {
	*slog.Logger
}

func (w *wrappedSlog) WithError(err error) Logger {
	return w.WithField("error", err)
}

func (w *wrappedSlog) WithField(key string, value any) Logger {
	return &wrappedSlog{w.With(slog.Any(key, value))}
}

// WithSlogLogger configures a Client or Dispatcher to log through logger
// instead of the default nullLogger, which discards everything.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = &wrappedSlog{logger}
	}
}
