package fixtures

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type writer struct {
	tb testing.TB
}

var _ io.Writer = (*writer)(nil)

func (w writer) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}

// LoggerOption adjusts a test logger before use.
type LoggerOption func(*logrus.Logger)

// WithLevel sets the level of a test logger. The default is debug, so dropped lines show up in test output.
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetLevel(level)
	}
}

// NewTestLogger returns a logger which writes through tb.Log.
func NewTestLogger(tb testing.TB, opts ...LoggerOption) logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)

	for _, opt := range opts {
		opt(l)
	}
	l.SetOutput(writer{tb: tb})

	return l
}
