package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type LogrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// New returns a logrus-backed logger at the given level ("debug",
// "info", "warn", "error"; anything else falls back to info).
func New(level string) Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return &LogrusLogger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}
}

// NewWithOutput returns a logger writing to the given writer. Used by
// tests to capture output.
func NewWithOutput(level string, out io.Writer) Logger {
	l := New(level).(*LogrusLogger)
	l.logger.SetOutput(out)
	return l
}

func (l *LogrusLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *LogrusLogger) Info(msg string) {
	l.entry.Info(msg)
}

func (l *LogrusLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *LogrusLogger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}

func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(fields),
	}
}
