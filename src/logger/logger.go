package logger

import (
	"io"
	"os"
	"path/filepath"

	"stream-manager/src/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

// Logger is the logging sink injected into every component. It keeps a
// printf-style surface and delegates to logrus underneath, with optional
// size-based file rotation.
type Logger struct {
	name string
	log  *logrus.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a logger from configuration. The name is attached to
// every entry so components sharing one sink stay distinguishable.
func NewLogger(config *models.MLoggerConfig, name string) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	writers := []io.Writer{os.Stdout}
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   config.OutputFile,
				MaxSize:    config.MaxSizeMB,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAgeDays,
				Compress:   config.Compress,
			})
		}
	}
	log.SetOutput(io.MultiWriter(writers...))

	return &Logger{name: name, log: log}
}

// -----------------------------------------------------------------------------

// NewNop creates a logger that discards everything. It is the default used
// by components constructed without an explicit sink.
func NewNop() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{name: "nop", log: log}
}

// -----------------------------------------------------------------------------

// WithName returns a logger sharing the same backend under a different name
func (l *Logger) WithName(name string) *Logger {
	return &Logger{name: name, log: l.log}
}

// -----------------------------------------------------------------------------

func (l *Logger) entry() *logrus.Entry {
	return l.log.WithField("component", l.name)
}

// -----------------------------------------------------------------------------

// Debug logs a formatted DEBUG entry
func (l *Logger) Debug(format string, args ...any) {
	l.entry().Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs a formatted INFO entry
func (l *Logger) Info(format string, args ...any) {
	l.entry().Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs a formatted WARNING entry
func (l *Logger) Warning(format string, args ...any) {
	l.entry().Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs a formatted ERROR entry
func (l *Logger) Error(format string, args ...any) {
	l.entry().Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs a formatted ERROR entry for conditions the caller will treat
// as fatal. The exit decision stays with the caller.
func (l *Logger) Critical(format string, args ...any) {
	l.entry().WithField("critical", true).Errorf(format, args...)
}
