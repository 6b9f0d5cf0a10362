package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Config controls log level, output format, and destination. When File is
// set, output rotates through lumberjack.
type Config struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logger wraps a logrus entry with variadic key-value logging and the
// pipeline's structured event helpers.
type Logger struct {
	entry *logrus.Entry
}

func New(cfg Config) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	if cfg.Format == "text" {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	base.SetOutput(out)

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func keyvalsToFields(keyvals []any) Fields {
	fields := make(Fields, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields[key] = keyvals[i+1]
	}
	return fields
}

func (l *Logger) Debug(msg string, keyvals ...any) {
	l.entry.WithFields(keyvalsToFields(keyvals)).Debug(msg)
}

func (l *Logger) Info(msg string, keyvals ...any) {
	l.entry.WithFields(keyvalsToFields(keyvals)).Info(msg)
}

func (l *Logger) Warn(msg string, keyvals ...any) {
	l.entry.WithFields(keyvalsToFields(keyvals)).Warn(msg)
}

func (l *Logger) Error(msg string, keyvals ...any) {
	l.entry.WithFields(keyvalsToFields(keyvals)).Error(msg)
}

// LogService records one call to an external collaborator (store, search
// provider, model API) with its duration and outcome.
func (l *Logger) LogService(service, operation string, duration time.Duration, detail map[string]any, err error) {
	entry := l.entry.WithFields(Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if detail != nil {
		entry = entry.WithFields(Fields(detail))
	}
	if err != nil {
		entry.WithError(err).Error("service call failed")
		return
	}
	entry.Info("service call completed")
}

// LogStage records a stage lifecycle event for a run.
func (l *Logger) LogStage(slug string, stage string, event string, duration time.Duration, detail map[string]any, err error) {
	entry := l.entry.WithFields(Fields{
		"slug":        slug,
		"stage":       stage,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if detail != nil {
		entry = entry.WithFields(Fields(detail))
	}
	if err != nil {
		entry.WithError(err).Error("stage event")
		return
	}
	entry.Info("stage event")
}

// LogRun records a run-level lifecycle event.
func (l *Logger) LogRun(slug, requestID, event string, duration time.Duration, err error) {
	entry := l.entry.WithFields(Fields{
		"slug":        slug,
		"request_id":  requestID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("run event")
		return
	}
	entry.Info("run event")
}
