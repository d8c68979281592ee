// Package logging provides structured logging for the CLI and the loaders.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/events"
)

var (
	outputMu sync.RWMutex
	// shared is the writer new loggers attach to; console by default,
	// console plus rotated file after EnableFileOutput.
	shared io.Writer = newConsoleWriter(os.Stderr)
	file   *lumberjack.Logger
)

// Logger wraps zerolog with a component name and an optional event bus.
// Warnings and errors are mirrored to the bus as LogEvents.
type Logger struct {
	zlog      zerolog.Logger
	component string
	eventBus  *events.EventBus
}

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}
}

// NewLogger creates a new logger tagged with the given component name.
func NewLogger(component string, eventBus *events.EventBus) *Logger {
	outputMu.RLock()
	output := shared
	outputMu.RUnlock()

	return &Logger{
		zlog:      build(output, component),
		component: component,
		eventBus:  eventBus,
	}
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

func build(w io.Writer, component string) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger()
}

// EnableFileOutput adds a rotated log file next to console output for all
// loggers created afterwards.
func EnableFileOutput(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	outputMu.Lock()
	defer outputMu.Unlock()

	if file != nil {
		_ = file.Close()
	}
	file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    constants.LogFileMaxSizeMB,
		MaxBackups: constants.LogFileMaxBackups,
		MaxAge:     constants.LogFileMaxAgeDays,
		Compress:   true,
	}
	// Console gets the pretty format, the file keeps raw JSON lines.
	shared = zerolog.MultiLevelWriter(newConsoleWriter(os.Stderr), file)
	log.Logger = zerolog.New(shared).With().Timestamp().Logger()
	return nil
}

// CloseFileOutput flushes and closes the rotated log file, if any.
func CloseFileOutput() error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	shared = newConsoleWriter(os.Stderr)
	return err
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Warnf logs a warning message and mirrors it to the event bus.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Warn().Msg(msg)
	if l.eventBus != nil {
		l.eventBus.PublishLog(events.WarnLevel, msg, l.component, nil)
	}
}

// Errorf logs an error message and mirrors it to the event bus.
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Error().Msg(msg)
	if l.eventBus != nil {
		l.eventBus.PublishLog(events.ErrorLevel, msg, l.component, nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
