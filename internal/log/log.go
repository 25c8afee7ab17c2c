package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	logger     *charmLog.Logger
	loggerOnce sync.Once
	loggerMu   sync.Mutex
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		logger = newLogger(os.Stderr, charmLog.InfoLevel)
	})
}

func newLogger(w io.Writer, level charmLog.Level) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          "calcolumn",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Formatter:       charmLog.TextFormatter,
	})
}

// SetLevel changes the minimum level written by the global logger.
func SetLevel(l Level) {
	initLogger()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger.SetLevel(toCharm(l))
}

// ParseLevel maps a config string ("debug", "info", "error") to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelDebug):
		return LevelDebug
	case string(LevelError):
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects the global logger, keeping the current level.
func SetOutput(w io.Writer) {
	initLogger()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	level := logger.GetLevel()
	logger = newLogger(w, level)
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

func current() *charmLog.Logger {
	initLogger()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

func toCharm(l Level) charmLog.Level {
	switch l {
	case LevelDebug:
		return charmLog.DebugLevel
	case LevelError:
		return charmLog.ErrorLevel
	default:
		return charmLog.InfoLevel
	}
}
