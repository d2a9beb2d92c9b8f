package pkg

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Component identifies a subsystem for log filtering.
type Component string

// Logging component identifiers.
const (
	ComponentQueue     Component = "queue"
	ComponentTransport Component = "transport"
	ComponentConfig    Component = "config"
	ComponentIRQ       Component = "irq"
	ComponentHAL       Component = "hal"
	ComponentHost      Component = "host"
	ComponentReceiver  Component = "receiver"
	ComponentArchive   Component = "archive"
	ComponentDevice    Component = "device"
	ComponentCat       Component = "cat"
)

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Console text format (default)
	LogFormatJSON                  // JSON format
)

// String returns the flag spelling of the format.
func (f LogFormat) String() string {
	switch f {
	case LogFormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseLogFormat converts "text" or "json" to a LogFormat.
func ParseLogFormat(s string) (LogFormat, error) {
	switch s {
	case "", "text", "console":
		return LogFormatText, nil
	case "json":
		return LogFormatJSON, nil
	default:
		return LogFormatText, fmt.Errorf("%w: log format %q", ErrInvalidParameter, s)
	}
}

var (
	// DefaultLogger is the diagnostic logger shared by all components.
	DefaultLogger zerolog.Logger

	// logLevel controls the minimum log level.
	logLevel = zerolog.WarnLevel

	// logMutex protects logger configuration.
	logMutex sync.RWMutex
)

func init() {
	// Per-logger levels decide; the global floor stays open for trace.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	DefaultLogger = NewLogger(os.Stderr)
}

// SetLogLevel sets the minimum level for all component logging.
func SetLogLevel(level zerolog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel = level
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() zerolog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logLevel
}

// ParseLogLevel converts a level name ("debug", "info", ...) to a level.
func ParseLogLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.WarnLevel, fmt.Errorf("%w: log level %q", ErrInvalidParameter, s)
	}
	return level, nil
}

// SetLogger replaces the default logger.
func SetLogger(logger zerolog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// SetLogFormat configures the default logger to use the specified format.
// The logger writes to os.Stderr.
func SetLogFormat(format LogFormat) {
	logMutex.Lock()
	defer logMutex.Unlock()
	switch format {
	case LogFormatJSON:
		DefaultLogger = NewJSONLogger(os.Stderr)
	default:
		DefaultLogger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// NewLogger creates an uncolored console logger writing to w.
func NewLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// NewJSONLogger creates a JSON logger writing to w.
func NewJSONLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// LogTrace logs a trace message with the given component.
func LogTrace(component Component, msg string, args ...any) {
	logAt(zerolog.TraceLevel, component, msg, args)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(zerolog.DebugLevel, component, msg, args)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(zerolog.InfoLevel, component, msg, args)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(zerolog.WarnLevel, component, msg, args)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	logAt(zerolog.ErrorLevel, component, msg, args)
}

func logAt(level zerolog.Level, component Component, msg string, args []any) {
	logMutex.RLock()
	logger := DefaultLogger
	min := logLevel
	logMutex.RUnlock()
	if level < min {
		return
	}
	event := logger.WithLevel(level).Str("component", string(component))
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			event = event.Str(key, "!MISSING")
			break
		}
		event = addField(event, key, args[i+1])
	}
	event.Msg(msg)
}

// addField adds a typed key/value pair to a zerolog event.
func addField(event *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case uint32:
		return event.Uint32(key, v)
	case uint64:
		return event.Uint64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	case fmt.Stringer:
		return event.Stringer(key, v)
	default:
		return event.Interface(key, v)
	}
}
