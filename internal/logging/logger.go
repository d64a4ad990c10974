// Package logging provides leveled key/value logging for slidesync. Output is
// one line per entry: "LEVEL: message | key=value ...", with keys sorted so
// trace lines diff cleanly across runs.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Level represents a log level.
type Level int

const (
	// LevelDebug is for protocol traces (rx/tx frames, dropped envelopes).
	LevelDebug Level = iota
	// LevelInfo is for lifecycle messages.
	LevelInfo
	// LevelWarn is for recoverable errors such as a failed publish.
	LevelWarn
	// LevelError is for errors that stop a component.
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	for level, levelName := range levelNames {
		if strings.EqualFold(name, levelName) {
			return level, nil
		}
	}
	return LevelWarn, fmt.Errorf("unknown log level %q", name)
}

// Logger is a leveled logger carrying context fields.
// Child loggers created with With share their parent's level and output.
type Logger struct {
	core   *core
	fields map[string]any
}

// core holds the state shared between a logger and its children.
type core struct {
	mu       sync.RWMutex
	minLevel Level
	output   *log.Logger
}

var defaultLogger = New()

// New creates a Logger writing to stderr at warn level.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a Logger writing to w at warn level.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		core: &core{
			minLevel: LevelWarn,
			output:   log.New(w, "", log.LstdFlags),
		},
		fields: make(map[string]any),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	l := NewWithWriter(io.Discard)
	l.SetLevel(LevelError + 1)
	return l
}

// SetLevel sets the minimum level for this logger and all its children.
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.minLevel = level
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()
	return l.core.minLevel
}

// SetOutput replaces the output for this logger and all its children.
func (l *Logger) SetOutput(output *log.Logger) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.output = output
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.Level()
}

// With returns a child Logger with an additional context field.
func (l *Logger) With(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields returns a child Logger with additional context fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{core: l.core, fields: merged}
}

// Fork returns a child Logger with its own level, starting at l's level.
// The fork writes to l's current output; SetLevel on either one leaves the
// other untouched.
func (l *Logger) Fork() *Logger {
	l.core.mu.RLock()
	c := &core{minLevel: l.core.minLevel, output: l.core.output}
	l.core.mu.RUnlock()

	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &Logger{core: c, fields: fields}
}

func (l *Logger) log(level Level, msg string, keyVals ...any) {
	l.core.mu.RLock()
	minLevel := l.core.minLevel
	output := l.core.output
	l.core.mu.RUnlock()

	if level < minLevel {
		return
	}

	all := make(map[string]any, len(l.fields)+len(keyVals)/2)
	for k, v := range l.fields {
		all[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		if key, ok := keyVals[i].(string); ok {
			all[key] = keyVals[i+1]
		}
	}

	var sb strings.Builder
	sb.WriteString(level.String())
	sb.WriteString(": ")
	sb.WriteString(msg)

	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" |")
		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(formatValue(all[k]))
		}
	}

	output.Print(sb.String())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case fmt.Stringer:
		return formatValue(val.String())
	default:
		return fmt.Sprint(v)
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyVals ...any) { l.log(LevelDebug, msg, keyVals...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keyVals ...any) { l.log(LevelInfo, msg, keyVals...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyVals ...any) { l.log(LevelWarn, msg, keyVals...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keyVals ...any) { l.log(LevelError, msg, keyVals...) }

// Default returns the package-level logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum level of the default logger.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

// SetOutput sets the output of the default logger.
func SetOutput(output *log.Logger) { defaultLogger.SetOutput(output) }

// With returns a child of the default logger.
func With(key string, value any) *Logger { return defaultLogger.With(key, value) }

// Debug logs at debug level using the default logger.
func Debug(msg string, keyVals ...any) { defaultLogger.Debug(msg, keyVals...) }

// Info logs at info level using the default logger.
func Info(msg string, keyVals ...any) { defaultLogger.Info(msg, keyVals...) }

// Warn logs at warn level using the default logger.
func Warn(msg string, keyVals ...any) { defaultLogger.Warn(msg, keyVals...) }

// Error logs at error level using the default logger.
func Error(msg string, keyVals ...any) { defaultLogger.Error(msg, keyVals...) }
