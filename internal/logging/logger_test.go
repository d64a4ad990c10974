package logging

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(level)
	logger.SetOutput(log.New(&buf, "", 0))
	return logger, &buf
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"error allowed at debug", LevelDebug, LevelError, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info allowed at info", LevelInfo, LevelInfo, true},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.minLevel)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("test message")
			case LevelInfo:
				logger.Info("test message")
			case LevelWarn:
				logger.Warn("test message")
			case LevelError:
				logger.Error("test message")
			}

			if tt.shouldLog {
				assert.Contains(t, buf.String(), tt.logLevel.String()+": test message")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerFieldsAreSorted(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.WithFields(map[string]any{"zeta": 1, "alpha": 2}).Info("rx", "mid", 3)

	assert.Equal(t, "INFO: rx | alpha=2 mid=3 zeta=1\n", buf.String())
}

func TestLoggerInlineKeyVals(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Warn("publish failed", "error", errors.New("connection refused"), "channel", "c1")

	output := buf.String()
	assert.Contains(t, output, "WARN: publish failed")
	assert.Contains(t, output, `error="connection refused"`)
	assert.Contains(t, output, "channel=c1")
}

func TestLoggerChildSharesLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn)
	child := logger.With("client_id", 7)

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(LevelDebug)
	child.Debug("visible")
	assert.Contains(t, buf.String(), "client_id=7")
	assert.Equal(t, LevelDebug, child.Level())
}

func TestLoggerForkHasOwnLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)
	fork := logger.With("component", "session").Fork()
	assert.Equal(t, LevelDebug, fork.Level())

	fork.SetLevel(LevelWarn)
	assert.Equal(t, LevelDebug, logger.Level())
	assert.Equal(t, LevelWarn, fork.Level())

	fork.Debug("hidden")
	assert.Empty(t, buf.String())

	fork.Warn("shared output")
	assert.Contains(t, buf.String(), "component=session")

	logger.SetLevel(LevelError)
	assert.Equal(t, LevelWarn, fork.Level())
}

func TestLoggerOriginalUnmodified(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	_ = logger.With("session", "abc123")
	logger.Info("original logger")

	assert.NotContains(t, buf.String(), "session=abc123")
}

type stringer struct{}

func (stringer) String() string { return "h=1 v=0" }

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"simple string", "hello", "hello"},
		{"empty string", "", `""`},
		{"string with spaces", "hello world", `"hello world"`},
		{"integer", 42, "42"},
		{"error", errors.New("oops"), `"oops"`},
		{"stringer", stringer{}, `"h=1 v=0"`},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatValue(tt.input))
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	level, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, LevelError, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(LevelError))
	assert.NotPanics(t, func() { logger.Error("dropped") })
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(log.New(&buf, "", 0))
	SetLevel(LevelWarn)
	t.Cleanup(func() { SetLevel(LevelWarn) })

	Debug("debug message")
	assert.Empty(t, buf.String())

	Warn("warn message")
	assert.True(t, strings.HasPrefix(buf.String(), "WARN: warn message"))

	buf.Reset()
	With("component", "relay").Error("error message")
	assert.Contains(t, buf.String(), "component=relay")
}
