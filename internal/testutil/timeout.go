package testutil

import (
	"context"
	"testing"
	"time"
)

// Default timeouts for relay and session tests.
const (
	// DefaultRelayTimeout bounds a test that talks to a relay over HTTP.
	DefaultRelayTimeout = 10 * time.Second

	// DefaultEventWait is how long a test waits for an asynchronous
	// delivery before failing, or for the absence of one.
	DefaultEventWait = 2 * time.Second

	// DefaultPollInterval is the tick for require.Eventually checks.
	DefaultPollInterval = 5 * time.Millisecond

	// DefaultTestBuffer is the buffer time subtracted from test deadline
	// to allow for cleanup operations before the test times out.
	DefaultTestBuffer = 2 * time.Second
)

// ContextWithTestDeadline creates a context that respects the test's deadline.
// It subtracts a buffer from the test deadline to allow time for cleanup.
// If the test has no deadline, it falls back to the provided fallback duration.
func ContextWithTestDeadline(t *testing.T, fallback time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadlineBuffer(t, fallback, DefaultTestBuffer)
}

// ContextWithTestDeadlineBuffer creates a context that respects the test's deadline
// with a custom buffer.
//
// If the test has no deadline, it uses the fallback duration.
// If the calculated deadline (test deadline minus buffer) is in the past,
// it uses the fallback instead. The earlier of the two deadlines wins.
func ContextWithTestDeadlineBuffer(t *testing.T, fallback, buffer time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		adjusted := deadline.Add(-buffer)
		if remaining := time.Until(adjusted); remaining > 0 && remaining < fallback {
			return context.WithDeadline(context.Background(), adjusted)
		}
	}

	return context.WithTimeout(context.Background(), fallback)
}

// RelayContext creates a context for a test exercising a relay server.
func RelayContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return ContextWithTestDeadline(t, DefaultRelayTimeout)
}
