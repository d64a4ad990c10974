package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/stream"
)

// AssertSameState asserts that two states have equal projections.
// Fragment indices are ignored, as they are by the loop guard.
func AssertSameState(t *testing.T, expected, actual presentation.State) {
	t.Helper()
	assert.Equal(t, expected.Project(), actual.Project(), "state projection mismatch")
}

// AssertPublishedStates asserts that relay saw exactly one state-changed
// publish per expected state, in order.
func AssertPublishedStates(t *testing.T, relay *FakeRelay, expected ...presentation.State) {
	t.Helper()

	published := relay.Published()
	require.Len(t, published, len(expected), "publish count mismatch")
	for i := range expected {
		assert.Equal(t, stream.EventStateChanged, published[i].Event,
			"publish[%d] event mismatch", i)
		require.NotNil(t, published[i].Envelope, "publish[%d] envelope is nil", i)
		assert.Equal(t, expected[i].Project(), published[i].Envelope.State.Project(),
			"publish[%d] state mismatch", i)
	}
}

// AssertNoPublish asserts that relay saw no publish.
func AssertNoPublish(t *testing.T, relay *FakeRelay) {
	t.Helper()
	assert.Empty(t, relay.Published(), "expected no publish")
}

// AssertSender asserts that env carries id as its sender.
func AssertSender(t *testing.T, env *stream.Envelope, id identity.SessionID) {
	t.Helper()
	require.NotNil(t, env, "envelope is nil")
	require.NotNil(t, env.SenderID, "envelope has no client_id")
	assert.Equal(t, id, *env.SenderID, "client_id mismatch")
}

// AssertNoSender asserts that env carries no sender.
func AssertNoSender(t *testing.T, env *stream.Envelope) {
	t.Helper()
	require.NotNil(t, env, "envelope is nil")
	assert.Nil(t, env.SenderID, "expected client_id to be absent")
}

// ReceiveEnvelope reads one envelope from ch, failing the test after timeout
// or if ch is closed.
func ReceiveEnvelope(t *testing.T, ch <-chan *stream.Envelope, timeout time.Duration) *stream.Envelope {
	t.Helper()

	select {
	case env, ok := <-ch:
		require.True(t, ok, "envelope channel closed")
		return env
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for envelope")
		return nil
	}
}

// AssertNoEnvelope asserts that nothing arrives on ch within wait.
func AssertNoEnvelope(t *testing.T, ch <-chan *stream.Envelope, wait time.Duration) {
	t.Helper()

	select {
	case env, ok := <-ch:
		if ok {
			assert.Failf(t, "unexpected envelope", "received %+v", env)
		}
	case <-time.After(wait):
	}
}
