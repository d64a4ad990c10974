// Package testutil provides shared test utilities for slidesync.
//
// This package consolidates the fakes, fixtures, and assertions used across
// the slidesync codebase so tests exercise the protocol the same way.
//
// # Fakes
//
// The fakes.go file provides in-memory collaborators:
//
//   - FakeEngine - a presentation.Engine that records every SetState call
//   - FakeRelay - a relay that records publishes and lets a test inject envelopes
//
// # Fixtures
//
// The fixtures.go file provides sample data for testing:
//
//   - SampleChannelID, SampleSecret, SampleRelayAddress - channel constants
//   - SampleState(h, v) - a state at slide (h, v)
//   - SampleEnvelope(state, sender) - an envelope on the sample channel
//   - SampleConfigYAML - a config file for loader tests
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupTestDir(t) - creates a temp directory with .slidesync structure
//   - MustMarshalJSON(t, v) - marshals to JSON or fails test
//   - MustUnmarshalJSON(t, data, v) - unmarshals JSON or fails test
//   - WriteTestFile(t, base, path, content) - writes a file in test dir
//
// # Assertions
//
// The assertions.go file provides custom test assertions:
//
//   - AssertSameState(t, expected, actual) - compares state projections
//   - AssertPublishedStates(t, relay, states...) - checks published states in order
//   - AssertNoPublish(t, relay) - checks nothing was published
//   - AssertSender(t, env, id) / AssertNoSender(t, env) - client_id presence
//   - ReceiveEnvelope(t, ch, timeout) - reads one envelope or fails
//
// # Usage
//
//	func TestSomething(t *testing.T) {
//	    engine := testutil.NewFakeEngine(testutil.SampleState(2, 0))
//	    relay := testutil.NewFakeRelay()
//	    // ... run test ...
//	    testutil.AssertPublishedStates(t, relay, testutil.SampleState(3, 0))
//	}
package testutil
