package testutil

import (
	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/stream"
)

// Sample channel values. SampleChannelID is the md5 of SampleSecret, so the
// pair verifies against a relay using the default algorithm.
const (
	SampleSecret       = "s"
	SampleChannelID    = "03c7c0ace395d80182db07ae2c30f034"
	SampleRelayAddress = "http://relay.test"
)

// SampleConfigYAML is a complete config file for loader tests.
const SampleConfigYAML = `multiplex:
  channel_id: 03c7c0ace395d80182db07ae2c30f034
  relay_address: http://relay.test
  secret: s
  strict_compatibility: false
  identity_range: 1024
debug:
  during_init: true
  after_init: false
relay:
  port: 9090
  hash_algorithm: md5
  trace: false
`

// SampleState returns a state at slide (h, v) with no fragment, overview
// closed and not paused.
func SampleState(h, v int) presentation.State {
	return presentation.State{IndexH: h, IndexV: v}
}

// SampleEnvelope returns an envelope on the sample channel without a secret,
// as a follower would receive it. A nil sender omits client_id.
func SampleEnvelope(s presentation.State, sender *identity.SessionID) *stream.Envelope {
	return stream.NewEnvelope(SampleChannelID, "", s, sender)
}

// SenderID returns a pointer to id, for building envelopes.
func SenderID(id int) *identity.SessionID {
	sid := identity.SessionID(id)
	return &sid
}
