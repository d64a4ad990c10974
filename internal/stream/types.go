// Package stream defines the relay wire format and an HTTP client for the
// relay: Server-Sent Events for subscriptions, JSON POSTs for publishing.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/presentation"
)

// EventStateChanged is the only event a master publishes.
const EventStateChanged = "state-changed"

// SSE event names sent by the relay.
const (
	// FrameHello is the first frame on a subscription and carries the
	// connection ID the subscriber must echo when publishing.
	FrameHello = "hello"
	// FrameStateChanged carries a relayed Envelope.
	FrameStateChanged = EventStateChanged
)

// HeaderConnection names the subscription a publish originates from, so the
// relay can skip delivering the message back to it.
const HeaderConnection = "Slidesync-Connection"

// Envelope is the message unit exchanged over the relay. Field names follow
// the reference multiplex wire format: socketId carries the channel id and
// client_id carries the sender's session identity.
type Envelope struct {
	ChannelID string              `json:"socketId"`
	Secret    string              `json:"secret,omitempty"`
	State     presentation.State  `json:"state"`
	SenderID  *identity.SessionID `json:"client_id,omitempty"`
}

// NewEnvelope builds an Envelope. A nil sender omits client_id from the wire.
func NewEnvelope(channelID, secret string, state presentation.State, sender *identity.SessionID) *Envelope {
	env := &Envelope{
		ChannelID: channelID,
		Secret:    secret,
		State:     state.Clone(),
	}
	if sender != nil {
		id := *sender
		env.SenderID = &id
	}
	return env
}

// FromSender reports whether env carries id as its sender.
func (e *Envelope) FromSender(id identity.SessionID) bool {
	return e.SenderID != nil && *e.SenderID == id
}

// Marshal serializes the envelope to JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope deserializes an Envelope from JSON.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &e, nil
}

// Hello is the payload of the first frame on a subscription.
type Hello struct {
	ConnectionID string `json:"connection_id"`
	Channel      string `json:"channel"`
}

// PublishResult is the relay's response to a publish.
type PublishResult struct {
	Delivered int `json:"delivered"`
}
