package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/stream"
)

// FakeEngine is a presentation.Engine that records applied states. It fires
// no change notifications; tests that need them use presentation.Deck.
type FakeEngine struct {
	mu      sync.Mutex
	state   presentation.State
	applied []presentation.State
}

// NewFakeEngine creates a FakeEngine showing initial.
func NewFakeEngine(initial presentation.State) *FakeEngine {
	return &FakeEngine{state: initial.Clone()}
}

// State returns the current state.
func (e *FakeEngine) State() presentation.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// SetState records s and makes it current.
func (e *FakeEngine) SetState(s presentation.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s.Clone()
	e.applied = append(e.applied, s.Clone())
}

// Move changes the current state without recording it, the way a user
// navigating locally would.
func (e *FakeEngine) Move(s presentation.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s.Clone()
}

// Applied returns every state passed to SetState, oldest first.
func (e *FakeEngine) Applied() []presentation.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]presentation.State(nil), e.applied...)
}

// Publication is one recorded FakeRelay.Publish call.
type Publication struct {
	Event    string
	Envelope *stream.Envelope
}

// ErrRelayDown is returned by FakeRelay.Publish after Fail is called.
var ErrRelayDown = errors.New("relay down")

// FakeRelay records publishes and delivers envelopes a test injects with
// Deliver. Subscribe returns the same channels every time.
type FakeRelay struct {
	mu         sync.Mutex
	published  []Publication
	topics     []string
	failing    bool
	envelopes  chan *stream.Envelope
	errs       chan error
	publishSig chan struct{}
}

// NewFakeRelay creates a FakeRelay with buffered delivery channels.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{
		envelopes:  make(chan *stream.Envelope, 16),
		errs:       make(chan error, 4),
		publishSig: make(chan struct{}, 64),
	}
}

// Subscribe records topic and returns the injection channels.
func (r *FakeRelay) Subscribe(_ context.Context, topic string) (<-chan *stream.Envelope, <-chan error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.envelopes, r.errs
}

// Publish records the call. It fails with ErrRelayDown once Fail was called.
func (r *FakeRelay) Publish(_ context.Context, eventName string, env *stream.Envelope) error {
	r.mu.Lock()
	r.published = append(r.published, Publication{Event: eventName, Envelope: env})
	failing := r.failing
	r.mu.Unlock()

	select {
	case r.publishSig <- struct{}{}:
	default:
	}
	if failing {
		return ErrRelayDown
	}
	return nil
}

// Deliver queues env for the subscriber.
func (r *FakeRelay) Deliver(env *stream.Envelope) {
	r.envelopes <- env
}

// DeliverError queues a subscription error.
func (r *FakeRelay) DeliverError(err error) {
	r.errs <- err
}

// Fail makes every later Publish return ErrRelayDown.
func (r *FakeRelay) Fail() {
	r.mu.Lock()
	r.failing = true
	r.mu.Unlock()
}

// Published returns the recorded publishes, oldest first.
func (r *FakeRelay) Published() []Publication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Publication(nil), r.published...)
}

// Topics returns the topics passed to Subscribe.
func (r *FakeRelay) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

// PublishSignal receives a value after every Publish.
func (r *FakeRelay) PublishSignal() <-chan struct{} {
	return r.publishSig
}
