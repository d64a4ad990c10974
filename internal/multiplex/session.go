package multiplex

import (
	"context"

	"github.com/thruflo/slidesync/internal/event"
	"github.com/thruflo/slidesync/internal/identity"
	"github.com/thruflo/slidesync/internal/logging"
	"github.com/thruflo/slidesync/internal/presentation"
	"github.com/thruflo/slidesync/internal/stream"
)

// Relay is the topic-scoped publish/subscribe capability a Session uses.
// *stream.Client satisfies it.
type Relay interface {
	Subscribe(ctx context.Context, topic string) (<-chan *stream.Envelope, <-chan error)
	Publish(ctx context.Context, eventName string, env *stream.Envelope) error
}

// Notifier delivers presentation change notifications. *event.Bus satisfies it.
type Notifier interface {
	Subscribe(eventType string, handler event.Handler) string
	Unsubscribe(id string) bool
}

// localQueueSize bounds pending change notifications. Notifications carry no
// data, so when the queue is full a new one adds nothing and is dropped.
const localQueueSize = 16

// Session is one instance's participation in a channel. It owns the loop
// guard shared by the inbound and outbound handlers.
type Session struct {
	cfg    ChannelConfig
	role   Role
	id     identity.SessionID
	engine presentation.Engine
	relay  Relay
	events Notifier
	logger *logging.Logger

	// quietLevel is the session level while debug output is off.
	quietLevel logging.Level

	strict          bool
	identityRange   int
	receiver        bool
	excluded        func() bool
	source          identity.Source
	debugDuringInit bool
	debugAfterInit  bool

	guard LoopGuard

	local   chan string
	subIDs  []string
	envCh   <-chan *stream.Envelope
	errCh   <-chan error
	started bool

	// observe, when set, is called by Run after each handled input.
	observe func(kind string, acted bool)
}

// Option configures a Session.
type Option func(*Session)

// WithStrictCompatibility omits the sender identity from published
// envelopes. Followers then cannot drop their own echoes by identity.
func WithStrictCompatibility(strict bool) Option {
	return func(s *Session) {
		s.strict = strict
	}
}

// WithIdentityRange sets the range the session identity is drawn from.
func WithIdentityRange(n int) Option {
	return func(s *Session) {
		s.identityRange = n
	}
}

// WithIdentitySource sets the random source for the session identity.
func WithIdentitySource(src identity.Source) Option {
	return func(s *Session) {
		s.source = src
	}
}

// WithReceiver marks the session as a display-only surface that never
// broadcasts.
func WithReceiver(receiver bool) Option {
	return func(s *Session) {
		s.receiver = receiver
	}
}

// WithExclusion installs a predicate that, while it reports true, makes the
// session ignore every inbound envelope.
func WithExclusion(excluded func() bool) Option {
	return func(s *Session) {
		s.excluded = excluded
	}
}

// WithLogger sets the parent of the session logger. The session forks it and
// adjusts only the fork's level during and after Start.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDebug enables debug output during initialisation and after it.
func WithDebug(duringInit, afterInit bool) Option {
	return func(s *Session) {
		s.debugDuringInit = duringInit
		s.debugAfterInit = afterInit
	}
}

// NewSession creates a Session and draws its identity. events may be nil for
// a session that will never be a master.
func NewSession(cfg ChannelConfig, engine presentation.Engine, relay Relay, events Notifier, opts ...Option) *Session {
	s := &Session{
		cfg:             cfg,
		engine:          engine,
		relay:           relay,
		events:          events,
		identityRange:   identity.DefaultRange,
		debugDuringInit: true,
		local:           make(chan string, localQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New()
	}

	s.id = identity.Generate(s.identityRange, s.source)
	s.role = SelectRole(cfg, s.receiver)
	s.quietLevel = max(s.logger.Level(), logging.LevelWarn)
	s.logger = s.logger.Fork().WithFields(map[string]any{
		"channel":   shortChannel(cfg.ChannelID),
		"client_id": int(s.id),
	})
	return s
}

// ID returns the session identity.
func (s *Session) ID() identity.SessionID {
	return s.id
}

// Role returns the role selected for the session.
func (s *Session) Role() Role {
	return s.role
}

// Start subscribes to the relay and, for masters, to the change triggers.
// An inactive session logs why and returns nil without subscribing.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	s.setDebug(s.debugDuringInit)
	defer s.setDebug(s.debugAfterInit)

	if !s.role.Active {
		s.logger.Debug("no multiplexing configuration available")
		return nil
	}

	s.envCh, s.errCh = s.relay.Subscribe(ctx, s.cfg.ChannelID)
	s.logger.Debug("registered as a client", "relay", s.cfg.RelayAddress)

	if s.role.Master && s.events != nil {
		for _, trigger := range presentation.Triggers() {
			s.subIDs = append(s.subIDs, s.events.Subscribe(trigger, s.notify))
		}
		s.logger.Debug("registered as a master", "strict", s.strict)
	}

	s.started = true
	return nil
}

// Run starts the session if needed and handles envelopes and change
// notifications until ctx is cancelled. An inactive session returns at once.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	if !s.role.Active {
		return nil
	}
	defer s.stop()

	envCh, errCh := s.envCh, s.errCh
	for {
		select {
		case <-ctx.Done():
			return nil

		case env, ok := <-envCh:
			if !ok {
				s.logger.Warn("relay subscription closed")
				envCh = nil
				continue
			}
			s.observed("envelope", s.HandleEnvelope(env))

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			s.logger.Warn("relay unavailable", "error", err)

		case trigger := <-s.local:
			s.drainLocal()
			s.observed("local", s.HandleLocalChange(ctx, trigger))
		}
	}
}

// HandleEnvelope applies env to the engine unless it belongs to another
// channel, the session is excluded, or env is our own broadcast echoed back.
// It reports whether the state was applied.
func (s *Session) HandleEnvelope(env *stream.Envelope) bool {
	if env == nil {
		return false
	}
	if env.ChannelID != s.cfg.ChannelID {
		s.logger.Debug("dropping envelope for another channel")
		return false
	}
	if s.excluded != nil && s.excluded() {
		s.logger.Debug("dropping envelope: session excluded")
		return false
	}
	if env.FromSender(s.id) {
		s.logger.Debug("dropping own broadcast")
		return false
	}

	// Arm before applying: the engine may notify synchronously.
	s.guard.Arm(env.State)
	s.engine.SetState(env.State)

	s.logger.Debug("rx", "from", senderField(env), "state", env.State)
	return true
}

// HandleLocalChange reacts to a presentation change notification. A change
// that matches the loop guard is the engine reporting state we just applied
// from the network: the guard is cleared and nothing is sent. Any other change
// is published. It reports whether a publish was attempted.
func (s *Session) HandleLocalChange(ctx context.Context, trigger string) bool {
	if !s.role.Master {
		return false
	}

	current := s.engine.State()
	if s.guard.Matches(current) {
		s.guard.Clear()
		s.logger.Debug("suppressing echo of applied state", "trigger", trigger, "state", current)
		return false
	}

	var sender *identity.SessionID
	if !s.strict {
		id := s.id
		sender = &id
	}
	env := stream.NewEnvelope(s.cfg.ChannelID, s.cfg.Secret, current, sender)

	s.logger.Debug("tx", "trigger", trigger, "state", current)
	if err := s.relay.Publish(ctx, stream.EventStateChanged, env); err != nil {
		s.logger.Warn("failed to publish state", "error", err)
	}
	return true
}

// notify is the bus handler for every change trigger.
func (s *Session) notify(e event.Event) {
	select {
	case s.local <- e.EventType():
	default:
	}
}

// drainLocal discards queued notifications; the handler reads the engine's
// current state, so one run covers them all.
func (s *Session) drainLocal() {
	for {
		select {
		case <-s.local:
		default:
			return
		}
	}
}

func (s *Session) observed(kind string, acted bool) {
	if s.observe != nil {
		s.observe(kind, acted)
	}
}

func (s *Session) stop() {
	if s.events != nil {
		for _, id := range s.subIDs {
			s.events.Unsubscribe(id)
		}
	}
	s.subIDs = nil
	s.started = false
}

func (s *Session) setDebug(on bool) {
	if on {
		s.logger.SetLevel(logging.LevelDebug)
	} else {
		s.logger.SetLevel(s.quietLevel)
	}
}

func shortChannel(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}

func senderField(env *stream.Envelope) any {
	if env.SenderID == nil {
		return "-"
	}
	return int(*env.SenderID)
}
