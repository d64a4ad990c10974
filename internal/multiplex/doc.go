// Package multiplex keeps presentations on one channel in step through a
// relay without feedback loops.
//
// Every instance with a channel id and relay address is a client: it applies
// state envelopes relayed on its channel. An instance that also holds the
// channel secret, and is not a receiver surface, is a master: it broadcasts
// its own state changes.
//
// Two mechanisms stop echoes. A session identity tags each outgoing envelope
// so the sender can drop its own broadcast when the relay echoes it back. A
// loop guard remembers the last state applied from the network, so that the
// change notification the engine fires for that apply is recognised and not
// re-broadcast.
//
// # Concurrency
//
// Session.Run owns the loop guard. It receives relayed envelopes and local
// change notifications and handles them one at a time on its own goroutine.
// Change notifications published on the event bus only enqueue work for Run.
// HandleEnvelope and HandleLocalChange may be called directly by a host that
// already serialises calls on a single goroutine.
package multiplex
