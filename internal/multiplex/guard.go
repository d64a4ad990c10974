package multiplex

import "github.com/thruflo/slidesync/internal/presentation"

// LoopGuard holds the last state applied from the network, or nothing.
// It is armed when an inbound envelope is applied and cleared by the next
// local change notification that matches it.
type LoopGuard struct {
	state presentation.State
	armed bool
}

// Arm records s as the most recently applied external state.
func (g *LoopGuard) Arm(s presentation.State) {
	g.state = s.Clone()
	g.armed = true
}

// Clear empties the guard.
func (g *LoopGuard) Clear() {
	g.state = presentation.State{}
	g.armed = false
}

// Armed reports whether the guard holds a state.
func (g *LoopGuard) Armed() bool {
	return g.armed
}

// State returns the guarded state and whether the guard is armed.
func (g *LoopGuard) State() (presentation.State, bool) {
	return g.state.Clone(), g.armed
}

// Matches reports whether the guard is armed with a state whose projection
// equals that of s. An empty guard matches nothing.
func (g *LoopGuard) Matches(s presentation.State) bool {
	return g.armed && g.state.SameAs(s)
}
