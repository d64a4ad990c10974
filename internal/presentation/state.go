// Package presentation defines the contract between the synchronization core
// and the presentation engine that owns navigation state.
package presentation

import "fmt"

// State is a snapshot of presentation navigation state. The JSON field names
// match what browser-side presentation engines emit, so states round-trip
// through the relay unchanged.
type State struct {
	IndexH   int  `json:"indexh"`
	IndexV   int  `json:"indexv"`
	IndexF   *int `json:"indexf,omitempty"`
	Paused   bool `json:"paused"`
	Overview bool `json:"overview"`
}

// Projection is the subset of State on which equality is defined. Engines do
// not guarantee that SetState followed by State returns an identical
// snapshot, but they do agree on these fields.
type Projection struct {
	IndexH   int
	IndexV   int
	Overview bool
	Paused   bool
}

// Project returns the comparable projection of s.
func (s State) Project() Projection {
	return Projection{
		IndexH:   s.IndexH,
		IndexV:   s.IndexV,
		Overview: s.Overview,
		Paused:   s.Paused,
	}
}

// SameAs reports whether s and other agree on every projected field.
func (s State) SameAs(other State) bool {
	return s.Project() == other.Project()
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := s
	if s.IndexF != nil {
		f := *s.IndexF
		c.IndexF = &f
	}
	return c
}

func (s State) String() string {
	f := "-"
	if s.IndexF != nil {
		f = fmt.Sprint(*s.IndexF)
	}
	return fmt.Sprintf("h=%d v=%d f=%s overview=%t paused=%t", s.IndexH, s.IndexV, f, s.Overview, s.Paused)
}

// Engine is the capability the synchronization core needs from a
// presentation engine. Change notifications are delivered separately, as
// events named by the Trigger constants.
type Engine interface {
	State() State
	SetState(State)
}

// Trigger names for presentation change notifications. Every trigger means
// "local state may have changed" to the synchronization core.
const (
	TriggerSlideChanged   = "slide.changed"
	TriggerFragmentShown  = "fragment.shown"
	TriggerFragmentHidden = "fragment.hidden"
	TriggerOverviewShown  = "overview.shown"
	TriggerOverviewHidden = "overview.hidden"
	TriggerPaused         = "presentation.paused"
	TriggerResumed        = "presentation.resumed"
)

// Triggers returns every trigger that signals a state change.
func Triggers() []string {
	return []string{
		TriggerSlideChanged,
		TriggerFragmentShown,
		TriggerFragmentHidden,
		TriggerOverviewShown,
		TriggerOverviewHidden,
		TriggerPaused,
		TriggerResumed,
	}
}
