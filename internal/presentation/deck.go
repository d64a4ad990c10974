package presentation

import (
	"sync"

	"github.com/thruflo/slidesync/internal/event"
)

// Publisher receives change notifications. *event.Bus satisfies it.
type Publisher interface {
	Publish(event.Event)
}

// Deck is an in-memory Engine. It tracks a grid of slides and publishes a
// trigger event for every change, including changes made through SetState,
// the way a browser engine fires its listeners after a programmatic jump.
type Deck struct {
	mu     sync.Mutex
	state  State
	layout []int // layout[h] is the number of vertical slides in column h
	events Publisher
}

// NewDeck creates a Deck publishing to events. layout gives the number of
// vertical slides per column; an empty layout leaves navigation unbounded.
func NewDeck(events Publisher, layout ...int) *Deck {
	return &Deck{
		layout: append([]int(nil), layout...),
		events: events,
	}
}

// State returns the current state.
func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// SetState replaces the current state and fires the triggers for whatever changed.
func (d *Deck) SetState(s State) {
	d.mu.Lock()
	prev := d.state
	d.state = s.Clone()
	d.mu.Unlock()

	d.fire(prev, s)
}

// Next moves to the next column, resetting the vertical index.
func (d *Deck) Next() bool {
	return d.move(func(s *State) bool {
		if !d.hasColumn(s.IndexH + 1) {
			return false
		}
		s.IndexH++
		s.IndexV = 0
		return true
	})
}

// Prev moves to the previous column.
func (d *Deck) Prev() bool {
	return d.move(func(s *State) bool {
		if s.IndexH == 0 {
			return false
		}
		s.IndexH--
		s.IndexV = 0
		return true
	})
}

// Down moves to the next slide in the current column.
func (d *Deck) Down() bool {
	return d.move(func(s *State) bool {
		if !d.hasRow(s.IndexH, s.IndexV+1) {
			return false
		}
		s.IndexV++
		return true
	})
}

// Up moves to the previous slide in the current column.
func (d *Deck) Up() bool {
	return d.move(func(s *State) bool {
		if s.IndexV == 0 {
			return false
		}
		s.IndexV--
		return true
	})
}

// Goto jumps to slide (h, v).
func (d *Deck) Goto(h, v int) bool {
	return d.move(func(s *State) bool {
		if h < 0 || v < 0 || !d.hasRow(h, v) {
			return false
		}
		if s.IndexH == h && s.IndexV == v {
			return false
		}
		s.IndexH, s.IndexV = h, v
		return true
	})
}

// SetOverview shows or hides the overview.
func (d *Deck) SetOverview(on bool) bool {
	return d.move(func(s *State) bool {
		if s.Overview == on {
			return false
		}
		s.Overview = on
		return true
	})
}

// SetPaused pauses or resumes the presentation.
func (d *Deck) SetPaused(on bool) bool {
	return d.move(func(s *State) bool {
		if s.Paused == on {
			return false
		}
		s.Paused = on
		return true
	})
}

func (d *Deck) move(mutate func(*State) bool) bool {
	d.mu.Lock()
	prev := d.state.Clone()
	next := d.state.Clone()
	if !mutate(&next) {
		d.mu.Unlock()
		return false
	}
	d.state = next
	d.mu.Unlock()

	d.fire(prev, next)
	return true
}

// hasColumn and hasRow are called with d.mu held; layout is immutable.
func (d *Deck) hasColumn(h int) bool {
	return len(d.layout) == 0 || h < len(d.layout)
}

func (d *Deck) hasRow(h, v int) bool {
	if len(d.layout) == 0 {
		return true
	}
	return h < len(d.layout) && v < d.layout[h]
}

func (d *Deck) fire(prev, next State) {
	if d.events == nil {
		return
	}
	if prev.IndexH != next.IndexH || prev.IndexV != next.IndexV {
		d.events.Publish(event.New(TriggerSlideChanged))
	}
	switch {
	case fragment(next) > fragment(prev):
		d.events.Publish(event.New(TriggerFragmentShown))
	case fragment(next) < fragment(prev):
		d.events.Publish(event.New(TriggerFragmentHidden))
	}
	if prev.Overview != next.Overview {
		if next.Overview {
			d.events.Publish(event.New(TriggerOverviewShown))
		} else {
			d.events.Publish(event.New(TriggerOverviewHidden))
		}
	}
	if prev.Paused != next.Paused {
		if next.Paused {
			d.events.Publish(event.New(TriggerPaused))
		} else {
			d.events.Publish(event.New(TriggerResumed))
		}
	}
}

func fragment(s State) int {
	if s.IndexF == nil {
		return -1
	}
	return *s.IndexF
}
