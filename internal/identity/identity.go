// Package identity produces the per-process session identity used to tag
// outgoing envelopes and to recognise our own broadcasts when the relay
// echoes them back.
//
// Identities are drawn uniformly from [0, range). Two concurrently running
// instances may collide; the probability scales with the range.
package identity

import "math/rand/v2"

// DefaultRange is the identity range used when none is configured.
const DefaultRange = 1024

// SessionID identifies one running instance for its whole lifetime.
type SessionID int

// Source supplies uniformly distributed integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource returns a Source backed by the runtime's global generator.
func DefaultSource() Source {
	return globalSource{}
}

// NewSeededSource returns a deterministic Source, for tests and replays.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate draws a SessionID in [0, rangeN) from src.
// A non-positive rangeN falls back to DefaultRange; a nil src uses DefaultSource.
func Generate(rangeN int, src Source) SessionID {
	if rangeN <= 0 {
		rangeN = DefaultRange
	}
	if src == nil {
		src = DefaultSource()
	}
	return SessionID(src.IntN(rangeN))
}
