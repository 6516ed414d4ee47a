package sensor

import "sync/atomic"

// Gate is the hand-gesture controlled switch for content analysis.
// It is safe for concurrent use.
type Gate struct {
	enabled atomic.Bool
}

// NewGate returns a gate in the given initial position.
func NewGate(enabled bool) *Gate {
	g := &Gate{}
	g.enabled.Store(enabled)
	return g
}

// Enable opens the gate.
func (g *Gate) Enable() {
	g.enabled.Store(true)
}

// Disable closes the gate.
func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// Enabled reports the gate position.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}
