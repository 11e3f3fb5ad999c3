package engine

import "sync/atomic"

// guard is the reentrancy state machine: idle or busy, toggled at the unit's
// entry and exit. enter is a non-blocking acquire; a reentrant invocation
// observes busy and fails immediately instead of waiting.
type guard struct {
	busy atomic.Bool
}

func (g *guard) enter() bool { return g.busy.CompareAndSwap(false, true) }
func (g *guard) exit()       { g.busy.Store(false) }
