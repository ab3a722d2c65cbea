//go:build !solution

package rwlock

import (
	"sync"
	"sync/atomic"
)

// Mode names one of the two gates of a RWLock.
type Mode int

const (
	Write Mode = iota
	Read
)

func (m Mode) String() string {
	switch m {
	case Write:
		return "write"
	case Read:
		return "read"
	default:
		return "unknown"
	}
}

// gate is a single claimed/unclaimed flag with its own owner.
type gate struct {
	mode Mode
	// reentrant gates let the owner goroutine pass without claiming.
	reentrant bool

	claimed atomic.Bool
	owner   atomic.Int64

	mu sync.Mutex
	// wake закрывается при каждом release, ожидающие просыпаются все сразу
	wake chan struct{}
}

func newGate(mode Mode, reentrant bool) *gate {
	return &gate{
		mode:      mode,
		reentrant: reentrant,
		wake:      make(chan struct{}),
	}
}

// tryClaim performs the false->true transition. Exactly one of the racing
// goroutines gets true.
func (g *gate) tryClaim(id int64) bool {
	if !g.claimed.CompareAndSwap(false, true) {
		return false
	}
	g.owner.Store(id)
	return true
}

// ownedBy reports whether id may re-enter the gate without claiming it.
// Read gate never answers yes: its owner is recorded but not consulted.
func (g *gate) ownedBy(id int64) bool {
	return g.reentrant && g.owner.Load() == id
}

func (g *gate) isClaimed() bool {
	return g.claimed.Load()
}

// released returns the channel that is closed on the next release.
func (g *gate) released() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wake
}

// release clears the gate no matter who calls it. Owner goes first so that a
// former owner can't see itself as the owner of a gate someone else claims.
func (g *gate) release() {
	g.owner.Store(0)
	g.claimed.Store(false)

	g.mu.Lock()
	close(g.wake)
	g.wake = make(chan struct{})
	g.mu.Unlock()
}
