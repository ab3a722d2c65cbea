//go:build !solution

package rwlock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// WriteLock is the write half of a RWLock.
type WriteLock interface {
	AcquireWrite()
	ReleaseWrite()
}

// ReadLock is the read half of a RWLock.
type ReadLock interface {
	AcquireRead()
	ReleaseRead()
}

// Lock has both gates.
type Lock interface {
	WriteLock
	ReadLock
}

// A RWLock is a pair of independent gates, write and read, over one resource.
//
// The write gate can be held by a single goroutine. The goroutine that holds
// it may acquire it again without blocking; no depth is counted, so one
// ReleaseWrite clears the gate no matter how many nested AcquireWrite calls
// preceded it.
//
// The read gate can be held by a single goroutine and is not reentrant: a
// goroutine that calls AcquireRead twice without ReleaseRead in between
// blocks on itself until some goroutine releases the gate.
//
// The gates do not exclude each other. A held write gate does not block
// readers and a held read gate does not block writers. This is not a
// reader/writer lock and must not be turned into one: callers rely on
// readers observing the resource while a writer holds its gate.
//
// Release never checks ownership and may be called by any goroutine, also
// when the gate is not held.
//
// A RWLock must be created with New.
type RWLock struct {
	name    string
	log     *zap.Logger
	metrics *Metrics
	clock   clockwork.Clock
	// poll == 0 означает ожидание через канал, иначе опрос флага с этим периодом
	poll time.Duration

	write *gate
	read  *gate
}

var _ Lock = (*RWLock)(nil)

// New creates an unlocked *RWLock.
func New(opts ...Option) *RWLock {
	l := &RWLock{
		name:  "rwlock",
		log:   zap.NewNop(),
		clock: clockwork.NewRealClock(),
		write: newGate(Write, true),
		read:  newGate(Read, false),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("lock", l.name))
	return l
}

// Name returns the name set with WithName.
func (l *RWLock) Name() string {
	return l.name
}

// AcquireWrite locks l for writing.
// If the write gate is held by another goroutine, AcquireWrite blocks until
// it is released. If it is held by the calling goroutine, AcquireWrite
// returns immediately.
func (l *RWLock) AcquireWrite() {
	l.acquire(context.Background(), l.write)
}

// AcquireWriteContext is AcquireWrite whose wait ends when ctx is done.
// In that case it panics with *InterruptedError.
func (l *RWLock) AcquireWriteContext(ctx context.Context) {
	l.acquire(ctx, l.write)
}

// ReleaseWrite unlocks the write gate.
func (l *RWLock) ReleaseWrite() {
	l.release(l.write)
}

// AcquireRead locks l for reading.
// If the read gate is held by any goroutine, including the calling one,
// AcquireRead blocks until it is released.
func (l *RWLock) AcquireRead() {
	l.acquire(context.Background(), l.read)
}

// AcquireReadContext is AcquireRead whose wait ends when ctx is done.
// In that case it panics with *InterruptedError.
func (l *RWLock) AcquireReadContext(ctx context.Context) {
	l.acquire(ctx, l.read)
}

// ReleaseRead unlocks the read gate.
func (l *RWLock) ReleaseRead() {
	l.release(l.read)
}

// IsWriteLocked reports whether the write gate is currently held.
func (l *RWLock) IsWriteLocked() bool {
	return l.write.isClaimed()
}

// IsReadLocked reports whether the read gate is currently held.
func (l *RWLock) IsReadLocked() bool {
	return l.read.isClaimed()
}

// WriteLocker returns a sync.Locker over the write gate.
func (l *RWLock) WriteLocker() sync.Locker {
	return (*writeLocker)(l)
}

// ReadLocker returns a sync.Locker over the read gate.
func (l *RWLock) ReadLocker() sync.Locker {
	return (*readLocker)(l)
}

type writeLocker RWLock

func (w *writeLocker) Lock()   { (*RWLock)(w).AcquireWrite() }
func (w *writeLocker) Unlock() { (*RWLock)(w).ReleaseWrite() }

type readLocker RWLock

func (r *readLocker) Lock()   { (*RWLock)(r).AcquireRead() }
func (r *readLocker) Unlock() { (*RWLock)(r).ReleaseRead() }

func (l *RWLock) acquire(ctx context.Context, g *gate) {
	id := goroutineID()
	log := l.log.With(zap.Stringer("gate", g.mode), zap.Int64("goroutine", id))

	if g.tryClaim(id) {
		log.Debug("gate claimed")
		l.metrics.acquired(l.name, g.mode, OutcomeClaimed)
		l.metrics.held(l.name, g.mode, true)
		return
	}
	if g.ownedBy(id) {
		log.Debug("in owner goroutine, continue to work")
		l.metrics.acquired(l.name, g.mode, OutcomeReentered)
		return
	}

	log.Debug("waiting for gate to be released")
	start := l.clock.Now()
	for {
		if err := l.wait(ctx, g); err != nil {
			log.Debug("interrupted while waiting", zap.Error(err))
			l.metrics.interrupted(l.name, g.mode)
			panic(&InterruptedError{Lock: l.name, Mode: g.mode, Err: err})
		}
		// После освобождения гонку может выиграть кто-то другой, тогда ждём дальше
		if g.tryClaim(id) {
			log.Debug("gate claimed after wait")
			l.metrics.acquired(l.name, g.mode, OutcomeWaited)
			l.metrics.waited(l.name, g.mode, l.clock.Since(start))
			l.metrics.held(l.name, g.mode, true)
			return
		}
	}
}

// wait blocks until g is observed unclaimed or ctx is done.
func (l *RWLock) wait(ctx context.Context, g *gate) error {
	if l.poll > 0 {
		return l.pollWait(ctx, g)
	}

	// Канал берём до проверки флага: release после этой точки его закроет
	released := g.released()
	if !g.isClaimed() {
		return nil
	}
	select {
	case <-released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *RWLock) pollWait(ctx context.Context, g *gate) error {
	for g.isClaimed() {
		select {
		case <-l.clock.After(l.poll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (l *RWLock) release(g *gate) {
	g.release()
	l.log.Debug("gate released", zap.Stringer("gate", g.mode))
	l.metrics.released(l.name, g.mode)
	l.metrics.held(l.name, g.mode, g.isClaimed())
}
