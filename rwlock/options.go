//go:build !solution

package rwlock

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultPollInterval is the tick used by the polling wait when
// WithPollInterval is given a non-positive value.
const DefaultPollInterval = 100 * time.Millisecond

// An Option configures a RWLock created by New.
type Option func(*RWLock)

// WithName sets the lock name used in logs and metric labels.
func WithName(name string) Option {
	return func(l *RWLock) {
		l.name = name
	}
}

// WithLogger sets the logger for gate transitions. A nil log is ignored.
func WithLogger(log *zap.Logger) Option {
	return func(l *RWLock) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics makes the lock record its transitions in m.
func WithMetrics(m *Metrics) Option {
	return func(l *RWLock) {
		l.metrics = m
	}
}

// WithPollInterval switches waiting goroutines from being woken by the
// releaser to re-checking the gate every d.
func WithPollInterval(d time.Duration) Option {
	return func(l *RWLock) {
		if d <= 0 {
			d = DefaultPollInterval
		}
		l.poll = d
	}
}

// WithClock sets the clock used for polling and wait time measurement.
func WithClock(c clockwork.Clock) Option {
	return func(l *RWLock) {
		if c != nil {
			l.clock = c
		}
	}
}
