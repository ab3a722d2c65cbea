//go:build !solution

package rwlock

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Acquisition outcomes.
const (
	OutcomeClaimed   = "claimed"
	OutcomeReentered = "reentered"
	OutcomeWaited    = "waited"
)

// Metrics collects gate statistics of one or more locks, labelled by lock
// name and gate. A nil *Metrics is valid and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	releases     *prometheus.CounterVec
	interrupts   *prometheus.CounterVec
	waitSeconds  *prometheus.HistogramVec
	claimed      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them in reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rwgate",
			Subsystem: "lock",
			Name:      "acquisitions_total",
			Help:      "Successful gate acquisitions by outcome.",
		}, []string{"lock", "gate", "outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rwgate",
			Subsystem: "lock",
			Name:      "releases_total",
			Help:      "Gate releases, including releases of an unheld gate.",
		}, []string{"lock", "gate"}),
		interrupts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rwgate",
			Subsystem: "lock",
			Name:      "interrupts_total",
			Help:      "Acquisitions aborted because the context was done while waiting.",
		}, []string{"lock", "gate"}),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rwgate",
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a gate to be released.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"lock", "gate"}),
		claimed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rwgate",
			Subsystem: "lock",
			Name:      "claimed",
			Help:      "1 while the gate is held, 0 otherwise.",
		}, []string{"lock", "gate"}),
	}

	for _, c := range []prometheus.Collector{m.acquisitions, m.releases, m.interrupts, m.waitSeconds, m.claimed} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register rwlock metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) acquired(lock string, mode Mode, outcome string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(lock, mode.String(), outcome).Inc()
}

func (m *Metrics) waited(lock string, mode Mode, d time.Duration) {
	if m == nil {
		return
	}
	m.waitSeconds.WithLabelValues(lock, mode.String()).Observe(d.Seconds())
}

func (m *Metrics) released(lock string, mode Mode) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(lock, mode.String()).Inc()
}

func (m *Metrics) interrupted(lock string, mode Mode) {
	if m == nil {
		return
	}
	m.interrupts.WithLabelValues(lock, mode.String()).Inc()
}

// held records the gate state read right after a claim or release. A
// concurrent claim may be overwritten by a late release, so the value is a
// sample, not a counter.
func (m *Metrics) held(lock string, mode Mode, claimed bool) {
	if m == nil {
		return
	}
	v := 0.0
	if claimed {
		v = 1
	}
	m.claimed.WithLabelValues(lock, mode.String()).Set(v)
}
