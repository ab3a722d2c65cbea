package rwlock

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	l := New(WithName("res"), WithMetrics(m))

	requireDone(t, async(func() {
		l.AcquireWrite()
		l.AcquireWrite()
		l.ReleaseWrite()
	}))

	stop := holder(l.AcquireRead)
	reader := async(l.AcquireRead)
	requireBlocked(t, reader)
	l.ReleaseRead()
	requireDone(t, reader)
	stop()
	l.ReleaseRead()

	require.Equal(t, 1.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("res", "write", OutcomeClaimed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("res", "write", OutcomeReentered)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("res", "read", OutcomeClaimed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.acquisitions.WithLabelValues("res", "read", OutcomeWaited)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.releases.WithLabelValues("res", "write")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.releases.WithLabelValues("res", "read")))
	require.Equal(t, 1, testutil.CollectAndCount(m.waitSeconds))
}

func TestMetricsInterrupts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	l := New(WithName("res"), WithMetrics(m))
	l.AcquireWrite()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Из той же горутины захват был бы реентерабельным, поэтому ждём из другой
	var recovered any
	requireDone(t, async(func() {
		defer func() { recovered = recover() }()
		l.AcquireWriteContext(ctx)
	}))
	require.IsType(t, &InterruptedError{}, recovered)
	require.Equal(t, 1.0, testutil.ToFloat64(m.interrupts.WithLabelValues("res", "write")))
}

func TestMetricsClaimedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	l := New(WithName("res"), WithMetrics(m))
	claimed := func(gate string) float64 {
		return testutil.ToFloat64(m.claimed.WithLabelValues("res", gate))
	}

	l.AcquireWrite()
	require.Equal(t, 1.0, claimed("write"))
	require.Equal(t, 0.0, claimed("read"))

	l.AcquireRead()
	require.Equal(t, 1.0, claimed("read"))

	l.ReleaseWrite()
	require.Equal(t, 0.0, claimed("write"))
	require.Equal(t, 1.0, claimed("read"))

	stop := holder(l.AcquireWrite)
	require.Equal(t, 1.0, claimed("write"))
	stop()

	l.ReleaseRead()
	l.ReleaseRead()
	require.Equal(t, 0.0, claimed("read"))
}

func TestMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	l := New(WithMetrics(nil))
	require.NotPanics(t, func() {
		l.AcquireWrite()
		l.ReleaseWrite()
	})
}

func TestLogsTransitions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(WithName("logged"), WithLogger(zap.New(core)))

	requireDone(t, async(func() {
		l.AcquireWrite()
		l.AcquireWrite()
		l.ReleaseWrite()
	}))

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
		require.Equal(t, "logged", e.ContextMap()["lock"])
		require.Equal(t, "write", e.ContextMap()["gate"])
	}
	require.Equal(t, []string{
		"gate claimed",
		"in owner goroutine, continue to work",
		"gate released",
	}, messages)
}
