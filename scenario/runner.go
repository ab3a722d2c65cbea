//go:build !solution

package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.com/slon/rwgate/rwlock"
)

// ErrActorPanicked is returned by Run when an actor panics with anything but
// *rwlock.InterruptedError. The remaining actors are interrupted.
var ErrActorPanicked = errors.New("actor panicked")

// Runner executes scenarios. The zero value is ready to use.
type Runner struct {
	Logger *zap.Logger
	// LockOptions are applied to the lock of every run, after the name and
	// logger set by the runner.
	LockOptions []rwlock.Option
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Run executes sc against a fresh lock and resource. Every actor runs on its
// own goroutine. Actors that are still waiting for a gate when sc.Timeout
// expires or ctx is done are interrupted, and checks not sampled by then are
// marked missed. Run returns an error only if the scenario could not be run
// to the end; failed expectations are listed in the report.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	log := r.logger().With(zap.String("scenario", sc.Name), zap.Stringer("run", id))

	opts := append([]rwlock.Option{rwlock.WithName(sc.Name), rwlock.WithLogger(log)}, r.LockOptions...)
	lock := rwlock.New(opts...)
	res := NewResource(sc.Initial)

	report := &Report{
		ID:       id.String(),
		Scenario: sc.Name,
		Actors:   make([]ActorReport, len(sc.Actors)),
		Samples:  make([]Sample, len(sc.Checks)),
	}

	ctx, cancel := context.WithTimeout(ctx, sc.Timeout.Std())
	defer cancel()

	log.Info("scenario started", zap.Int("actors", len(sc.Actors)), zap.Duration("timeout", sc.Timeout.Std()))
	start := time.Now()

	// Каждый актор пишет только в свою ячейку отчёта
	g, gctx := errgroup.WithContext(ctx)
	for i := range sc.Actors {
		a, ar := &sc.Actors[i], &report.Actors[i]
		delay := time.Duration(i)*sc.Tick.Std() + a.StartAfter.Std()
		g.Go(func() error {
			return r.runActor(gctx, log, lock, res, a, ar, delay)
		})
	}
	for i := range sc.Checks {
		c, s := sc.Checks[i], &report.Samples[i]
		g.Go(func() error {
			s.At = c.At.Std()
			if !sleep(gctx, c.At.Std()-time.Since(start)) {
				s.Missed = true
				return nil
			}
			s.Value = res.Load()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("scenario aborted", zap.Error(err))
		return nil, err
	}

	report.Final = res.Load()
	report.Elapsed = time.Since(start)
	report.evaluate(sc)

	log.Info("scenario finished",
		zap.Bool("ok", report.OK()),
		zap.Int64("final", report.Final),
		zap.Duration("elapsed", report.Elapsed),
		zap.Strings("failures", report.Failures),
	)
	return report, nil
}

func (r *Runner) runActor(
	ctx context.Context,
	log *zap.Logger,
	lock *rwlock.RWLock,
	res *Resource,
	a *Actor,
	ar *ActorReport,
	delay time.Duration,
) (err error) {
	ar.Name = a.Name
	log = log.With(zap.String("actor", a.Name))

	if !sleep(ctx, delay) {
		ar.Status = StatusInterrupted
		ar.Error = ctx.Err().Error()
		return nil
	}
	start := time.Now()

	defer func() {
		ar.Elapsed = time.Since(start)
		p := recover()
		if p == nil {
			return
		}
		// Прерванный захват завершает работу актора, любая другая паника обрывает прогон
		perr, ok := p.(error)
		var ie *rwlock.InterruptedError
		if !ok || !errors.As(perr, &ie) {
			err = fmt.Errorf("%w: actor %s: %v", ErrActorPanicked, a.Name, p)
			return
		}
		log.Info("actor interrupted", zap.Error(perr))
		ar.Status = StatusInterrupted
		ar.Error = perr.Error()
	}()

	for i, s := range a.Steps {
		switch s.Op {
		case OpAcquireWrite:
			lock.AcquireWriteContext(ctx)
		case OpReleaseWrite:
			lock.ReleaseWrite()
		case OpAcquireRead:
			lock.AcquireReadContext(ctx)
		case OpReleaseRead:
			lock.ReleaseRead()
		case OpStore:
			res.Store(s.Value)
		case OpLoad:
			ar.Loads = append(ar.Loads, Observation{Step: i, Value: res.Load(), At: time.Since(start)})
		case OpSleep:
			if !sleep(ctx, s.For.Std()) {
				log.Info("actor interrupted while sleeping")
				ar.Status = StatusInterrupted
				ar.Error = ctx.Err().Error()
				return nil
			}
		}
		log.Debug("step done", zap.Int("step", i), zap.String("op", string(s.Op)))
	}
	ar.Status = StatusDone
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
