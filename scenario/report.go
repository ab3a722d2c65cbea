//go:build !solution

package scenario

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Status is how an actor ended.
type Status string

const (
	StatusDone        Status = "done"
	StatusInterrupted Status = "interrupted"
)

// Observation is a value read by an OpLoad step.
type Observation struct {
	Step  int   `json:"step"`
	Value int64 `json:"value"`
	// At is measured from the actor start.
	At time.Duration `json:"at"`
}

// Sample is the resource value taken for a Check.
type Sample struct {
	At    time.Duration `json:"at"`
	Value int64         `json:"value"`
	// Missed is set when the run ended before the sample was taken.
	Missed bool `json:"missed,omitempty"`
}

// ActorReport is what one actor did.
type ActorReport struct {
	Name   string        `json:"name"`
	Status Status        `json:"status"`
	Loads  []Observation `json:"loads,omitempty"`
	Error  string        `json:"error,omitempty"`
	// Elapsed is measured from the actor start.
	Elapsed time.Duration `json:"elapsed"`
}

// Report is the outcome of one scenario run.
type Report struct {
	ID       string        `json:"id"`
	Scenario string        `json:"scenario"`
	Actors   []ActorReport `json:"actors"`
	Samples  []Sample      `json:"samples,omitempty"`
	Final    int64         `json:"final"`
	Failures []string      `json:"failures,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// OK reports whether every expectation of the scenario held.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

func (r *Report) failf(format string, args ...interface{}) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// evaluate compares what happened with what sc expects.
func (r *Report) evaluate(sc *Scenario) {
	for i, a := range sc.Actors {
		ar := r.Actors[i]
		if ar.Status != a.Expect {
			r.failf("actor %s: status %s, want %s", a.Name, ar.Status, a.Expect)
		}

		loads := make(map[int]Observation, len(ar.Loads))
		for _, o := range ar.Loads {
			loads[o.Step] = o
		}
		for j, s := range a.Steps {
			if s.Op != OpLoad {
				continue
			}
			o, ok := loads[j]
			if !ok {
				// Актор прерван раньше, чем дошёл до чтения: это видно по статусу
				continue
			}
			if s.Expect != nil && o.Value != *s.Expect {
				r.failf("actor %s step #%d: loaded %d, want %d", a.Name, j, o.Value, *s.Expect)
			}
			if s.Within > 0 && o.At > s.Within.Std() {
				r.failf("actor %s step #%d: loaded after %v, want within %v", a.Name, j, o.At, s.Within.Std())
			}
		}
	}

	for i, c := range sc.Checks {
		if r.Samples[i].Missed {
			r.failf("check at %v: not sampled, run ended first", c.At.Std())
			continue
		}
		if got := r.Samples[i].Value; got != c.Resource {
			r.failf("check at %v: resource %d, want %d", c.At.Std(), got, c.Resource)
		}
	}

	if sc.Final != nil && r.Final != *sc.Final {
		r.failf("final resource %d, want %d", r.Final, *sc.Final)
	}
}

// Print writes a human readable report.
func (r *Report) Print(w io.Writer) error {
	var b strings.Builder
	result := "OK"
	if !r.OK() {
		result = "FAIL"
	}
	fmt.Fprintf(&b, "%s %s (run %s, %v)\n", result, r.Scenario, r.ID, r.Elapsed.Round(time.Millisecond))
	for _, a := range r.Actors {
		fmt.Fprintf(&b, "  actor %-8s %-12s %v", a.Name, a.Status, a.Elapsed.Round(time.Millisecond))
		for _, o := range a.Loads {
			fmt.Fprintf(&b, " load#%d=%d@%v", o.Step, o.Value, o.At.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}
	for _, s := range r.Samples {
		if s.Missed {
			fmt.Fprintf(&b, "  sample at %v: missed\n", s.At)
			continue
		}
		fmt.Fprintf(&b, "  sample at %v: %d\n", s.At, s.Value)
	}
	fmt.Fprintf(&b, "  final: %d\n", r.Final)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  failure: %s\n", f)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
