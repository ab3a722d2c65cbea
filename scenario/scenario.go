//go:build !solution

package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultTimeout is used when a scenario sets no timeout.
const DefaultTimeout = time.Second

// ErrInvalid is returned for scenarios that fail validation.
var ErrInvalid = errors.New("invalid scenario")

// Op is a single action an actor performs.
type Op string

const (
	OpAcquireWrite Op = "acquire_write"
	OpReleaseWrite Op = "release_write"
	OpAcquireRead  Op = "acquire_read"
	OpReleaseRead  Op = "release_read"
	OpStore        Op = "store"
	OpLoad         Op = "load"
	OpSleep        Op = "sleep"
)

func (o Op) valid() bool {
	switch o {
	case OpAcquireWrite, OpReleaseWrite, OpAcquireRead, OpReleaseRead, OpStore, OpLoad, OpSleep:
		return true
	}
	return false
}

// Duration is time.Duration written as "100ms" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Step is one action of an actor with its parameters.
type Step struct {
	Op Op `yaml:"op"`
	// Value is stored by OpStore.
	Value int64 `yaml:"value,omitempty"`
	// Expect is the value OpLoad must observe.
	Expect *int64 `yaml:"expect,omitempty"`
	// Within bounds the time from actor start to the OpLoad observation.
	Within Duration `yaml:"within,omitempty"`
	// For is the OpSleep duration.
	For Duration `yaml:"for,omitempty"`
}

// Actor is a sequence of steps executed on one goroutine.
type Actor struct {
	Name       string   `yaml:"name"`
	StartAfter Duration `yaml:"start_after,omitempty"`
	Steps      []Step   `yaml:"steps"`
	// Expect is the status the actor must end with, StatusDone by default.
	Expect Status `yaml:"expect,omitempty"`
}

// Check samples the resource at a moment from scenario start.
type Check struct {
	At       Duration `yaml:"at"`
	Resource int64    `yaml:"resource"`
}

// Scenario is a set of actors sharing one lock and one resource.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Initial     int64  `yaml:"initial"`
	// Timeout is the deadline after which actors still waiting for a gate
	// are interrupted.
	Timeout Duration `yaml:"timeout,omitempty"`
	// Tick is the settle delay between actor starts: actor #i starts
	// i*Tick after the scenario start, plus its own StartAfter.
	Tick   Duration `yaml:"tick,omitempty"`
	Actors []Actor  `yaml:"actors"`
	Checks []Check  `yaml:"checks,omitempty"`
	Final  *int64   `yaml:"final,omitempty"`
}

// Load reads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.UnmarshalStrict(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario and fills defaults.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if len(sc.Actors) == 0 {
		return fmt.Errorf("%w %q: no actors", ErrInvalid, sc.Name)
	}
	if sc.Timeout < 0 {
		return fmt.Errorf("%w %q: negative timeout", ErrInvalid, sc.Name)
	}
	if sc.Timeout == 0 {
		sc.Timeout = Duration(DefaultTimeout)
	}
	if sc.Tick < 0 {
		return fmt.Errorf("%w %q: negative tick", ErrInvalid, sc.Name)
	}

	names := make(map[string]struct{}, len(sc.Actors))
	for i := range sc.Actors {
		a := &sc.Actors[i]
		if a.Name == "" {
			return fmt.Errorf("%w %q: actor #%d has no name", ErrInvalid, sc.Name, i)
		}
		if _, ok := names[a.Name]; ok {
			return fmt.Errorf("%w %q: duplicate actor %q", ErrInvalid, sc.Name, a.Name)
		}
		names[a.Name] = struct{}{}

		switch a.Expect {
		case "":
			a.Expect = StatusDone
		case StatusDone, StatusInterrupted:
		default:
			return fmt.Errorf("%w %q: actor %q expects unknown status %q", ErrInvalid, sc.Name, a.Name, a.Expect)
		}

		for j, s := range a.Steps {
			if !s.Op.valid() {
				return fmt.Errorf("%w %q: actor %q step #%d: unknown op %q", ErrInvalid, sc.Name, a.Name, j, s.Op)
			}
			if s.Op == OpSleep && s.For <= 0 {
				return fmt.Errorf("%w %q: actor %q step #%d: sleep needs a positive duration", ErrInvalid, sc.Name, a.Name, j)
			}
		}
	}

	for i, c := range sc.Checks {
		if c.At <= 0 || c.At >= sc.Timeout {
			return fmt.Errorf("%w %q: check #%d must be inside (0, timeout)", ErrInvalid, sc.Name, i)
		}
	}
	return nil
}
