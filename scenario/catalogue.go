//go:build !solution

package scenario

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
)

//go:embed catalogue/*.yaml
var catalogueFS embed.FS

var ErrNotFound = errors.New("scenario not found")

var (
	catalogueOnce sync.Once
	catalogue     []*Scenario
	catalogueErr  error
)

// Catalogue returns the built-in scenarios sorted by name.
// Callers must not modify them.
func Catalogue() ([]*Scenario, error) {
	catalogueOnce.Do(func() {
		catalogue, catalogueErr = loadCatalogue()
	})
	return catalogue, catalogueErr
}

func loadCatalogue() ([]*Scenario, error) {
	entries, err := catalogueFS.ReadDir("catalogue")
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(entries))
	for _, e := range entries {
		data, err := catalogueFS.ReadFile(path.Join("catalogue", e.Name()))
		if err != nil {
			return nil, err
		}
		sc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		scenarios = append(scenarios, sc)
	}
	sort.Slice(scenarios, func(i, j int) bool {
		return scenarios[i].Name < scenarios[j].Name
	})
	return scenarios, nil
}

// Lookup returns the built-in scenario with the given name.
func Lookup(name string) (*Scenario, error) {
	scenarios, err := Catalogue()
	if err != nil {
		return nil, err
	}
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}
