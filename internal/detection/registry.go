package detection

import (
	"fmt"
	"sort"

	"surveillance/internal/model"
)

// Registry holds the set of algorithms a service instance knows about. It is
// an explicit, constructor-built instance rather than a package-level global
// with decorator-style self-registration, so tests can stand up isolated
// registries with only the detectors they exercise.
type Registry struct {
	detectors map[string]Detector
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string]Detector)}
}

// Register adds a detector under its Name(). Registering the same name
// twice is an error; detector names are the contract callers address them
// by, so silently overwriting one would be a correctness bug.
func (r *Registry) Register(d Detector) error {
	name := d.Name()
	if name == "" {
		return fmt.Errorf("detection: cannot register a detector with an empty name")
	}
	if _, exists := r.detectors[name]; exists {
		return fmt.Errorf("detection: detector %q already registered", name)
	}
	r.detectors[name] = d
	r.order = append(r.order, name)
	return nil
}

// Get returns the named detector, or an error if it was never registered.
func (r *Registry) Get(name string) (Detector, error) {
	d, ok := r.detectors[name]
	if !ok {
		return nil, fmt.Errorf("detection: unknown algorithm %q", name)
	}
	return d, nil
}

// List returns the registered names, alphabetically sorted.
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// GetAll resolves a list of algorithm names to detectors. A nil names slice
// means "all registered detectors"; a non-nil, empty slice means "none" so
// callers can explicitly request zero detectors rather than falling back to
// the full set.
func (r *Registry) GetAll(names []string) ([]Detector, error) {
	if names == nil {
		names = r.order
	}
	out := make([]Detector, 0, len(names))
	for _, n := range names {
		d, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// NewDefaultRegistry wires up the two built-in detectors with their default
// configs, the shape most callers (worker, CLI) want.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewLayeringDetector(model.DefaultDetectionConfig()))
	_ = r.Register(NewWashTradingDetector(model.DefaultWashTradingConfig()))
	return r
}
