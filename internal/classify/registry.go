package classify

import (
	"fmt"
	"sort"

	"PulseWatch/internal/ports"
)

// Registry keeps a mapping from provider names to classifier implementations.
type Registry struct {
	classifiers map[string]ports.Classifier
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{classifiers: map[string]ports.Classifier{}}
}

// Register adds or replaces a classifier implementation.
func (r *Registry) Register(classifier ports.Classifier) {
	if r.classifiers == nil {
		r.classifiers = map[string]ports.Classifier{}
	}
	r.classifiers[classifier.Name()] = classifier
}

// Resolve returns a classifier by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Classifier, error) {
	if classifier, ok := r.classifiers[name]; ok {
		return classifier, nil
	}
	return nil, fmt.Errorf("classifier %s is not registered (available: %v)", name, r.Names())
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
