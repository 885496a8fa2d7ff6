// Package rack builds ordered effect chains from declarative entries. Effect
// types are resolved through a Registry of factories keyed by type tag.
package rack

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/madcamp4-daw-project/madcamp4-daw-project-sub001/graph"
)

// Factory builds one effect node on ctx.
type Factory func(ctx *graph.Context, opts Options) (graph.Node, error)

// Registry maps effect type tags to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var (
	errEmptyType       = errors.New("rack: empty effect type")
	errNilFactory      = errors.New("rack: nil factory")
	errDuplicateEffect = errors.New("rack: duplicate effect type")
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given effect type.
func (r *Registry) Register(effectType string, factory Factory) error {
	if effectType == "" {
		return errEmptyType
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", errNilFactory, effectType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[effectType]; exists {
		return fmt.Errorf("%w: %s", errDuplicateEffect, effectType)
	}
	r.factories[effectType] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(effectType string, factory Factory) {
	if err := r.Register(effectType, factory); err != nil {
		panic(err.Error())
	}
}

// Lookup returns the factory for the given effect type, or nil.
func (r *Registry) Lookup(effectType string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[effectType]
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
