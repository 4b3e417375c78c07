package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new provider instance from configuration.
type Factory func(name string, config map[string]string) (Provider, error)

// Registry manages provider type factories and active provider instances.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory  // type name -> factory function
	instances map[string]Provider // instance name -> provider
	order     []string            // instance names in creation order
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
		order:     make([]string, 0),
	}
}

// RegisterFactory registers a provider factory for a given type.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Types returns the registered provider type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// CreateInstance creates and registers a provider instance.
func (r *Registry) CreateInstance(name, typeName string, config map[string]string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		return nil, fmt.Errorf("provider instance %s already exists", name)
	}

	factory, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", typeName)
	}

	provider, err := factory(name, config)
	if err != nil {
		return nil, fmt.Errorf("creating provider %s: %w", name, err)
	}

	r.instances[name] = provider
	r.order = append(r.order, name)
	return provider, nil
}

// Get returns a provider instance by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.instances[name]
	return p, ok
}

// All returns all provider instances in creation order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		if p, ok := r.instances[name]; ok {
			providers = append(providers, p)
		}
	}
	return providers
}

// PingAll pings every instance and joins the failures.
func (r *Registry) PingAll(ctx context.Context) error {
	var errs []error
	for _, p := range r.All() {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, WrapError(p.Name(), "ping", err))
		}
	}
	return errors.Join(errs...)
}
