package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors for registry operations.
var (
	ErrInvalidName        = errors.New("service name cannot be empty")
	ErrServiceExists      = errors.New("service already registered")
	ErrServiceNotFound    = errors.New("service not found")
	ErrCircularDependency = errors.New("circular service dependency")
)

// Factory builds a service. It may Require other services from r.
type Factory func(ctx context.Context, r *Registry) (any, error)

// Registry maps service names to instances.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]any
	order     []string
	resolving []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]any),
	}
}

// Register adds a lazily built service.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return ErrInvalidName
	}
	if f == nil {
		return fmt.Errorf("factory for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exists(name) {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// Provide adds an already built service.
func (r *Registry) Provide(name string, svc any) error {
	if name == "" {
		return ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exists(name) {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	r.instances[name] = svc
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) exists(name string) bool {
	if _, ok := r.factories[name]; ok {
		return true
	}
	_, ok := r.instances[name]
	return ok
}

// Resolve builds every registered service in registration order.
// It must not be called concurrently with itself.
func (r *Registry) Resolve(ctx context.Context) error {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Require(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Require returns the named service, building it first if needed.
func (r *Registry) Require(ctx context.Context, name string) (any, error) {
	r.mu.Lock()
	if svc, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return svc, nil
	}
	f, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	for i, pending := range r.resolving {
		if pending == name {
			chain := append(append([]string(nil), r.resolving[i:]...), name)
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(chain, " -> "))
		}
	}
	r.resolving = append(r.resolving, name)
	r.mu.Unlock()

	svc, err := f(ctx, r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolving = r.resolving[:len(r.resolving)-1]
	if err != nil {
		return nil, fmt.Errorf("failed to create service %s: %w", name, err)
	}
	r.instances[name] = svc
	return svc, nil
}

// Get returns a built service, or nil when none is registered under name
// or it has not been built yet.
func (r *Registry) Get(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[name]
}

// Names returns all registered service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
