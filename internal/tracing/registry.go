package tracing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	// ErrDoubleRegistration is returned when a factory name is registered twice.
	ErrDoubleRegistration = errors.New("Double registration") //nolint:staticcheck // message is matched by operators

	// ErrUnknownFactory is returned when no factory is registered under a name.
	ErrUnknownFactory = errors.New("unknown tracer factory")
)

// Factory creates tracers from a decoded configuration.
type Factory interface {
	// Name is the key the factory is registered under, e.g. "tlsutil.otlp".
	Name() string

	// ConfigType is the "@type" a typed_config block must carry.
	ConfigType() string

	// NewConfig returns an empty configuration value to decode into.
	NewConfig() any

	// CreateTracer builds a tracer, resolving collector clusters through clusters.
	CreateTracer(ctx context.Context, cfg any, clusters ClusterManager) (*Tracer, error)
}

// Registry maps factory names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. A second factory with the same name is rejected.
func (r *Registry) Register(factory Factory) error {
	name := factory.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w for name: '%s'", ErrDoubleRegistration, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(factory Factory) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactory, name)
	}
	return factory, nil
}

// Names returns the registered factory names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.MustRegister(NewOTLPFactory())
	return r
}()

// DefaultRegistry returns the process-wide registry with the built-in factories.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(factory Factory) error {
	return defaultRegistry.Register(factory)
}
