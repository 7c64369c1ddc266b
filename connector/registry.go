package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/careroute/interlink/channel"
	pkgerrors "github.com/careroute/interlink/errors"
)

// SourceFactory builds a source connector from its channel configuration.
// Factories parse their own settings and must not perform I/O.
type SourceFactory func(cfg channel.Connector, deps Dependencies) (Source, error)

// DestinationFactory builds a destination connector. It receives the full
// destination definition so transports can honor flags like durable.
type DestinationFactory func(dest channel.Destination, deps Dependencies) (Destination, error)

// Registry maps connector type names to factories. The reference connectors
// register at startup; additional transports register the same way.
type Registry struct {
	mu           sync.RWMutex
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
	}
}

// RegisterSource registers a source factory under the given connector type.
// Returns an error when the type is already taken.
func (r *Registry) RegisterSource(connectorType string, factory SourceFactory) error {
	if connectorType == "" {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig,
			"Registry", "RegisterSource", "connector type validation")
	}
	if factory == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig,
			"Registry", "RegisterSource", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[connectorType]; exists {
		return pkgerrors.WrapInvalid(
			fmt.Errorf("source factory %q is already registered", connectorType),
			"Registry", "RegisterSource", "duplicate factory check")
	}
	r.sources[connectorType] = factory
	return nil
}

// RegisterDestination registers a destination factory under the given
// connector type. Returns an error when the type is already taken.
func (r *Registry) RegisterDestination(connectorType string, factory DestinationFactory) error {
	if connectorType == "" {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig,
			"Registry", "RegisterDestination", "connector type validation")
	}
	if factory == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig,
			"Registry", "RegisterDestination", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[connectorType]; exists {
		return pkgerrors.WrapInvalid(
			fmt.Errorf("destination factory %q is already registered", connectorType),
			"Registry", "RegisterDestination", "duplicate factory check")
	}
	r.destinations[connectorType] = factory
	return nil
}

// NewSource creates a source connector for the configured type.
func (r *Registry) NewSource(cfg channel.Connector, deps Dependencies) (Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, pkgerrors.WrapInvalid(
			fmt.Errorf("unknown source connector type %q", cfg.Type),
			"Registry", "NewSource", "factory lookup")
	}

	src, err := factory(cfg, deps)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Registry", "NewSource", "factory execution")
	}
	return src, nil
}

// NewDestination creates a destination connector for the definition's
// connector type.
func (r *Registry) NewDestination(dest channel.Destination, deps Dependencies) (Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[dest.Connector.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, pkgerrors.WrapInvalid(
			fmt.Errorf("unknown destination connector type %q", dest.Connector.Type),
			"Registry", "NewDestination", "factory lookup")
	}

	d, err := factory(dest, deps)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Registry", "NewDestination", "factory execution")
	}
	return d, nil
}

// SourceTypes returns the registered source connector types, sorted.
func (r *Registry) SourceTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DestinationTypes returns the registered destination connector types, sorted.
func (r *Registry) DestinationTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.destinations))
	for t := range r.destinations {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
