package llm

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/provider"
)

// Factory builds a Provider from decrypted vendor settings. Settings that do
// not match the vendor's shape must be reported as domain.ErrMalformedConfig.
type Factory func(config json.RawMessage) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[provider.Type]Factory)
)

// Register makes a vendor factory available by provider type.
// It is typically called from an init() function in the adapter package.
func Register(t provider.Type, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[t]; exists {
		panic(fmt.Sprintf("llm: duplicate registration for %q", t))
	}
	factories[t] = factory
}

// Build creates a Provider for the given type. Unknown types return
// domain.ErrUnsupportedProvider without any network activity.
func Build(t provider.Type, config json.RawMessage) (Provider, error) {
	mu.RLock()
	factory, ok := factories[t]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, t)
	}
	return factory(config)
}

// Available returns the registered provider types, sorted.
func Available() []provider.Type {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]provider.Type, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
