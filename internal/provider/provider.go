// internal/provider/provider.go
package provider

import (
	"context"
	"sort"
	"sync"

	"persona-workers/internal/common/config"
	"persona-workers/internal/common/errors"
)

// ==========================
// 1. Provider Interface
// ==========================

// Provider is a text-generation backend. Implementations wrap one
// vendor SDK each and are selected by name from configuration.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Generate sends a prompt and returns the raw model text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Factory builds a Provider from its backend configuration.
type Factory func(cfg config.BackendConfig) (Provider, error)

// ==========================
// 2. Registry
// ==========================

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend constructable by name. Registration happens
// in init funcs; later registrations for the same name win.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Names lists the registered backends in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New resolves cfg.Name against the registry and constructs the backend.
func New(cfg config.ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewProviderUnavailableError(cfg.Name)
	}

	backend := cfg.Google
	switch cfg.Name {
	case "openai":
		backend = cfg.OpenAI
	case "anthropic":
		backend = cfg.Anthropic
	}
	return factory(backend)
}
