package ai

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Factory builds an Embedder from a validated Config.
type Factory func(ctx context.Context, cfg *Config) (Embedder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a provider available to New. Provider packages call it
// from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("ai: Register called twice for provider " + name)
	}
	registry[name] = factory
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New validates cfg and builds the embedder of the selected provider.
func New(ctx context.Context, cfg *Config) (Embedder, error) {
	cfg.Normalize()
	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownProvider, cfg.Provider, Providers())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return factory(ctx, cfg)
}

// CheckCount verifies that a provider returned one vector per text.
func CheckCount(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: %d texts, %d vectors", ErrEmbeddingCount, len(texts), len(vectors))
	}
	return nil
}
