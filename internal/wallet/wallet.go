// Package wallet defines the wallet capability boundary and a provider
// registry. The execution engine treats signing as an opaque suspension point
// that may reject or fail; it never sees provider internals.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProvider is returned when resolving an unregistered type tag.
var ErrUnknownProvider = errors.New("wallet: unknown provider type")

// Provider is the wallet capability consumed by the trade engine. Resolved
// once at session start and held for the session's lifetime.
type Provider interface {
	// Name returns the provider type tag.
	Name() string

	// Address returns the connected wallet's public key.
	Address() string

	// Sign signs a base64-encoded transaction and returns the signed
	// transaction, still base64-encoded, without broadcasting it.
	Sign(ctx context.Context, txBase64 string) (string, error)

	// SignAndSend signs and broadcasts a base64-encoded transaction and
	// returns the on-chain signature. A user decline surfaces as an error.
	SignAndSend(ctx context.Context, txBase64 string) (string, error)

	// GetBalance returns the wallet's lamport balance.
	GetBalance(ctx context.Context) (uint64, error)
}

// Factory builds a Provider from a connection config.
type Factory func(config map[string]string) (Provider, error)

// Registry maps provider type tags to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a type tag, replacing any previous entry.
func (r *Registry) Register(typeTag string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeTag] = factory
}

// Resolve builds a provider for the given type tag.
func (r *Registry) Resolve(typeTag string, config map[string]string) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeTag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, typeTag)
	}
	return factory(config)
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
