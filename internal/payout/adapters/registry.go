package adapters

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/payout/domain"
)

type Registry struct {
	providers map[string]domain.Provider
	kinds     []string
}

func NewRegistry(providers ...domain.Provider) *Registry {
	registry := &Registry{providers: map[string]domain.Provider{}}
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		kind := normalize(provider.Kind())
		if kind == "" {
			continue
		}
		if _, exists := registry.providers[kind]; !exists {
			registry.kinds = append(registry.kinds, kind)
		}
		registry.providers[kind] = provider
	}
	return registry
}

func (r *Registry) ProviderExists(kind string) bool {
	if r == nil {
		return false
	}
	_, ok := r.providers[normalize(kind)]
	return ok
}

func (r *Registry) Get(kind string) (domain.Provider, error) {
	if r == nil {
		return nil, domain.ErrUnknownDestination
	}
	provider, ok := r.providers[normalize(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDestination, kind)
	}
	return provider, nil
}

// Kinds lists the registered destination kinds in registration order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.kinds...)
}

func normalize(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
