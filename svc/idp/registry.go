package idp

import (
	"fmt"
	"sync"
)

// Registry maps provider names to gateways so deployments can switch the
// identity backend through configuration.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]Gateway)}
}

// Register adds a gateway under a name, replacing any previous entry.
func (r *Registry) Register(name string, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[name] = gw
}

// Get returns the gateway registered under name.
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return gw, nil
}
