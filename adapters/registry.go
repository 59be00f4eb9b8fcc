package adapters

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettbedarf/scopedfs"
)

// Spec selects and parameterizes a backend
type Spec struct {
	Type     string `yaml:"type" json:"type"`
	ReadOnly bool   `yaml:"read_only,omitempty" json:"read_only,omitempty"` // Wrap the backend so every mutation fails with EPERM
}

// Provider builds a [scopedfs.Backend] from its [Spec]
type Provider interface {
	NewBackend(spec Spec) (scopedfs.Backend, error)
}

// ProviderFunc adapts a plain function to [Provider]
type ProviderFunc func(spec Spec) (scopedfs.Backend, error)

func (f ProviderFunc) NewBackend(spec Spec) (scopedfs.Backend, error) {
	return f(spec)
}

// Registry maps backend types to their providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register ties a provider to a backend type and should be called for each
// backend type during app init. The first registration of a type wins.
func (r *Registry) Register(backendType string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[backendType]; ok {
		return
	}
	r.providers[backendType] = provider
}

// GetProvider returns the provider registered for backendType
func (r *Registry) GetProvider(backendType string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[backendType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider for backend %q", backendType)
	}
	return p, nil
}

// NewBackend picks the provider based on spec.Type
func (r *Registry) NewBackend(spec Spec) (scopedfs.Backend, error) {
	p, err := r.GetProvider(spec.Type)
	if err != nil {
		return nil, err
	}
	return p.NewBackend(spec)
}

// ParseSpec decodes a JSON backend spec. The "type" field is required.
func ParseSpec(raw []byte) (Spec, error) {
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return Spec{}, err
	}
	if spec.Type == "" {
		return Spec{}, fmt.Errorf("backend spec is missing the type field")
	}
	return spec, nil
}

var defaultRegistry = NewRegistry()

// Register adds a provider to the default registry
func Register(backendType string, provider Provider) {
	defaultRegistry.Register(backendType, provider)
}

// NewBackend builds a backend from the default registry.
// All expected backend types should be registered with [Register] or
// [RegisterBuiltins] before calling this function.
func NewBackend(spec Spec) (scopedfs.Backend, error) {
	return defaultRegistry.NewBackend(spec)
}
