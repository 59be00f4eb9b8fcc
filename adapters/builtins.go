package adapters

import "github.com/brettbedarf/scopedfs"

type BuiltInBackendType = string

const (
	// OSBackendType is the host filesystem
	OSBackendType BuiltInBackendType = "os"
	// MemBackendType is a private in-memory filesystem, mostly useful for tests
	MemBackendType BuiltInBackendType = "mem"
)

// RegisterBuiltins registers all built-in backends in the default registry
// or only the specific ones if keys are provided
func RegisterBuiltins(backends ...BuiltInBackendType) {
	registerBuiltins(defaultRegistry, backends...)
}

func registerBuiltins(r *Registry, backends ...BuiltInBackendType) {
	if len(backends) == 0 {
		backends = append(backends, OSBackendType, MemBackendType)
	}

	for _, key := range backends {
		switch key {
		case OSBackendType:
			r.Register(OSBackendType, ProviderFunc(func(spec Spec) (scopedfs.Backend, error) {
				return wrapSpec(NewOS(), spec), nil
			}))
		case MemBackendType:
			r.Register(MemBackendType, ProviderFunc(func(spec Spec) (scopedfs.Backend, error) {
				return wrapSpec(NewMem(), spec), nil
			}))
		}
	}
}

func wrapSpec(b *AferoBackend, spec Spec) *AferoBackend {
	if spec.ReadOnly {
		return NewReadOnly(b)
	}
	return b
}
