package container

import (
	"fmt"

	"github.com/carrackhq/carrack/internal/core/deployment"
)

// =============================================================================
// Adapter Contract
// =============================================================================

// Adapter provides container-specific configuration glue. There is one
// implementation per supported container product, selected statically when
// the adapter is constructed, not at runtime from data.
type Adapter interface {
	// Identity returns the variant the adapter configures.
	Identity() VariantID

	// Configure populates the empty configuration with container-specific
	// properties, expanding raw configuration strings against the build
	// environment. It must be idempotent: configuring twice with the same
	// inputs yields the same configuration state.
	Configure(cfg *Configuration, env deployment.Environment, resolver deployment.Resolver)
}

// GetContainer builds a remote-type, runtime-scope configuration for the
// adapter's variant, lets the adapter populate it, and asks the container
// factory for a handle bound to it. Unrecognized variants surface as
// ErrUnknownVariant from the factories.
func GetContainer(configFactory ConfigurationFactory, containerFactory ContainerFactory, adapter Adapter, env deployment.Environment, resolver deployment.Resolver) (Container, error) {
	id := adapter.Identity()

	cfg, err := configFactory.Create(id, TypeRemote, ScopeRuntime)
	if err != nil {
		return nil, fmt.Errorf("create configuration for %q: %w", id, err)
	}

	adapter.Configure(cfg, env, resolver)

	c, err := containerFactory.Create(id, TypeRemote, cfg)
	if err != nil {
		return nil, fmt.Errorf("create container for %q: %w", id, err)
	}
	return c, nil
}
