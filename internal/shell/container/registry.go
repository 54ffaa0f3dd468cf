// Package container provides the concrete container drivers and the
// registry-backed factories that materialize them. Each supported variant
// pairs an adapter (configuration glue) with a deployer (the product's
// remote deployment API).
package container

import (
	"fmt"
	"log/slog"

	corecontainer "github.com/carrackhq/carrack/internal/core/container"
)

// =============================================================================
// Variant Registry
// =============================================================================

// variantDef wires one container product into the factories.
type variantDef struct {
	// name is the human-readable container name used in log lines.
	name string

	newAdapter  func(settings map[string]string) corecontainer.Adapter
	newDeployer func(c corecontainer.Container, logger *slog.Logger) (corecontainer.Deployer, error)
}

// variants is the closed set of supported container products. Adding a
// product means adding an entry here plus its adapter and deployer.
var variants = map[corecontainer.VariantID]variantDef{
	VariantTomcat9x: {
		name:        "Tomcat 9.x Remote",
		newAdapter:  newTomcatAdapter,
		newDeployer: newTomcatDeployer,
	},
	VariantWildFly31x: {
		name:        "WildFly 31.x Remote",
		newAdapter:  newWildFlyAdapter,
		newDeployer: newWildFlyDeployer,
	},
}

// NewAdapter constructs the adapter for a variant from raw, unexpanded
// container settings.
func NewAdapter(variant corecontainer.VariantID, settings map[string]string) (corecontainer.Adapter, error) {
	def, ok := variants[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", corecontainer.ErrUnknownVariant, variant)
	}
	return def.newAdapter(settings), nil
}

// Variants returns the identifiers of all registered variants.
func Variants() []corecontainer.VariantID {
	ids := make([]corecontainer.VariantID, 0, len(variants))
	for id := range variants {
		ids = append(ids, id)
	}
	return ids
}

// =============================================================================
// Factories
// =============================================================================

// Factories bundles the three driver factories. Each invocation creates a
// fresh set; nothing is cached across invocations.
type Factories struct {
	Configuration corecontainer.ConfigurationFactory
	Container     corecontainer.ContainerFactory
	Deployer      corecontainer.DeployerFactory
}

// NewFactories creates fresh driver factories scoped to one invocation.
func NewFactories(logger *slog.Logger) Factories {
	if logger == nil {
		logger = slog.Default()
	}
	return Factories{
		Configuration: &configurationFactory{},
		Container:     &containerFactory{},
		Deployer:      &deployerFactory{logger: logger},
	}
}

// configurationFactory creates empty configurations for known variants.
type configurationFactory struct{}

func (f *configurationFactory) Create(variant corecontainer.VariantID, ctype corecontainer.ContainerType, scope corecontainer.ConfigurationScope) (*corecontainer.Configuration, error) {
	if _, ok := variants[variant]; !ok {
		return nil, fmt.Errorf("%w: %q", corecontainer.ErrUnknownVariant, variant)
	}
	return corecontainer.NewConfiguration(variant, ctype, scope), nil
}

// containerFactory materializes container handles bound to a configuration.
type containerFactory struct{}

func (f *containerFactory) Create(variant corecontainer.VariantID, ctype corecontainer.ContainerType, cfg *corecontainer.Configuration) (corecontainer.Container, error) {
	def, ok := variants[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", corecontainer.ErrUnknownVariant, variant)
	}
	if ctype != corecontainer.TypeRemote {
		return nil, fmt.Errorf("unsupported container type %q for %q", ctype, variant)
	}
	return &remoteContainer{name: def.name, cfg: cfg}, nil
}

// deployerFactory creates the variant's deployer for a container handle.
type deployerFactory struct {
	logger *slog.Logger
}

func (f *deployerFactory) Create(c corecontainer.Container) (corecontainer.Deployer, error) {
	def, ok := variants[c.Variant()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", corecontainer.ErrUnknownVariant, c.Variant())
	}
	return def.newDeployer(c, f.logger)
}

// =============================================================================
// Container Handle
// =============================================================================

// remoteContainer is the handle bound to a configured remote container.
type remoteContainer struct {
	name string
	cfg  *corecontainer.Configuration
}

func (c *remoteContainer) Name() string { return c.name }

func (c *remoteContainer) Variant() corecontainer.VariantID { return c.cfg.Variant() }

func (c *remoteContainer) Configuration() *corecontainer.Configuration { return c.cfg }
