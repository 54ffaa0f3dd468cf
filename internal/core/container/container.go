// Package container defines the boundary between the deployment core and
// container drivers. A driver knows how to talk to one container product
// (Tomcat, WildFly, ...); this package holds the variant contract, the
// runtime configuration type, and the factory interfaces drivers implement.
//
// This package contains pure types with no I/O.
package container

import (
	"context"
	"maps"

	"github.com/carrackhq/carrack/internal/core/deployment"
)

// =============================================================================
// Variants
// =============================================================================

// VariantID identifies a container product/version to the driver toolkit.
type VariantID string

// ContainerType describes how a driver reaches a container.
type ContainerType string

// ConfigurationScope describes the lifetime of a configuration.
type ConfigurationScope string

const (
	// TypeRemote targets an already-running container on another machine.
	// The driver connects to it; it never provisions or installs one.
	TypeRemote ContainerType = "remote"

	// ScopeRuntime scopes a configuration to a running container.
	ScopeRuntime ConfigurationScope = "runtime"
)

// =============================================================================
// Configuration
// =============================================================================

// Well-known configuration property names populated by adapters.
const (
	PropRemoteURL      = "remote.url"
	PropRemoteUsername = "remote.username"
	PropRemotePassword = "remote.password"
	PropHostname       = "remote.hostname"
	PropPort           = "remote.port"
)

// Configuration is the runtime configuration a driver uses to reach a
// container. It is owned by a single deployment attempt sequence and never
// shared across concurrent deployments.
type Configuration struct {
	variant VariantID
	ctype   ContainerType
	scope   ConfigurationScope
	props   map[string]string
}

// NewConfiguration creates an empty configuration for the given variant.
func NewConfiguration(variant VariantID, ctype ContainerType, scope ConfigurationScope) *Configuration {
	return &Configuration{
		variant: variant,
		ctype:   ctype,
		scope:   scope,
		props:   make(map[string]string),
	}
}

// Variant returns the container variant this configuration targets.
func (c *Configuration) Variant() VariantID { return c.variant }

// Type returns the container type.
func (c *Configuration) Type() ContainerType { return c.ctype }

// Scope returns the configuration scope.
func (c *Configuration) Scope() ConfigurationScope { return c.scope }

// SetProperty sets a configuration property. Setting the same property
// twice keeps the last value, so repeated configuration is idempotent.
func (c *Configuration) SetProperty(name, value string) {
	c.props[name] = value
}

// Property returns the value of a property, or "" when unset.
func (c *Configuration) Property(name string) string {
	return c.props[name]
}

// Properties returns a copy of all properties.
func (c *Configuration) Properties() map[string]string {
	return maps.Clone(c.props)
}

// =============================================================================
// Driver Interfaces
// =============================================================================

// Container is a handle to a configured remote container.
type Container interface {
	// Name is a human-readable identifier used in log lines.
	Name() string

	// Variant returns the container variant this handle targets.
	Variant() VariantID

	// Configuration returns the runtime configuration the handle is bound to.
	Configuration() *Configuration
}

// Deployer performs deployment operations against one container.
type Deployer interface {
	// Redeploy stops any existing deployment of the same artifact and
	// installs the new one. The operation is idempotent at the container
	// level. Failures are reported as *ContainerError.
	Redeploy(ctx context.Context, d deployment.Deployable) error
}

// ConfigurationFactory creates empty configurations for known variants.
type ConfigurationFactory interface {
	Create(variant VariantID, ctype ContainerType, scope ConfigurationScope) (*Configuration, error)
}

// ContainerFactory materializes container handles bound to a configuration.
type ContainerFactory interface {
	Create(variant VariantID, ctype ContainerType, cfg *Configuration) (Container, error)
}

// DeployerFactory creates a deployer for a container handle.
type DeployerFactory interface {
	Create(c Container) (Deployer, error)
}
