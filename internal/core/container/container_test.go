package container

import (
	"errors"
	"fmt"
	"testing"

	"github.com/carrackhq/carrack/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Configuration Tests
// =============================================================================

func TestConfiguration_Properties(t *testing.T) {
	cfg := NewConfiguration("tomcat9x", TypeRemote, ScopeRuntime)
	cfg.SetProperty(PropRemoteURL, "http://localhost:8080/manager")

	assert.Equal(t, VariantID("tomcat9x"), cfg.Variant())
	assert.Equal(t, TypeRemote, cfg.Type())
	assert.Equal(t, ScopeRuntime, cfg.Scope())
	assert.Equal(t, "http://localhost:8080/manager", cfg.Property(PropRemoteURL))
	assert.Empty(t, cfg.Property(PropRemotePassword))
}

func TestConfiguration_SetProperty_LastWriteWins(t *testing.T) {
	cfg := NewConfiguration("tomcat9x", TypeRemote, ScopeRuntime)
	cfg.SetProperty(PropRemoteUsername, "admin")
	cfg.SetProperty(PropRemoteUsername, "deployer")
	assert.Equal(t, "deployer", cfg.Property(PropRemoteUsername))
}

func TestConfiguration_Properties_ReturnsCopy(t *testing.T) {
	cfg := NewConfiguration("tomcat9x", TypeRemote, ScopeRuntime)
	cfg.SetProperty(PropRemoteURL, "http://a")

	props := cfg.Properties()
	props[PropRemoteURL] = "http://b"
	assert.Equal(t, "http://a", cfg.Property(PropRemoteURL))
}

// =============================================================================
// GetContainer Tests
// =============================================================================

type stubAdapter struct {
	id  VariantID
	url string
}

func (a *stubAdapter) Identity() VariantID { return a.id }

func (a *stubAdapter) Configure(cfg *Configuration, env deployment.Environment, resolver deployment.Resolver) {
	cfg.SetProperty(PropRemoteURL, deployment.ExpandVariable(env, resolver, a.url))
}

type stubConfigFactory struct {
	known map[VariantID]bool
}

func (f *stubConfigFactory) Create(variant VariantID, ctype ContainerType, scope ConfigurationScope) (*Configuration, error) {
	if !f.known[variant] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return NewConfiguration(variant, ctype, scope), nil
}

type stubContainer struct {
	cfg *Configuration
}

func (c *stubContainer) Name() string                  { return "stub " + string(c.cfg.Variant()) }
func (c *stubContainer) Variant() VariantID            { return c.cfg.Variant() }
func (c *stubContainer) Configuration() *Configuration { return c.cfg }

type stubContainerFactory struct{}

func (f *stubContainerFactory) Create(variant VariantID, ctype ContainerType, cfg *Configuration) (Container, error) {
	return &stubContainer{cfg: cfg}, nil
}

func TestGetContainer_ConfiguresAndMaterializes(t *testing.T) {
	adapter := &stubAdapter{id: "tomcat9x", url: "http://${HOST}:8080/manager"}
	env := deployment.Environment{"HOST": "tomcat01"}

	c, err := GetContainer(
		&stubConfigFactory{known: map[VariantID]bool{"tomcat9x": true}},
		&stubContainerFactory{},
		adapter, env, nil,
	)
	require.NoError(t, err)
	assert.Equal(t, VariantID("tomcat9x"), c.Variant())
	assert.Equal(t, "http://tomcat01:8080/manager", c.Configuration().Property(PropRemoteURL))
}

func TestGetContainer_UnknownVariant(t *testing.T) {
	adapter := &stubAdapter{id: "weblogic12x"}

	_, err := GetContainer(
		&stubConfigFactory{known: map[VariantID]bool{"tomcat9x": true}},
		&stubContainerFactory{},
		adapter, nil, nil,
	)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestGetContainer_ConfigureIsIdempotent(t *testing.T) {
	adapter := &stubAdapter{id: "tomcat9x", url: "http://${HOST}:8080/manager"}
	env := deployment.Environment{"HOST": "tomcat01"}
	factory := &stubConfigFactory{known: map[VariantID]bool{"tomcat9x": true}}

	first, err := GetContainer(factory, &stubContainerFactory{}, adapter, env, nil)
	require.NoError(t, err)
	second, err := GetContainer(factory, &stubContainerFactory{}, adapter, env, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Configuration().Properties(), second.Configuration().Properties())
}

// =============================================================================
// Error Tests
// =============================================================================

func TestContainerError_MessagePreserved(t *testing.T) {
	err := NewContainerError("redeploy", "Tomcat 9.x", "connection refused", ErrContainerUnavailable)
	assert.Equal(t, "redeploy Tomcat 9.x: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrContainerUnavailable)
}

func TestIsContainerError(t *testing.T) {
	wrapped := fmt.Errorf("attempt failed: %w", NewContainerError("redeploy", "", "boom", nil))
	assert.True(t, IsContainerError(wrapped))
	assert.False(t, IsContainerError(errors.New("boom")))
}
