package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWildFlyTestDeployer(t *testing.T, managementURL string) corecontainer.Deployer {
	t.Helper()
	cfg := corecontainer.NewConfiguration(VariantWildFly31x, corecontainer.TypeRemote, corecontainer.ScopeRuntime)
	cfg.SetProperty(corecontainer.PropRemoteURL, managementURL)
	cfg.SetProperty(corecontainer.PropRemoteUsername, "admin")
	cfg.SetProperty(corecontainer.PropRemotePassword, "admin123")

	f := NewFactories(nil)
	c, err := f.Container.Create(VariantWildFly31x, corecontainer.TypeRemote, cfg)
	require.NoError(t, err)
	d, err := f.Deployer.Create(c)
	require.NoError(t, err)
	return d
}

// =============================================================================
// WildFly Deployer Tests
// =============================================================================

func TestWildFlyRedeploy_Success(t *testing.T) {
	var got managementOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"outcome": "success"})
	}))
	defer srv.Close()

	d := newWildFlyTestDeployer(t, srv.URL)
	dep, err := deployment.Package(writeTestArtifact(t, "app.war"), "/shop")
	require.NoError(t, err)

	require.NoError(t, d.Redeploy(context.Background(), dep))
	assert.Equal(t, "full-replace-deployment", got.Operation)
	assert.Equal(t, "app.war", got.Name)
	assert.Equal(t, "shop.war", got.RuntimeName)
	require.Len(t, got.Content, 1)
	assert.NotEmpty(t, got.Content[0]["bytes"])
}

func TestWildFlyRedeploy_EARKeepsName(t *testing.T) {
	var got managementOp
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"outcome": "success"})
	}))
	defer srv.Close()

	d := newWildFlyTestDeployer(t, srv.URL)
	dep, err := deployment.Package(writeTestArtifact(t, "suite.ear"), "/ignored")
	require.NoError(t, err)

	require.NoError(t, d.Redeploy(context.Background(), dep))
	assert.Equal(t, "suite.ear", got.Name)
	assert.Equal(t, "suite.ear", got.RuntimeName)
}

func TestWildFlyRedeploy_FailedOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"outcome":             "failed",
			"failure-description": "WFLYCTL0212: duplicate resource",
		})
	}))
	defer srv.Close()

	d := newWildFlyTestDeployer(t, srv.URL)
	dep, err := deployment.Package(writeTestArtifact(t, "app.war"), "")
	require.NoError(t, err)

	err = d.Redeploy(context.Background(), dep)
	require.Error(t, err)
	assert.True(t, corecontainer.IsContainerError(err))
	assert.Contains(t, err.Error(), "WFLYCTL0212")
}

func TestWildFlyRedeploy_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := newWildFlyTestDeployer(t, srv.URL)
	dep, err := deployment.Package(writeTestArtifact(t, "app.war"), "")
	require.NoError(t, err)

	err = d.Redeploy(context.Background(), dep)
	require.Error(t, err)
	assert.ErrorIs(t, err, corecontainer.ErrContainerUnavailable)
}
