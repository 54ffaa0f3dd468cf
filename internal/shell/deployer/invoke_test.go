package deployer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carrackhq/carrack/internal/core/agent"
	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 test archive"), 0o644))
	return path
}

// newManagerServer fakes a Tomcat manager accepting every deploy.
func newManagerServer(t *testing.T, calls *atomic.Int32, lastPath *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if lastPath != nil {
			lastPath.Store(r.URL.Query().Get("path"))
		}
		io.WriteString(w, "OK - Deployed\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

// =============================================================================
// Invoker Tests
// =============================================================================

func TestInvoke_DeploysWAR(t *testing.T) {
	var calls atomic.Int32
	var lastPath atomic.Value
	srv := newManagerServer(t, &calls, &lastPath)

	inv := NewInvoker(nil)
	result, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "tomcat9x",
		ArtifactPath: writeArtifact(t, "shop.war"),
		ContextPath:  "/shop",
		Attempts:     4,
		Settings:     map[string]string{"url": srv.URL},
	})
	require.NoError(t, err)
	assert.True(t, result.Deployed)
	assert.False(t, result.Skipped)
	assert.Equal(t, "Tomcat 9.x Remote", result.Container)
	assert.Equal(t, "/shop", result.Context)
	assert.Equal(t, 1, result.AttemptsUsed)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "/shop", lastPath.Load())
}

func TestInvoke_ExpandsContextPath(t *testing.T) {
	var calls atomic.Int32
	var lastPath atomic.Value
	srv := newManagerServer(t, &calls, &lastPath)

	inv := NewInvoker(nil)
	result, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "tomcat9x",
		ArtifactPath: writeArtifact(t, "shop.war"),
		ContextPath:  "${CTX}",
		Attempts:     1,
		Environment:  map[string]string{"CTX": "/storefront"},
		Settings:     map[string]string{"url": srv.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, "/storefront", result.Context)
	assert.Equal(t, "/storefront", lastPath.Load())
}

func TestInvoke_MissingArtifact_SkippedWithoutDriverCall(t *testing.T) {
	var calls atomic.Int32
	srv := newManagerServer(t, &calls, nil)

	inv := NewInvoker(nil)
	result, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "tomcat9x",
		ArtifactPath: "/nonexistent/app.war",
		Attempts:     4,
		Settings:     map[string]string{"url": srv.URL},
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, result.Deployed)
	assert.Equal(t, int32(0), calls.Load())
}

func TestInvoke_UnknownVariant(t *testing.T) {
	inv := NewInvoker(nil)
	_, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "weblogic12x",
		ArtifactPath: writeArtifact(t, "app.war"),
		Attempts:     1,
	})
	assert.ErrorIs(t, err, corecontainer.ErrUnknownVariant)
}

func TestInvoke_UnsupportedArtifact_NoDriverCall(t *testing.T) {
	var calls atomic.Int32
	srv := newManagerServer(t, &calls, nil)

	inv := NewInvoker(nil)
	_, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "tomcat9x",
		ArtifactPath: writeArtifact(t, "app.zip"),
		Attempts:     4,
		Settings:     map[string]string{"url": srv.URL},
	})
	assert.ErrorIs(t, err, deployment.ErrUnsupportedArtifact)
	assert.Equal(t, int32(0), calls.Load())
}

func TestInvoke_InvalidRequest(t *testing.T) {
	inv := NewInvoker(nil)
	_, err := inv.Invoke(context.Background(), agent.DeployRequest{})
	assert.Error(t, err)
}

func TestInvoke_RetriesExhausted_SurfacesDriverError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, "FAIL - Context is being serviced\n")
	}))
	t.Cleanup(srv.Close)

	inv := NewInvoker(nil)
	inv.backoff = time.Millisecond
	_, err := inv.Invoke(context.Background(), agent.DeployRequest{
		Variant:      "tomcat9x",
		ArtifactPath: writeArtifact(t, "app.war"),
		Attempts:     3,
		Settings:     map[string]string{"url": srv.URL},
	})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, err.Error(), "Context is being serviced")
}
