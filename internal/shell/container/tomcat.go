package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
)

// VariantTomcat9x targets Tomcat 9.x through its manager text API.
const VariantTomcat9x corecontainer.VariantID = "tomcat9x"

// Tomcat setting keys accepted by the adapter. Values may contain ${VAR}
// macros expanded against the build environment.
const (
	SettingURL      = "url"
	SettingUsername = "username"
	SettingPassword = "password"
)

// =============================================================================
// Adapter
// =============================================================================

// tomcatAdapter populates a runtime configuration for the Tomcat manager.
type tomcatAdapter struct {
	url      string
	username string
	password string
}

func newTomcatAdapter(settings map[string]string) corecontainer.Adapter {
	return &tomcatAdapter{
		url:      settings[SettingURL],
		username: settings[SettingUsername],
		password: settings[SettingPassword],
	}
}

func (a *tomcatAdapter) Identity() corecontainer.VariantID {
	return VariantTomcat9x
}

func (a *tomcatAdapter) Configure(cfg *corecontainer.Configuration, env deployment.Environment, resolver deployment.Resolver) {
	cfg.SetProperty(corecontainer.PropRemoteURL, deployment.ExpandVariable(env, resolver, a.url))
	cfg.SetProperty(corecontainer.PropRemoteUsername, deployment.ExpandVariable(env, resolver, a.username))
	cfg.SetProperty(corecontainer.PropRemotePassword, deployment.ExpandVariable(env, resolver, a.password))
}

// =============================================================================
// Deployer
// =============================================================================

// tomcatDeployer drives the Tomcat manager text API. Redeploy is a single
// "deploy with update" request: the manager undeploys any application at
// the same path before installing the new archive.
type tomcatDeployer struct {
	baseURL  string
	username string
	password string
	client   *http.Client
	logger   *slog.Logger
}

func newTomcatDeployer(c corecontainer.Container, logger *slog.Logger) (corecontainer.Deployer, error) {
	cfg := c.Configuration()
	base := strings.TrimSuffix(cfg.Property(corecontainer.PropRemoteURL), "/")
	if base == "" {
		return nil, fmt.Errorf("tomcat deployer: %s is not configured", corecontainer.PropRemoteURL)
	}
	return &tomcatDeployer{
		baseURL:  base,
		username: cfg.Property(corecontainer.PropRemoteUsername),
		password: cfg.Property(corecontainer.PropRemotePassword),
		client:   &http.Client{Timeout: 2 * time.Minute},
		logger:   logger.With("component", "tomcat"),
	}, nil
}

func (d *tomcatDeployer) Redeploy(ctx context.Context, dep deployment.Deployable) error {
	if dep.Kind != deployment.KindWAR {
		// The manager API only installs web archives.
		return fmt.Errorf("tomcat cannot deploy %s artifacts", dep.Kind)
	}

	f, err := os.Open(dep.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	deployURL := fmt.Sprintf("%s/text/deploy?path=%s&update=true",
		d.baseURL, url.QueryEscape(contextOrDefault(dep)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, deployURL, f)
	if err != nil {
		return fmt.Errorf("build deploy request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	if d.username != "" {
		req.SetBasicAuth(d.username, d.password)
	}

	d.logger.Debug("deploying to tomcat manager", "url", d.baseURL, "path", contextOrDefault(dep))

	resp, err := d.client.Do(req)
	if err != nil {
		return corecontainer.NewContainerError("redeploy", "Tomcat 9.x Remote",
			err.Error(), corecontainer.ErrContainerUnavailable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	line := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return corecontainer.NewContainerError("redeploy", "Tomcat 9.x Remote",
			fmt.Sprintf("manager returned %d: %s", resp.StatusCode, line),
			corecontainer.ErrContainerUnavailable)
	}

	// The text API reports errors with a 200 status and a FAIL line.
	if !strings.HasPrefix(line, "OK") {
		return corecontainer.NewContainerError("redeploy", "Tomcat 9.x Remote", line, nil)
	}
	return nil
}

// contextOrDefault returns the deployable's context path, defaulting to
// the archive base name the way the manager itself would.
func contextOrDefault(dep deployment.Deployable) string {
	if dep.Context != "" {
		if strings.HasPrefix(dep.Context, "/") {
			return dep.Context
		}
		return "/" + dep.Context
	}
	name := strings.TrimSuffix(dep.Name(), filepath.Ext(dep.Name()))
	return "/" + name
}
