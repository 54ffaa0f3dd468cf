package container

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
)

// VariantWildFly31x targets WildFly 31.x through its HTTP management API.
const VariantWildFly31x corecontainer.VariantID = "wildfly31x"

// WildFly setting keys accepted by the adapter, in addition to
// SettingUsername and SettingPassword.
const (
	SettingHostname = "hostname"
	SettingPort     = "port"
)

// =============================================================================
// Adapter
// =============================================================================

// wildflyAdapter populates a runtime configuration for the WildFly
// management endpoint.
type wildflyAdapter struct {
	hostname string
	port     string
	username string
	password string
}

func newWildFlyAdapter(settings map[string]string) corecontainer.Adapter {
	return &wildflyAdapter{
		hostname: settings[SettingHostname],
		port:     settings[SettingPort],
		username: settings[SettingUsername],
		password: settings[SettingPassword],
	}
}

func (a *wildflyAdapter) Identity() corecontainer.VariantID {
	return VariantWildFly31x
}

func (a *wildflyAdapter) Configure(cfg *corecontainer.Configuration, env deployment.Environment, resolver deployment.Resolver) {
	host := deployment.ExpandVariable(env, resolver, a.hostname)
	port := deployment.ExpandVariable(env, resolver, a.port)
	if port == "" {
		port = "9990"
	}
	cfg.SetProperty(corecontainer.PropHostname, host)
	cfg.SetProperty(corecontainer.PropPort, port)
	cfg.SetProperty(corecontainer.PropRemoteURL, fmt.Sprintf("http://%s:%s/management", host, port))
	cfg.SetProperty(corecontainer.PropRemoteUsername, deployment.ExpandVariable(env, resolver, a.username))
	cfg.SetProperty(corecontainer.PropRemotePassword, deployment.ExpandVariable(env, resolver, a.password))
}

// =============================================================================
// Deployer
// =============================================================================

// managementOp is a WildFly management API operation request.
type managementOp struct {
	Operation   string           `json:"operation"`
	Address     []map[string]any `json:"address,omitempty"`
	Name        string           `json:"name,omitempty"`
	RuntimeName string           `json:"runtime-name,omitempty"`
	Content     []map[string]any `json:"content,omitempty"`
	Enabled     bool             `json:"enabled,omitempty"`
}

// managementResult is the subset of the operation response we look at.
type managementResult struct {
	Outcome            string          `json:"outcome"`
	FailureDescription json.RawMessage `json:"failure-description,omitempty"`
}

// wildflyDeployer drives the WildFly HTTP management API. Redeploy uploads
// the archive content and issues a full-replace-deployment, which removes
// any existing deployment with the same name first.
type wildflyDeployer struct {
	managementURL string
	username      string
	password      string
	client        *http.Client
	logger        *slog.Logger
}

func newWildFlyDeployer(c corecontainer.Container, logger *slog.Logger) (corecontainer.Deployer, error) {
	cfg := c.Configuration()
	mgmt := cfg.Property(corecontainer.PropRemoteURL)
	if mgmt == "" {
		return nil, fmt.Errorf("wildfly deployer: %s is not configured", corecontainer.PropRemoteURL)
	}
	return &wildflyDeployer{
		managementURL: mgmt,
		username:      cfg.Property(corecontainer.PropRemoteUsername),
		password:      cfg.Property(corecontainer.PropRemotePassword),
		client:        &http.Client{Timeout: 2 * time.Minute},
		logger:        logger.With("component", "wildfly"),
	}, nil
}

func (d *wildflyDeployer) Redeploy(ctx context.Context, dep deployment.Deployable) error {
	content, err := os.ReadFile(dep.Path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	op := managementOp{
		Operation:   "full-replace-deployment",
		Name:        dep.Name(),
		RuntimeName: runtimeName(dep),
		Content: []map[string]any{
			{"bytes": base64.StdEncoding.EncodeToString(content)},
		},
		Enabled: true,
	}

	d.logger.Debug("deploying via wildfly management API",
		"url", d.managementURL, "name", op.Name, "runtime_name", op.RuntimeName)

	if err := d.execute(ctx, op); err != nil {
		return err
	}
	return nil
}

// execute posts one management operation and checks its outcome.
func (d *wildflyDeployer) execute(ctx context.Context, op managementOp) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.managementURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build management request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.username != "" {
		req.SetBasicAuth(d.username, d.password)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return corecontainer.NewContainerError(op.Operation, "WildFly 31.x Remote",
			err.Error(), corecontainer.ErrContainerUnavailable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		return corecontainer.NewContainerError(op.Operation, "WildFly 31.x Remote",
			fmt.Sprintf("management API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			corecontainer.ErrContainerUnavailable)
	}

	var result managementResult
	if err := json.Unmarshal(body, &result); err != nil {
		return corecontainer.NewContainerError(op.Operation, "WildFly 31.x Remote",
			fmt.Sprintf("unreadable management response: %s", strings.TrimSpace(string(body))), nil)
	}
	if result.Outcome != "success" {
		return corecontainer.NewContainerError(op.Operation, "WildFly 31.x Remote",
			strings.TrimSpace(string(result.FailureDescription)), nil)
	}
	return nil
}

// runtimeName derives the deployment runtime name. For WARs the runtime
// name decides the web context, so an explicit context path maps to
// "<context>.war".
func runtimeName(dep deployment.Deployable) string {
	if dep.Kind == deployment.KindWAR && dep.Context != "" {
		return strings.Trim(dep.Context, "/") + ".war"
	}
	return dep.Name()
}
