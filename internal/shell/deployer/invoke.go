package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carrackhq/carrack/internal/core/agent"
	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
	shellcontainer "github.com/carrackhq/carrack/internal/shell/container"
)

// Invoker executes a deploy request on the machine holding the artifact.
// It is the agent-side counterpart of the orchestrator: the request arrives
// as a value, everything else is constructed fresh per invocation.
type Invoker struct {
	logger  *slog.Logger
	backoff time.Duration // 0 means DefaultBackoff
}

// NewInvoker creates an invoker logging to the given logger.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{logger: logger}
}

// Invoke performs one deployment: configure the container, package the
// artifact, deploy with retries.
//
// A missing artifact file is logged as a warning and reported as a skipped
// success rather than a failure. That leniency is deliberate and
// load-bearing: a build that produced nothing to deploy does not fail its
// deploy step.
func (i *Invoker) Invoke(ctx context.Context, req agent.DeployRequest) (*agent.DeployResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deploy request: %w", err)
	}

	if _, err := os.Stat(req.ArtifactPath); os.IsNotExist(err) {
		i.logger.Warn("artifact does not exist, skipping deployment",
			"artifact", req.ArtifactPath,
		)
		return &agent.DeployResult{Skipped: true}, nil
	}

	// Driver factories are scoped to this invocation; nothing is cached
	// across invocations.
	factories := shellcontainer.NewFactories(i.logger)

	adapter, err := shellcontainer.NewAdapter(corecontainer.VariantID(req.Variant), req.Settings)
	if err != nil {
		return nil, err
	}

	env := deployment.Environment(req.Environment)
	resolver := deployment.MapResolver(req.Environment)

	c, err := corecontainer.GetContainer(factories.Configuration, factories.Container, adapter, env, resolver)
	if err != nil {
		return nil, err
	}

	contextPath := deployment.ExpandVariable(env, resolver, req.ContextPath)

	dep, err := deployment.Package(req.ArtifactPath, contextPath)
	if err != nil {
		return nil, err
	}

	d, err := factories.Deployer.Create(c)
	if err != nil {
		return nil, err
	}

	retry := NewRetryingDeployer(RetryConfig{Backoff: i.backoff}, i.logger)
	outcome, err := retry.Deploy(ctx, d, c, dep, req.Attempts)
	if err != nil {
		return nil, err
	}

	return &agent.DeployResult{
		Deployed:     !outcome.Cancelled,
		Cancelled:    outcome.Cancelled,
		Container:    c.Name(),
		Context:      dep.Context,
		AttemptsUsed: outcome.AttemptsUsed,
	}, nil
}
