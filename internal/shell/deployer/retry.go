// Package deployer drives artifact deployments: the bounded retry loop
// around a container driver, the invocation pipeline the agent executes on
// the machine holding the artifact, and the orchestrator that dispatches
// invocations from the control plane.
package deployer

import (
	"context"
	"log/slog"
	"time"

	corecontainer "github.com/carrackhq/carrack/internal/core/container"
	"github.com/carrackhq/carrack/internal/core/deployment"
)

// DefaultBackoff is the fixed wait between deployment attempts. Containers
// commonly take tens of seconds to come back after a restart or a redeploy
// of another application, so a flat 15 seconds with a small attempt bound
// keeps total wall-clock cost predictable. No exponential growth, no
// jitter.
const DefaultBackoff = 15 * time.Second

// RetryConfig configures the retrying deployer.
type RetryConfig struct {
	Backoff time.Duration // Default: 15 seconds
}

// Outcome describes how a retry sequence ended.
type Outcome struct {
	// AttemptsUsed is the number of redeploy calls made.
	AttemptsUsed int

	// Cancelled is set when the backoff wait was interrupted. Retrying is
	// abandoned without an error; no success has occurred either, so the
	// overall result is indeterminate.
	Cancelled bool
}

// RetryingDeployer retries transient driver failures up to a bounded
// attempt count with a fixed backoff between attempts.
type RetryingDeployer struct {
	backoff time.Duration
	logger  *slog.Logger
}

// NewRetryingDeployer creates a retrying deployer.
func NewRetryingDeployer(cfg RetryConfig, logger *slog.Logger) *RetryingDeployer {
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingDeployer{
		backoff: cfg.Backoff,
		logger:  logger,
	}
}

// Deploy redeploys the deployable against the container, attempts times at
// most, stopping on the first success. Driver-reported container errors
// are retried after the backoff; any other error is fatal and propagates
// immediately. On the last attempt the driver's error is returned verbatim
// so operators see the container-side diagnostic.
func (r *RetryingDeployer) Deploy(ctx context.Context, d corecontainer.Deployer, c corecontainer.Container, dep deployment.Deployable, attempts int) (Outcome, error) {
	for attempt := 1; attempt <= attempts; attempt++ {
		r.logger.Info("deploying artifact",
			"artifact", dep.Name(),
			"container", c.Name(),
			"context", dep.Context,
			"attempt", attempt,
			"attempts", attempts,
		)

		err := d.Redeploy(ctx, dep)
		if err == nil {
			return Outcome{AttemptsUsed: attempt}, nil
		}

		if !corecontainer.IsContainerError(err) || attempt == attempts {
			return Outcome{AttemptsUsed: attempt}, err
		}

		r.logger.Warn("deploy attempt failed",
			"error", err.Error(),
			"attempt", attempt,
			"attempts", attempts,
		)

		// The container could be restarting. Wait, then try again.
		select {
		case <-ctx.Done():
			r.logger.Warn("interrupted during backoff, no further attempts",
				"attempt", attempt,
				"attempts", attempts,
			)
			return Outcome{AttemptsUsed: attempt, Cancelled: true}, nil
		case <-time.After(r.backoff):
		}
	}

	// attempts >= 1 means the loop always returns from inside.
	return Outcome{}, nil
}
