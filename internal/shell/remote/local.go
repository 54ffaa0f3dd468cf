package remote

import (
	"context"
	"log/slog"

	"github.com/carrackhq/carrack/internal/core/agent"
	"github.com/carrackhq/carrack/internal/shell/deployer"
)

// LocalDispatcher runs the invocation in-process. Used when the artifact
// lives on the same machine as the control plane, so there is no boundary
// to cross.
type LocalDispatcher struct {
	invoker *deployer.Invoker
}

// NewLocalDispatcher creates a dispatcher executing deployments locally.
func NewLocalDispatcher(logger *slog.Logger) *LocalDispatcher {
	return &LocalDispatcher{invoker: deployer.NewInvoker(logger)}
}

// Dispatch executes the deploy request in the current process.
func (d *LocalDispatcher) Dispatch(ctx context.Context, req agent.DeployRequest) (*agent.DeployResult, error) {
	return d.invoker.Invoke(ctx, req)
}
