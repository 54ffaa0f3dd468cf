package deployer

import (
	"context"
	"log/slog"

	"github.com/carrackhq/carrack/internal/core/agent"
	"github.com/carrackhq/carrack/internal/core/domain"
)

// =============================================================================
// Orchestrator
// =============================================================================

// Dispatcher hands a deploy request to the execution context owning the
// artifact and awaits its typed result. The remote package provides an SSH
// implementation; a local implementation runs the invoker in-process.
type Dispatcher interface {
	Dispatch(ctx context.Context, req agent.DeployRequest) (*agent.DeployResult, error)
}

// Recorder persists deployment records. Satisfied by store.Store; nil
// disables history.
type Recorder interface {
	CreateDeployment(ctx context.Context, d *domain.Deployment) error
	UpdateDeployment(ctx context.Context, d *domain.Deployment) error
}

// Request is one deployment action as the control plane sees it.
type Request struct {
	ArtifactPath string
	ContextPath  string // Raw; macros expand on the agent side
	Variant      string
	Attempts     int // 0 means domain.DefaultAttempts
	NodeName     string
	Environment  map[string]string
	Settings     map[string]string
}

// Orchestrator resolves the build environment, constructs the deploy
// request, dispatches it to the node owning the artifact, and records the
// outcome.
type Orchestrator struct {
	dispatcher Dispatcher
	recorder   Recorder
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator. recorder may be nil.
func NewOrchestrator(dispatcher Dispatcher, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Run executes one deployment request end to end and returns its record.
// Deployment failures are reflected in the record and returned as the
// error; skipped and cancelled outcomes are recorded but are not errors.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.Deployment, error) {
	record, err := domain.NewDeployment(req.ArtifactPath, req.ContextPath, req.Variant, req.Attempts)
	if err != nil {
		return nil, err
	}
	record.NodeName = req.NodeName
	record.Environment = req.Environment

	if o.recorder != nil {
		if err := o.recorder.CreateDeployment(ctx, record); err != nil {
			return nil, err
		}
	}

	environment := req.Environment
	if environment == nil {
		// Builds without an environment deploy with an empty snapshot.
		environment = map[string]string{}
	}

	_ = record.MarkDeploying()
	o.update(ctx, record)

	o.logger.Info("dispatching deployment",
		"id", record.ID,
		"artifact", record.ArtifactPath,
		"variant", record.Variant,
		"node", record.NodeName,
		"attempts", record.Attempts,
	)

	result, err := o.dispatcher.Dispatch(ctx, agent.DeployRequest{
		Variant:      req.Variant,
		ArtifactPath: req.ArtifactPath,
		ContextPath:  req.ContextPath,
		Attempts:     record.Attempts,
		Environment:  environment,
		Settings:     req.Settings,
	})
	if err != nil {
		_ = record.MarkFailed(record.Attempts, err.Error())
		o.update(ctx, record)
		return record, err
	}

	switch {
	case result.Skipped:
		o.logger.Warn("artifact missing on node, deployment skipped", "id", record.ID)
		_ = record.MarkSkipped()
	case result.Cancelled:
		o.logger.Warn("deployment cancelled during backoff", "id", record.ID)
		_ = record.MarkCancelled(result.AttemptsUsed)
	default:
		o.logger.Info("deployment succeeded",
			"id", record.ID,
			"container", result.Container,
			"context", result.Context,
			"attempts_used", result.AttemptsUsed,
		)
		_ = record.MarkSucceeded(result.AttemptsUsed)
	}
	o.update(ctx, record)

	return record, nil
}

func (o *Orchestrator) update(ctx context.Context, record *domain.Deployment) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.UpdateDeployment(ctx, record); err != nil {
		o.logger.Error("failed to update deployment record", "id", record.ID, "error", err)
	}
}
