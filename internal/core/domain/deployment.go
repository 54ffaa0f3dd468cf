// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrArtifactRequired   = errors.New("artifact path is required")
	ErrVariantRequired    = errors.New("container variant is required")
	ErrInvalidAttempts    = errors.New("attempts must be at least 1")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrDeploymentNotFound = errors.New("deployment not found")
)

// =============================================================================
// Deployment Status
// =============================================================================

// DeploymentStatus represents the lifecycle state of a deployment request.
type DeploymentStatus string

const (
	StatusPending   DeploymentStatus = "pending"
	StatusDeploying DeploymentStatus = "deploying"
	StatusSucceeded DeploymentStatus = "succeeded"
	StatusSkipped   DeploymentStatus = "skipped"
	StatusCancelled DeploymentStatus = "cancelled"
	StatusFailed    DeploymentStatus = "failed"
)

// IsValid checks if the deployment status is valid.
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusDeploying, StatusSucceeded, StatusSkipped, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once no further transitions are allowed.
func (s DeploymentStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusSkipped, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// DefaultAttempts is the retry bound used when a request does not specify
// one. Four attempts with the fixed backoff tolerates a container restart
// without dragging out a genuinely broken deployment.
const DefaultAttempts = 4

// =============================================================================
// Deployment
// =============================================================================

// Deployment records one artifact deployment request and its outcome.
type Deployment struct {
	ID           string            `json:"id" db:"id"`
	ArtifactPath string            `json:"artifact_path" db:"artifact_path"`
	ContextPath  string            `json:"context_path,omitempty" db:"context_path"`
	Variant      string            `json:"variant" db:"variant"`
	NodeName     string            `json:"node_name,omitempty" db:"node_name"`
	Status       DeploymentStatus  `json:"status" db:"status"`
	Attempts     int               `json:"attempts" db:"attempts"`
	AttemptsUsed int               `json:"attempts_used" db:"attempts_used"`
	Error        string            `json:"error,omitempty" db:"error"`
	Environment  map[string]string `json:"environment,omitempty" db:"-"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty" db:"finished_at"`
}

// NewDeployment creates a pending deployment record.
func NewDeployment(artifactPath, contextPath, variant string, attempts int) (*Deployment, error) {
	if artifactPath == "" {
		return nil, ErrArtifactRequired
	}
	if variant == "" {
		return nil, ErrVariantRequired
	}
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	if attempts < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAttempts, attempts)
	}

	now := time.Now().UTC()
	return &Deployment{
		ID:           uuid.NewString(),
		ArtifactPath: artifactPath,
		ContextPath:  contextPath,
		Variant:      variant,
		Status:       StatusPending,
		Attempts:     attempts,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// transition moves the deployment to a new status, enforcing that terminal
// states are final.
func (d *Deployment) transition(to DeploymentStatus) error {
	if d.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	now := time.Now().UTC()
	d.Status = to
	d.UpdatedAt = now
	if to.IsTerminal() {
		d.FinishedAt = &now
	}
	return nil
}

// MarkDeploying marks the deployment as dispatched to the agent.
func (d *Deployment) MarkDeploying() error {
	return d.transition(StatusDeploying)
}

// MarkSucceeded records a successful deployment.
func (d *Deployment) MarkSucceeded(attemptsUsed int) error {
	d.AttemptsUsed = attemptsUsed
	return d.transition(StatusSucceeded)
}

// MarkSkipped records that the artifact file was missing and the
// deployment was logged and skipped rather than failed.
func (d *Deployment) MarkSkipped() error {
	return d.transition(StatusSkipped)
}

// MarkCancelled records that retrying was abandoned on interruption.
func (d *Deployment) MarkCancelled(attemptsUsed int) error {
	d.AttemptsUsed = attemptsUsed
	return d.transition(StatusCancelled)
}

// MarkFailed records a terminal failure with the underlying error message.
func (d *Deployment) MarkFailed(attemptsUsed int, message string) error {
	d.AttemptsUsed = attemptsUsed
	d.Error = message
	return d.transition(StatusFailed)
}
