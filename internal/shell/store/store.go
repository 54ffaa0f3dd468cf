package store

import (
	"context"

	"github.com/carrackhq/carrack/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// ListOptions filters deployment listings.
type ListOptions struct {
	// Status filters by deployment status when non-empty.
	Status domain.DeploymentStatus

	// NodeName filters by target node when non-empty.
	NodeName string

	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
}

// Store defines the persistence interface for deployment history.
type Store interface {
	// CreateDeployment persists a new deployment record.
	CreateDeployment(ctx context.Context, d *domain.Deployment) error

	// GetDeployment retrieves a deployment by ID.
	// Returns ErrNotFound if no record exists.
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)

	// UpdateDeployment persists the current state of an existing record.
	UpdateDeployment(ctx context.Context, d *domain.Deployment) error

	// ListDeployments returns deployment records matching opts, newest first.
	ListDeployments(ctx context.Context, opts ListOptions) ([]*domain.Deployment, error)

	// Close releases database resources.
	Close() error
}
