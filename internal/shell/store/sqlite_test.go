package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrackhq/carrack/internal/core/domain"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func testDeployment(t *testing.T) *domain.Deployment {
	t.Helper()

	d, err := domain.NewDeployment("/builds/shop.war", "/shop", "tomcat9x", 4)
	require.NoError(t, err)
	d.NodeName = "app-01"
	d.Environment = map[string]string{"BUILD_NUMBER": "42"}
	return d
}

func TestSQLiteStore_CreateAndGetDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, d))

	got, err := s.GetDeployment(ctx, d.ID)
	require.NoError(t, err)

	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "/builds/shop.war", got.ArtifactPath)
	assert.Equal(t, "/shop", got.ContextPath)
	assert.Equal(t, "tomcat9x", got.Variant)
	assert.Equal(t, "app-01", got.NodeName)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, map[string]string{"BUILD_NUMBER": "42"}, got.Environment)
	assert.Nil(t, got.FinishedAt)
}

func TestSQLiteStore_CreateDeployment_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, d))

	err := s.CreateDeployment(ctx, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestSQLiteStore_GetDeployment_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetDeployment(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, d))

	require.NoError(t, d.MarkDeploying())
	require.NoError(t, d.MarkSucceeded(2))
	require.NoError(t, s.UpdateDeployment(ctx, d))

	got, err := s.GetDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	assert.Equal(t, 2, got.AttemptsUsed)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.FinishedAt, time.Minute)
}

func TestSQLiteStore_UpdateDeployment_NotFound(t *testing.T) {
	s := setupTestStore(t)

	d := testDeployment(t)
	err := s.UpdateDeployment(context.Background(), d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateDeployment_RecordsError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, d))

	require.NoError(t, d.MarkDeploying())
	require.NoError(t, d.MarkFailed(4, "manager returned FAIL - Deployed application at context path /shop but context failed to start"))
	require.NoError(t, s.UpdateDeployment(ctx, d))

	got, err := s.GetDeployment(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, 4, got.AttemptsUsed)
	assert.Contains(t, got.Error, "context failed to start")
}

func TestSQLiteStore_ListDeployments(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, first))

	second, err := domain.NewDeployment("/builds/billing.ear", "", "wildfly31x", 1)
	require.NoError(t, err)
	second.NodeName = "app-02"
	second.CreatedAt = second.CreatedAt.Add(time.Second)
	require.NoError(t, s.CreateDeployment(ctx, second))

	all, err := s.ListDeployments(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestSQLiteStore_ListDeployments_Filters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	d := testDeployment(t)
	require.NoError(t, s.CreateDeployment(ctx, d))

	other, err := domain.NewDeployment("/builds/billing.ear", "", "wildfly31x", 1)
	require.NoError(t, err)
	other.NodeName = "app-02"
	require.NoError(t, other.MarkDeploying())
	require.NoError(t, other.MarkSucceeded(1))
	require.NoError(t, s.CreateDeployment(ctx, other))

	byStatus, err := s.ListDeployments(ctx, ListOptions{Status: domain.StatusSucceeded})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, other.ID, byStatus[0].ID)

	byNode, err := s.ListDeployments(ctx, ListOptions{NodeName: "app-01"})
	require.NoError(t, err)
	require.Len(t, byNode, 1)
	assert.Equal(t, d.ID, byNode[0].ID)

	limited, err := s.ListDeployments(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
