package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carrackhq/carrack/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface
// =============================================================================

// executor abstracts database operations shared by connections and
// transactions.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Deployment Operations
// =============================================================================

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	ID           string  `db:"id"`
	ArtifactPath string  `db:"artifact_path"`
	ContextPath  string  `db:"context_path"`
	Variant      string  `db:"variant"`
	NodeName     string  `db:"node_name"`
	Status       string  `db:"status"`
	Attempts     int     `db:"attempts"`
	AttemptsUsed int     `db:"attempts_used"`
	ErrorMessage string  `db:"error_message"`
	Environment  *string `db:"environment"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	FinishedAt   *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *domain.Deployment) error {
	return createDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, d *domain.Deployment) error {
	return updateDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]*domain.Deployment, error) {
	return listDeployments(ctx, s.db, opts)
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createDeployment(ctx context.Context, exec executor, d *domain.Deployment) error {
	envJSON, err := json.Marshal(d.Environment)
	if err != nil {
		return NewStoreError("CreateDeployment", "deployment", d.ID, "failed to serialize environment", ErrInvalidData)
	}

	query := `
		INSERT INTO deployments (
			id, artifact_path, context_path, variant, node_name, status,
			attempts, attempts_used, error_message, environment,
			created_at, updated_at, finished_at
		) VALUES (
			:id, :artifact_path, :context_path, :variant, :node_name, :status,
			:attempts, :attempts_used, :error_message, :environment,
			:created_at, :updated_at, :finished_at
		)`

	row := map[string]any{
		"id":            d.ID,
		"artifact_path": d.ArtifactPath,
		"context_path":  d.ContextPath,
		"variant":       d.Variant,
		"node_name":     d.NodeName,
		"status":        string(d.Status),
		"attempts":      d.Attempts,
		"attempts_used": d.AttemptsUsed,
		"error_message": d.Error,
		"environment":   string(envJSON),
		"created_at":    d.CreatedAt.Format(time.RFC3339),
		"updated_at":    d.UpdatedAt.Format(time.RFC3339),
		"finished_at":   formatNullableTime(d.FinishedAt),
	}

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", d.ID, "deployment with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDeployment", "deployment", d.ID, err.Error(), err)
	}

	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE id = ?`

	var row deploymentRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}

	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, exec executor, d *domain.Deployment) error {
	envJSON, err := json.Marshal(d.Environment)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, "failed to serialize environment", ErrInvalidData)
	}

	query := `
		UPDATE deployments SET
			artifact_path = :artifact_path,
			context_path = :context_path,
			variant = :variant,
			node_name = :node_name,
			status = :status,
			attempts = :attempts,
			attempts_used = :attempts_used,
			error_message = :error_message,
			environment = :environment,
			updated_at = :updated_at,
			finished_at = :finished_at
		WHERE id = :id`

	row := map[string]any{
		"id":            d.ID,
		"artifact_path": d.ArtifactPath,
		"context_path":  d.ContextPath,
		"variant":       d.Variant,
		"node_name":     d.NodeName,
		"status":        string(d.Status),
		"attempts":      d.Attempts,
		"attempts_used": d.AttemptsUsed,
		"error_message": d.Error,
		"environment":   string(envJSON),
		"updated_at":    d.UpdatedAt.Format(time.RFC3339),
		"finished_at":   formatNullableTime(d.FinishedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, "deployment not found", ErrNotFound)
	}

	return nil
}

func listDeployments(ctx context.Context, exec executor, opts ListOptions) ([]*domain.Deployment, error) {
	query := `SELECT * FROM deployments`
	conditions := []string{}
	args := []any{}

	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.NodeName != "" {
		conditions = append(conditions, "node_name = ?")
		args = append(args, opts.NodeName)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []deploymentRow
	err := exec.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, NewStoreError("ListDeployments", "deployment", "", err.Error(), err)
	}

	deployments := make([]*domain.Deployment, 0, len(rows))
	for i := range rows {
		d, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}

	return deployments, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	d := &domain.Deployment{
		ID:           row.ID,
		ArtifactPath: row.ArtifactPath,
		ContextPath:  row.ContextPath,
		Variant:      row.Variant,
		NodeName:     row.NodeName,
		Status:       domain.DeploymentStatus(row.Status),
		Attempts:     row.Attempts,
		AttemptsUsed: row.AttemptsUsed,
		Error:        row.ErrorMessage,
	}

	if row.Environment != nil && *row.Environment != "" {
		if err := json.Unmarshal([]byte(*row.Environment), &d.Environment); err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "failed to deserialize environment", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "invalid created_at timestamp", ErrInvalidData)
	}
	d.CreatedAt = createdAt

	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "invalid updated_at timestamp", ErrInvalidData)
	}
	d.UpdatedAt = updatedAt

	if row.FinishedAt != nil && *row.FinishedAt != "" {
		finishedAt, err := time.Parse(time.RFC3339, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "invalid finished_at timestamp", ErrInvalidData)
		}
		d.FinishedAt = &finishedAt
	}

	return d, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
