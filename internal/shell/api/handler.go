// Package api provides the HTTP surface of the control plane: triggering
// deployments and querying deployment history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carrackhq/carrack/internal/core/domain"
	"github.com/carrackhq/carrack/internal/shell/container"
	"github.com/carrackhq/carrack/internal/shell/deployer"
	"github.com/carrackhq/carrack/internal/shell/store"
)

// =============================================================================
// Router Setup
// =============================================================================

// Runner executes one deployment request end to end. Satisfied by
// deployer.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req deployer.Request) (*domain.Deployment, error)
}

// Config holds dependencies for the API router.
type Config struct {
	Store  store.Store
	Runner Runner
	Logger *slog.Logger
}

// NewRouter creates the API router.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &handler{
		store:  cfg.Store,
		runner: cfg.Runner,
		logger: cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoveryMiddleware(cfg.Logger))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/deployments", h.createDeployment)
		r.Get("/deployments", h.listDeployments)
		r.Get("/deployments/{id}", h.getDeployment)
		r.Get("/variants", h.listVariants)
	})

	return r
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err)
					writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Handlers
// =============================================================================

type handler struct {
	store  store.Store
	runner Runner
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// deployRequestBody is the JSON body accepted by POST /api/v1/deployments.
type deployRequestBody struct {
	ArtifactPath string            `json:"artifact_path"`
	ContextPath  string            `json:"context_path,omitempty"`
	Variant      string            `json:"variant"`
	NodeName     string            `json:"node_name,omitempty"`
	Attempts     int               `json:"attempts,omitempty"`
	Environment  map[string]string `json:"environment,omitempty"`
	Settings     map[string]string `json:"settings,omitempty"`
}

func (h *handler) createDeployment(w http.ResponseWriter, r *http.Request) {
	var body deployRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	record, err := h.runner.Run(r.Context(), deployer.Request{
		ArtifactPath: body.ArtifactPath,
		ContextPath:  body.ContextPath,
		Variant:      body.Variant,
		Attempts:     body.Attempts,
		NodeName:     body.NodeName,
		Environment:  body.Environment,
		Settings:     body.Settings,
	})
	if err != nil {
		if record == nil {
			status := http.StatusInternalServerError
			if isValidationError(err) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		// The deployment ran and failed; the record carries the diagnostic.
		writeJSON(w, http.StatusBadGateway, record)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *handler) getDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.store.GetDeployment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "deployment not found")
			return
		}
		h.logger.Error("failed to load deployment", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load deployment")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *handler) listDeployments(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		Status:   domain.DeploymentStatus(r.URL.Query().Get("status")),
		NodeName: r.URL.Query().Get("node"),
	}
	if opts.Status != "" && !opts.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown status: "+string(opts.Status))
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		opts.Limit = limit
	}

	records, err := h.store.ListDeployments(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deployments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deployments": records})
}

func (h *handler) listVariants(w http.ResponseWriter, r *http.Request) {
	variants := container.Variants()
	slices.Sort(variants)
	writeJSON(w, http.StatusOK, map[string]any{"variants": variants})
}

// =============================================================================
// Helpers
// =============================================================================

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrArtifactRequired) ||
		errors.Is(err, domain.ErrVariantRequired) ||
		errors.Is(err, domain.ErrInvalidAttempts)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
