package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GlycoKeeper/internal/middleware"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// DashboardService defines the module operations required by DashboardHandler.
type DashboardService interface {
	Module(ctx context.Context, userID string, m models.Module) (*models.ModuleSnapshot, error)
	PutModule(ctx context.Context, userID string, m models.Module, data json.RawMessage) (*models.ModuleSnapshot, error)
	ClearModule(ctx context.Context, userID string, m models.Module) error
}

// DashboardHandler serves /dashboard/{module}.
type DashboardHandler struct {
	DashboardService DashboardService
}

func moduleParam(r *http.Request) models.Module {
	return models.Module(chi.URLParam(r, "module"))
}

// Get handles GET /dashboard/{module}.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.DashboardService.Module(r.Context(), middleware.GetUserIDFromContext(r.Context()), moduleParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Put handles PUT /dashboard/{module}. The body is stored as the module data.
func (h *DashboardHandler) Put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !json.Valid(data) {
		writeError(w, http.StatusBadRequest, "invalid body: module data must be JSON")
		return
	}
	snap, err := h.DashboardService.PutModule(r.Context(), middleware.GetUserIDFromContext(r.Context()), moduleParam(r), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Delete handles DELETE /dashboard/{module}.
func (h *DashboardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.DashboardService.ClearModule(r.Context(), middleware.GetUserIDFromContext(r.Context()), moduleParam(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
