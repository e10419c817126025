package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/middleware"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// GlycemiaService defines the reading operations required by GlycemiaHandler.
type GlycemiaService interface {
	Create(ctx context.Context, userID string, in models.NewEntry) (*models.GlycemiaEntry, error)
	Import(ctx context.Context, userID string, in []models.NewEntry) (int, error)
	List(ctx context.Context, userID string, period chart.Period) ([]models.GlycemiaEntry, error)
	Latest(ctx context.Context, userID string) (*models.GlycemiaEntry, error)
	Stats(ctx context.Context, userID string, period chart.Period) (*models.GlycemiaStats, error)
}

// GlycemiaHandler serves the /glycemia endpoints.
type GlycemiaHandler struct {
	GlycemiaService GlycemiaService
}

type importRequest struct {
	Entries []models.NewEntry `json:"entries" validate:"min=1,max=1000,dive"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

// periodParam reads ?period=, defaulting to day.
func periodParam(r *http.Request) (chart.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return chart.Day, nil
	}
	return chart.ParsePeriod(raw)
}

// List handles GET /glycemia?period=day|week|month.
func (h *GlycemiaHandler) List(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.GlycemiaService.List(r.Context(), middleware.GetUserIDFromContext(r.Context()), period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.GlycemiaEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Create handles POST /glycemia.
func (h *GlycemiaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.NewEntry
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.GlycemiaService.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Import handles POST /glycemia/cgm.
func (h *GlycemiaHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.GlycemiaService.Import(r.Context(), middleware.GetUserIDFromContext(r.Context()), req.Entries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Imported: n})
}

// Latest handles GET /glycemia/latest. It answers 404 when there are no readings.
func (h *GlycemiaHandler) Latest(w http.ResponseWriter, r *http.Request) {
	entry, err := h.GlycemiaService.Latest(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no readings yet")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Stats handles GET /glycemia/stats?period=.
func (h *GlycemiaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.GlycemiaService.Stats(r.Context(), middleware.GetUserIDFromContext(r.Context()), period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
