// Package service holds the client-side wrappers around the backend
// endpoints: glucose readings, dashboard modules and user profile data.
package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/client/api"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// Doer sends a JSON request to the backend; *api.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// GlycemiaService reads and records glucose readings.
type GlycemiaService struct {
	api Doer
	// loc is the zone chart labels are rendered in.
	loc *time.Location
}

// NewGlycemiaService returns a GlycemiaService using api.
func NewGlycemiaService(api Doer) *GlycemiaService {
	return &GlycemiaService{api: api, loc: time.Local}
}

// List returns the readings of the given period, in backend order.
func (s *GlycemiaService) List(ctx context.Context, period chart.Period) ([]models.GlycemiaEntry, error) {
	var entries []models.GlycemiaEntry
	path := "/glycemia?" + url.Values{"period": {string(period)}}.Encode()
	if err := s.api.Do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Create records a manual reading.
func (s *GlycemiaService) Create(ctx context.Context, e models.NewEntry) (*models.GlycemiaEntry, error) {
	if err := validate.Struct(e); err != nil {
		return nil, fmt.Errorf("invalid reading: %w", err)
	}
	var created models.GlycemiaEntry
	if err := s.api.Do(ctx, http.MethodPost, "/glycemia", e, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

type importRequest struct {
	Entries []models.NewEntry `json:"entries" validate:"min=1,max=1000,dive"`
}

type importResponse struct {
	Imported int `json:"imported"`
}

// ImportCGM uploads a batch of readings from a continuous monitor and
// returns how many the backend stored.
func (s *GlycemiaService) ImportCGM(ctx context.Context, entries []models.NewEntry) (int, error) {
	req := importRequest{Entries: entries}
	if err := validate.Struct(req); err != nil {
		return 0, fmt.Errorf("invalid batch: %w", err)
	}
	var resp importResponse
	if err := s.api.Do(ctx, http.MethodPost, "/glycemia/cgm", req, &resp); err != nil {
		return 0, err
	}
	return resp.Imported, nil
}

// Latest returns the most recent reading, or nil when there is none.
func (s *GlycemiaService) Latest(ctx context.Context) (*models.GlycemiaEntry, error) {
	var e models.GlycemiaEntry
	if err := s.api.Do(ctx, http.MethodGet, "/glycemia/latest", nil, &e); err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Stats returns the aggregates the backend computed for period.
func (s *GlycemiaService) Stats(ctx context.Context, period chart.Period) (*models.GlycemiaStats, error) {
	var st models.GlycemiaStats
	path := "/glycemia/stats?" + url.Values{"period": {string(period)}}.Encode()
	if err := s.api.Do(ctx, http.MethodGet, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Chart fetches the readings of period and shapes them for display. On
// failure the placeholder series is returned together with the error so
// callers can still draw something.
func (s *GlycemiaService) Chart(ctx context.Context, period chart.Period) (chart.Data, error) {
	entries, err := s.List(ctx, period)
	if err != nil {
		return chart.Placeholder(), err
	}
	return chart.TransformForChartIn(entries, period, s.loc), nil
}
