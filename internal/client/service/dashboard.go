package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// ErrModuleUnavailable is returned for a module missing from a summary.
var ErrModuleUnavailable = errors.New("module unavailable")

// Summary is the dashboard aggregate. A module is either in Modules or in Errors.
type Summary struct {
	Modules map[models.Module]models.ModuleSnapshot
	Errors  map[models.Module]error
}

// Glucose decodes the glucose module.
func (s Summary) Glucose() (*models.GlucoseSnapshot, error) {
	snap, ok := s.Modules[models.ModuleGlucose]
	if !ok {
		if err := s.Errors[models.ModuleGlucose]; err != nil {
			return nil, err
		}
		return nil, ErrModuleUnavailable
	}
	var g models.GlucoseSnapshot
	if err := json.Unmarshal(snap.Data, &g); err != nil {
		return nil, fmt.Errorf("decode glucose module: %w", err)
	}
	return &g, nil
}

// DashboardService aggregates the dashboard modules.
type DashboardService struct {
	api Doer
}

// NewDashboardService returns a DashboardService using api.
func NewDashboardService(api Doer) *DashboardService {
	return &DashboardService{api: api}
}

// Module fetches one module snapshot.
func (d *DashboardService) Module(ctx context.Context, m models.Module) (*models.ModuleSnapshot, error) {
	var snap models.ModuleSnapshot
	if err := d.api.Do(ctx, http.MethodGet, "/dashboard/"+string(m), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Push stores data as the snapshot of module m. data must encode to a JSON value.
func (d *DashboardService) Push(ctx context.Context, m models.Module, data any) (*models.ModuleSnapshot, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown module %q", m)
	}
	var snap models.ModuleSnapshot
	if err := d.api.Do(ctx, http.MethodPut, "/dashboard/"+string(m), data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear drops the stored snapshot of module m.
func (d *DashboardService) Clear(ctx context.Context, m models.Module) error {
	return d.api.Do(ctx, http.MethodDelete, "/dashboard/"+string(m), nil, nil)
}

// Summary fetches every dashboard module concurrently. A failing module is
// recorded in Errors and never fails the whole summary.
func (d *DashboardService) Summary(ctx context.Context) Summary {
	sum := Summary{
		Modules: make(map[models.Module]models.ModuleSnapshot, len(models.DashboardModules)),
		Errors:  make(map[models.Module]error),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, m := range models.DashboardModules {
		wg.Add(1)
		go func(m models.Module) {
			defer wg.Done()
			snap, err := d.Module(ctx, m)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Errors[m] = err
				return
			}
			sum.Modules[m] = *snap
		}(m)
	}
	wg.Wait()
	return sum
}
