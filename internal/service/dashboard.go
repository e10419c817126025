package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

var (
	// ErrUnknownModule is returned for a module name outside models.DashboardModules.
	ErrUnknownModule = errors.New("unknown dashboard module")
	// ErrReadOnlyModule is returned when writing a module computed from readings.
	ErrReadOnlyModule = errors.New("module is computed and cannot be written")
)

// SnapshotRepository stores the modules other systems push to the dashboard.
type SnapshotRepository interface {
	// GetSnapshot returns models.ErrNotFound if nothing was pushed yet.
	GetSnapshot(ctx context.Context, userID string, module models.Module) (*models.ModuleSnapshot, error)
	PutSnapshot(ctx context.Context, userID string, snap models.ModuleSnapshot) error
	DeleteSnapshots(ctx context.Context, userID string, modules []models.Module) error
}

// GlucoseSource is the part of GlycemiaService the dashboard needs.
type GlucoseSource interface {
	Latest(ctx context.Context, userID string) (*models.GlycemiaEntry, error)
	Stats(ctx context.Context, userID string, period chart.Period) (*models.GlycemiaStats, error)
}

// DashboardService serves dashboard module snapshots. The glucose module is
// recomputed on every request; the others are stored as pushed.
type DashboardService struct {
	repo    SnapshotRepository
	glucose GlucoseSource
	now     func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo SnapshotRepository, glucose GlucoseSource) *DashboardService {
	return &DashboardService{repo: repo, glucose: glucose, now: time.Now}
}

// Module returns the current snapshot of m.
func (s *DashboardService) Module(ctx context.Context, userID string, m models.Module) (*models.ModuleSnapshot, error) {
	if !m.Valid() {
		return nil, ErrUnknownModule
	}
	if m != models.ModuleGlucose {
		return s.repo.GetSnapshot(ctx, userID, m)
	}

	latest, err := s.glucose.Latest(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	stats, err := s.glucose.Stats(ctx, userID, chart.Day)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(models.GlucoseSnapshot{Latest: latest, Stats: *stats})
	if err != nil {
		return nil, fmt.Errorf("encode glucose snapshot: %w", err)
	}
	return &models.ModuleSnapshot{Module: m, Data: data, UpdatedAt: s.now().UTC()}, nil
}

// PutModule stores a pushed snapshot for m.
func (s *DashboardService) PutModule(ctx context.Context, userID string, m models.Module, data json.RawMessage) (*models.ModuleSnapshot, error) {
	if !m.Valid() {
		return nil, ErrUnknownModule
	}
	if m == models.ModuleGlucose {
		return nil, ErrReadOnlyModule
	}
	if !json.Valid(data) {
		return nil, errors.New("snapshot data is not valid JSON")
	}
	snap := models.ModuleSnapshot{Module: m, Data: data, UpdatedAt: s.now().UTC()}
	if err := s.repo.PutSnapshot(ctx, userID, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ClearModule drops the stored snapshot of m. Clearing a module that holds
// nothing is not an error.
func (s *DashboardService) ClearModule(ctx context.Context, userID string, m models.Module) error {
	if !m.Valid() {
		return ErrUnknownModule
	}
	if m == models.ModuleGlucose {
		return ErrReadOnlyModule
	}
	return s.repo.DeleteSnapshots(ctx, userID, []models.Module{m})
}
