package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/GlycoKeeper/internal/chart"
	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// Default time-in-range band in mg/dL, used when the profile sets none.
const (
	DefaultTargetMin = 70
	DefaultTargetMax = 180
)

// GlycemiaRepository defines the persistence operations on readings.
type GlycemiaRepository interface {
	// InsertEntries stores entries atomically.
	InsertEntries(ctx context.Context, userID string, entries []models.GlycemiaEntry) error
	// ListEntries returns the readings measured in [from, to), oldest first.
	ListEntries(ctx context.Context, userID string, from, to time.Time) ([]models.GlycemiaEntry, error)
	// LatestEntry returns models.ErrNotFound when the user has no readings.
	LatestEntry(ctx context.Context, userID string) (*models.GlycemiaEntry, error)
}

// ProfileReader gives access to the user's target band.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// GlycemiaService records readings and computes their statistics.
type GlycemiaService struct {
	repo     GlycemiaRepository
	profiles ProfileReader
	now      func() time.Time
}

// NewGlycemiaService constructs a GlycemiaService.
func NewGlycemiaService(repo GlycemiaRepository, profiles ProfileReader) *GlycemiaService {
	return &GlycemiaService{repo: repo, profiles: profiles, now: time.Now}
}

// Create stores a manual reading.
func (s *GlycemiaService) Create(ctx context.Context, userID string, in models.NewEntry) (*models.GlycemiaEntry, error) {
	entries := s.build([]models.NewEntry{in}, models.SourceManual)
	if err := s.repo.InsertEntries(ctx, userID, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Import stores a batch of readings coming from a continuous monitor.
func (s *GlycemiaService) Import(ctx context.Context, userID string, in []models.NewEntry) (int, error) {
	entries := s.build(in, models.SourceCGM)
	if err := s.repo.InsertEntries(ctx, userID, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *GlycemiaService) build(in []models.NewEntry, src models.Source) []models.GlycemiaEntry {
	out := make([]models.GlycemiaEntry, 0, len(in))
	for _, e := range in {
		out = append(out, models.GlycemiaEntry{
			ID:         uuid.NewString(),
			Value:      e.Value,
			MeasuredAt: e.MeasuredAt.UTC(),
			Context:    e.Context,
			Source:     src,
			Notes:      e.Notes,
		})
	}
	return out
}

// List returns the readings of the period ending now.
func (s *GlycemiaService) List(ctx context.Context, userID string, period chart.Period) ([]models.GlycemiaEntry, error) {
	to := s.now()
	return s.repo.ListEntries(ctx, userID, to.Add(-period.Window()), to)
}

// Latest returns the most recent reading.
func (s *GlycemiaService) Latest(ctx context.Context, userID string) (*models.GlycemiaEntry, error) {
	return s.repo.LatestEntry(ctx, userID)
}

// Stats computes the statistics of the period ending now against the
// user's target band.
func (s *GlycemiaService) Stats(ctx context.Context, userID string, period chart.Period) (*models.GlycemiaStats, error) {
	entries, err := s.List(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	lo, hi := DefaultTargetMin, DefaultTargetMax
	p, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		if p.TargetMin > 0 && p.TargetMax > p.TargetMin {
			lo, hi = p.TargetMin, p.TargetMax
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	st := ComputeStats(entries, lo, hi)
	st.Period = string(period)
	return &st, nil
}

// ComputeStats aggregates entries against the inclusive band [lo, hi].
func ComputeStats(entries []models.GlycemiaEntry, lo, hi int) models.GlycemiaStats {
	st := models.GlycemiaStats{TargetMin: lo, TargetMax: hi, Count: len(entries)}
	if len(entries) == 0 {
		return st
	}

	sum, in := 0, 0
	st.Min, st.Max = entries[0].Value, entries[0].Value
	for _, e := range entries {
		sum += e.Value
		st.Min = min(st.Min, e.Value)
		st.Max = max(st.Max, e.Value)
		switch {
		case e.Value < lo:
			st.Below++
		case e.Value > hi:
			st.Above++
		default:
			in++
		}
	}
	st.Average = float64(sum) / float64(len(entries))
	st.TimeInRange = float64(in) / float64(len(entries))
	return st
}
