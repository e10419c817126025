// Package chart turns raw glucose readings into the label/value series
// consumed by chart widgets.
package chart

import (
	"fmt"
	"sort"
	"time"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// Period selects the time window a chart covers.
type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

const (
	// SamplingCap is the maximum number of points rendered for multi-day periods.
	SamplingCap = 10
	// PlaceholderLabel and PlaceholderValue form the single point returned for empty input.
	PlaceholderLabel = "--"
	PlaceholderValue = 0
)

// ParsePeriod validates a period selector.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Day, Week, Month:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q (want day, week or month)", s)
	}
}

// Window returns the span of time a period covers, ending now.
func (p Period) Window() time.Duration {
	switch p {
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Data is a chart series. Labels and Values always have the same, non-zero length.
type Data struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Len returns the number of points.
func (d Data) Len() int { return len(d.Values) }

// Placeholder returns the single-point series used when there is nothing to draw.
func Placeholder() Data {
	return Data{Labels: []string{PlaceholderLabel}, Values: []int{PlaceholderValue}}
}

// TransformForChart sorts entries chronologically and shapes them for period.
// Day charts keep every reading labelled by hour; week and month charts are
// reduced to at most SamplingCap points labelled by date. Labels use the
// local time zone. The input slice is not modified.
func TransformForChart(entries []models.GlycemiaEntry, period Period) Data {
	return TransformForChartIn(entries, period, time.Local)
}

// TransformForChartIn is TransformForChart with labels rendered in loc.
func TransformForChartIn(entries []models.GlycemiaEntry, period Period, loc *time.Location) Data {
	if len(entries) == 0 {
		return Placeholder()
	}

	sorted := make([]models.GlycemiaEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MeasuredAt.Before(sorted[j].MeasuredAt)
	})

	if period == Day {
		out := Data{
			Labels: make([]string, 0, len(sorted)),
			Values: make([]int, 0, len(sorted)),
		}
		for _, e := range sorted {
			out.Labels = append(out.Labels, hourLabel(e.MeasuredAt.In(loc)))
			out.Values = append(out.Values, e.Value)
		}
		return out
	}

	idx := sampleIndices(len(sorted), SamplingCap)
	out := Data{
		Labels: make([]string, 0, len(idx)),
		Values: make([]int, 0, len(idx)),
	}
	for _, i := range idx {
		out.Labels = append(out.Labels, dateLabel(sorted[i].MeasuredAt.In(loc)))
		out.Values = append(out.Values, sorted[i].Value)
	}
	return out
}

// sampleIndices picks at most limit indices spread uniformly over [0, n),
// always including the first and the last one.
func sampleIndices(n, limit int) []int {
	if n <= limit {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, limit)
	for i := range idx {
		idx[i] = i * (n - 1) / (limit - 1)
	}
	return idx
}

func hourLabel(t time.Time) string {
	return fmt.Sprintf("%dh", t.Hour())
}

func dateLabel(t time.Time) string {
	return t.Format("02/01")
}
