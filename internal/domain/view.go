package domain

import (
	"math"
	"time"
)

// RecentWindow is the look-back used for the recent activity count.
const RecentWindow = 30 * 24 * time.Hour

// FilterState is the current UI selection. A zero StartDate or EndDate leaves
// that side of the date range open.
type FilterState struct {
	StartDate    time.Time
	EndDate      time.Time
	MinMagnitude float64
	Region       Region
	Classes      ClassSet
}

// DefaultFilter shows every class for the real-time preset range ending today.
func DefaultFilter(now time.Time) FilterState {
	p := LatestParams(now)
	return FilterState{
		StartDate:    p.Start,
		EndDate:      p.End,
		MinMagnitude: p.MinMagnitude,
		Region:       p.Region,
		Classes:      AllClassSet(),
	}
}

// Matches reports whether the event passes every predicate of the filter.
func (f FilterState) Matches(e HazardEvent) bool {
	if !f.Classes.Has(Classify(e.Magnitude)) {
		return false
	}
	if e.Magnitude < f.MinMagnitude {
		return false
	}
	if !f.StartDate.IsZero() && e.OccurredAt.Before(CalendarDay(f.StartDate)) {
		return false
	}
	// End date is inclusive: anything before the following midnight passes.
	if !f.EndDate.IsZero() && !e.OccurredAt.Before(CalendarDay(f.EndDate).AddDate(0, 0, 1)) {
		return false
	}
	return f.Region.Contains(e.Location)
}

// Statistics summarize the full fetched set.
type Statistics struct {
	TotalCount       int     `json:"total"`
	CriticalCount    int     `json:"critical"`
	AverageMagnitude float64 `json:"average_magnitude"`
}

// View is the visible subset of events plus catalog-wide statistics.
type View struct {
	Visible []HazardEvent
	Stats   Statistics
}

// ComputeView filters events by f, preserving order. Stats cover all events
// regardless of the filter.
func ComputeView(events []HazardEvent, f FilterState) View {
	visible := make([]HazardEvent, 0, len(events))
	for _, e := range events {
		if f.Matches(e) {
			visible = append(visible, e)
		}
	}
	return View{Visible: visible, Stats: ComputeStatistics(events)}
}

// ComputeStatistics counts events, counts CRITICAL ones and averages the
// magnitude rounded to one decimal. An empty set yields all zeros.
func ComputeStatistics(events []HazardEvent) Statistics {
	if len(events) == 0 {
		return Statistics{}
	}
	var sum float64
	critical := 0
	for _, e := range events {
		sum += e.Magnitude
		if e.Magnitude >= CriticalMagnitude {
			critical++
		}
	}
	return Statistics{
		TotalCount:       len(events),
		CriticalCount:    critical,
		AverageMagnitude: roundTenth(sum / float64(len(events))),
	}
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// ActivitySummary is logged after each load.
type ActivitySummary struct {
	MajorCount  int
	RecentCount int
}

// SummarizeActivity counts major events and events newer than RecentWindow
// before now.
func SummarizeActivity(events []HazardEvent, now time.Time) ActivitySummary {
	cutoff := now.Add(-RecentWindow)
	var s ActivitySummary
	for _, e := range events {
		if e.Magnitude >= CriticalMagnitude {
			s.MajorCount++
		}
		if e.OccurredAt.After(cutoff) {
			s.RecentCount++
		}
	}
	return s
}
