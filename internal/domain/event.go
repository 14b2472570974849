package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Location is a WGS-84 point with an optional hypocenter depth in kilometers.
type Location struct {
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Depth *float64 `json:"depth_km,omitempty"`
}

// Point returns the location as an orb point in lon/lat order.
func (l Location) Point() orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// DepthOrZero returns the depth in kilometers, or 0 when the catalog omitted it.
func (l Location) DepthOrZero() float64 {
	if l.Depth == nil {
		return 0
	}
	return *l.Depth
}

// HazardEvent is one catalog record after mapping. Values are never mutated in
// place; a new fetch replaces the whole collection.
type HazardEvent struct {
	ID            string    `json:"id"`
	Location      Location  `json:"location"`
	Magnitude     float64   `json:"magnitude"`
	OccurredAt    time.Time `json:"occurred_at"`
	Place         string    `json:"place,omitempty"`
	DetailURL     string    `json:"detail_url,omitempty"`
	Status        string    `json:"status,omitempty"`
	MagnitudeType string    `json:"magnitude_type,omitempty"`
}

// Severity classifies the event by magnitude.
func (e HazardEvent) Severity() SeverityClass {
	return Classify(e.Magnitude)
}

// FetchParams describes one catalog query.
type FetchParams struct {
	Start        time.Time `json:"start_date"`
	End          time.Time `json:"end_date"`
	MinMagnitude float64   `json:"min_magnitude"`
	Region       Region    `json:"region"`
}

// Validate checks that the date range is ordered.
func (p FetchParams) Validate() error {
	if p.Start.After(p.End) {
		return &InvalidRangeError{Start: p.Start, End: p.End}
	}
	return nil
}

// FetchRange records the parameters of the fetch that produced the current
// collection, and when it was committed.
type FetchRange struct {
	Params   FetchParams `json:"params"`
	LoadedAt time.Time   `json:"loaded_at"`
}
