package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotFeatureCollection is returned when a catalog body parses as JSON but
// does not carry a features array.
var ErrNotFeatureCollection = errors.New("response is not a feature collection")

// FeedCollection is the GeoJSON envelope returned by the catalog.
type FeedCollection struct {
	Type     string        `json:"type"`
	Features []FeedFeature `json:"features"`
}

// FeedFeature is one catalog feature before mapping.
type FeedFeature struct {
	ID         string         `json:"id"`
	Properties FeedProperties `json:"properties"`
	Geometry   FeedGeometry   `json:"geometry"`
}

// FeedProperties holds the subset of catalog properties the dashboard uses.
type FeedProperties struct {
	Mag     *float64 `json:"mag"`
	Time    *int64   `json:"time"` // epoch milliseconds
	Place   string   `json:"place"`
	URL     string   `json:"url"`
	MagType string   `json:"magType"`
	Status  string   `json:"status"`
}

// FeedGeometry is a point in [lon, lat, depthKm] order; depth may be absent.
type FeedGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ParseFeatureCollection decodes a catalog body and maps every feature to a
// HazardEvent. Features are never dropped for missing fields: a missing
// magnitude becomes 0, a missing time the zero time, missing coordinates the
// zero location.
func ParseFeatureCollection(data []byte) ([]HazardEvent, error) {
	var fc FeedCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if fc.Features == nil || (fc.Type != "" && fc.Type != "FeatureCollection") {
		return nil, ErrNotFeatureCollection
	}

	events := make([]HazardEvent, 0, len(fc.Features))
	for _, f := range fc.Features {
		events = append(events, MapFeature(f))
	}
	return events, nil
}

// MapFeature converts a single catalog feature into a HazardEvent.
func MapFeature(f FeedFeature) HazardEvent {
	magnitude := magnitudeOrZero(f.Properties.Mag)

	var occurred time.Time
	if f.Properties.Time != nil {
		occurred = time.UnixMilli(*f.Properties.Time).UTC()
	}

	var loc Location
	coords := f.Geometry.Coordinates
	if len(coords) >= 2 {
		loc.Lon = coords[0]
		loc.Lat = coords[1]
	}
	if len(coords) >= 3 {
		depth := coords[2]
		loc.Depth = &depth
	}

	id := strings.TrimSpace(f.ID)
	if id == "" {
		id = generateID(occurred, loc.Lat, loc.Lon, magnitude)
	}

	return HazardEvent{
		ID:            id,
		Location:      loc,
		Magnitude:     magnitude,
		OccurredAt:    occurred,
		Place:         f.Properties.Place,
		DetailURL:     f.Properties.URL,
		Status:        f.Properties.Status,
		MagnitudeType: f.Properties.MagType,
	}
}

// magnitudeOrZero applies the missing-magnitude fallback.
func magnitudeOrZero(mag *float64) float64 {
	if mag == nil || math.IsNaN(*mag) || math.IsInf(*mag, 0) {
		return 0
	}
	return *mag
}

// generateID produces a deterministic ID for features the catalog sent
// without one, so re-fetching the same range yields the same IDs.
func generateID(occurred time.Time, lat, lon, magnitude float64) string {
	input := fmt.Sprintf("%d|%.4f|%.4f|%g", occurred.UnixMilli(), lat, lon, magnitude)
	hash := sha256.Sum256([]byte(input))
	return "evt-" + hex.EncodeToString(hash[:8])
}
