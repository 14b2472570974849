package geo

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Zone is a buffered polygon derived from one source feature.
type Zone struct {
	SourceFeatureID string
	SourceName      string
	RiskLevel       string
	DistanceMeters  float64
	Geometry        orb.Geometry
}

// Contains reports whether p (lon/lat) falls inside any piece of the zone.
func (z Zone) Contains(p orb.Point) bool {
	switch g := z.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// BufferFeatures buffers every feature in fc independently by distance
// meters. Features without geometry are skipped.
func BufferFeatures(fc *geojson.FeatureCollection, distance float64) ([]Zone, error) {
	if err := ValidateDistance(distance); err != nil {
		return nil, err
	}
	if fc == nil {
		return nil, nil
	}

	zones := make([]Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil || isEmpty(f.Geometry) {
			continue
		}
		g, err := Buffer(f.Geometry, distance, Meters)
		if err != nil {
			return nil, fmt.Errorf("buffer feature %d: %w", i, err)
		}
		zones = append(zones, Zone{
			SourceFeatureID: FeatureID(f, i),
			SourceName:      f.Properties.MustString("name", ""),
			RiskLevel:       RiskLevel(f),
			DistanceMeters:  distance,
			Geometry:        g,
		})
	}
	return zones, nil
}

// FeatureID returns the feature's id, its "id" property, or a positional
// fallback.
func FeatureID(f *geojson.Feature, index int) string {
	if f.ID != nil {
		if s := fmt.Sprint(f.ID); s != "" {
			return s
		}
	}
	if s := f.Properties.MustString("id", ""); s != "" {
		return s
	}
	return "feature-" + strconv.Itoa(index)
}

// ZoneFeatureCollection renders zones as GeoJSON for the buffer layer.
func ZoneFeatureCollection(zones []Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		f := geojson.NewFeature(z.Geometry)
		f.ID = z.SourceFeatureID
		f.Properties["source_id"] = z.SourceFeatureID
		f.Properties["distance_m"] = z.DistanceMeters
		f.Properties["zone"] = "FLOOD BUFFER ZONE"
		f.Properties["zone_risk"] = "MODERATE"
		if z.SourceName != "" {
			f.Properties["name"] = z.SourceName
		}
		if z.RiskLevel != "" {
			f.Properties["risk_level"] = z.RiskLevel
		}
		fc.Append(f)
	}
	return fc
}

// ParseDistance coerces buffer distance text the way the dashboard input
// does: surrounding whitespace is ignored and the leading integer is used
// ("250m" is 250, "12.9" is 12). Text without a leading integer, or a
// negative value, is rejected.
func ParseDistance(text string) (float64, error) {
	s := strings.TrimSpace(text)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == digitsStart {
		return 0, &InvalidDistanceError{Input: text, Reason: "not a number"}
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, &InvalidDistanceError{Input: text, Reason: "out of range"}
	}
	d := float64(n)
	if err := ValidateDistance(d); err != nil {
		return 0, &InvalidDistanceError{Input: text, Reason: "negative"}
	}
	return d, nil
}
