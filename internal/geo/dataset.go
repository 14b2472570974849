package geo

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// RiskHigh is the only risk_level value the linear-feature dataset uses.
const RiskHigh = "HIGH"

// LoadDataset reads a GeoJSON feature collection of linear features (rivers)
// from disk.
func LoadDataset(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes a GeoJSON feature collection.
func ParseDataset(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return fc, nil
}

// RiskLevel returns the feature's upper-cased risk_level property, or "" when
// absent.
func RiskLevel(f *geojson.Feature) string {
	return strings.ToUpper(strings.TrimSpace(f.Properties.MustString("risk_level", "")))
}

// CountHighRisk counts features flagged risk_level HIGH.
func CountHighRisk(fc *geojson.FeatureCollection) int {
	if fc == nil {
		return 0
	}
	n := 0
	for _, f := range fc.Features {
		if f != nil && RiskLevel(f) == RiskHigh {
			n++
		}
	}
	return n
}

// RiverCollection renders the dataset for the river layer. HIGH risk features
// get the heavier dashed stroke.
func RiverCollection(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		r := geojson.NewFeature(f.Geometry)
		r.ID = FeatureID(f, i)
		r.Properties["name"] = f.Properties.MustString("name", "River")
		r.Properties["status"] = "MONITORING"
		r.Properties["color"] = "#00ffff"

		high := RiskLevel(f) == RiskHigh
		r.Properties["high_risk"] = high
		if risk := RiskLevel(f); risk != "" {
			r.Properties["risk_level"] = risk
		}
		if high {
			r.Properties["weight"] = 4
			r.Properties["dash_array"] = "10, 5"
		} else {
			r.Properties["weight"] = 2
		}
		out.Append(r)
	}
	return out
}
