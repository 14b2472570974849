package layersync

import (
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

// EventFeature renders one event as a marker feature carrying its
// classification metadata.
func EventFeature(e domain.HazardEvent) *geojson.Feature {
	class := e.Severity()
	f := geojson.NewFeature(e.Location.Point())
	f.ID = e.ID
	f.Properties["id"] = e.ID
	f.Properties["magnitude"] = e.Magnitude
	f.Properties["severity"] = class.String()
	f.Properties["threat"] = domain.ThreatLabel(class)
	f.Properties["color"] = domain.Color(class)
	f.Properties["radius"] = domain.MarkerRadius(e.Magnitude)
	f.Properties["pulse"] = domain.Pulses(e.Magnitude)
	f.Properties["time"] = e.OccurredAt.UnixMilli()
	f.Properties["depth_km"] = e.Location.DepthOrZero()
	if e.Place != "" {
		f.Properties["place"] = e.Place
	}
	if e.DetailURL != "" {
		f.Properties["url"] = e.DetailURL
	}
	if e.Status != "" {
		f.Properties["status"] = e.Status
	}
	if e.MagnitudeType != "" {
		f.Properties["mag_type"] = e.MagnitudeType
	}
	return f
}

// EventCollection renders events in order.
func EventCollection(events []domain.HazardEvent) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range events {
		fc.Append(EventFeature(e))
	}
	return fc
}
