package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// projection is a spherical azimuthal equidistant projection: distances and
// bearings from the center are preserved, so a circle of radius r meters in
// the plane is a geodesic circle of radius r on the sphere.
type projection struct {
	center orb.Point
}

func newProjection(center orb.Point) projection {
	return projection{center: center}
}

// forward maps lon/lat to planar meters east (x) and north (y) of the center.
func (p projection) forward(pt orb.Point) orb.Point {
	d := geo.DistanceHaversine(p.center, pt)
	if d == 0 {
		return orb.Point{0, 0}
	}
	bearing := geo.Bearing(p.center, pt) * math.Pi / 180
	return orb.Point{d * math.Sin(bearing), d * math.Cos(bearing)}
}

// inverse maps planar meters back to lon/lat.
func (p projection) inverse(xy orb.Point) orb.Point {
	d := math.Hypot(xy[0], xy[1])
	if d == 0 {
		return p.center
	}
	bearing := math.Atan2(xy[0], xy[1]) * 180 / math.Pi
	return geo.PointAtBearingAndDistance(p.center, bearing, d)
}
