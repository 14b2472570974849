// Package geo derives buffered risk zones from linear and polygonal features.
//
// Buffers are geodesic: each geometry is projected onto an azimuthal
// equidistant plane centered on its bounding box, dilated there in meters and
// projected back to lon/lat. A dilation is returned as its pieces (segment
// capsules, vertex discs and the source polygon interiors); overlapping pieces
// are not dissolved.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Unit is the unit of a buffer distance.
type Unit string

// Meters is the only supported unit.
const Meters Unit = "meters"

// stepsPerQuadrant controls arc resolution: 8 vertices per quarter circle.
const stepsPerQuadrant = 8

// ErrEmptyGeometry is returned for geometries with no coordinates.
var ErrEmptyGeometry = errors.New("geometry has no coordinates")

// InvalidDistanceError reports a buffer distance that is not a non-negative
// finite number of a supported unit.
type InvalidDistanceError struct {
	Input  string
	Reason string
}

func (e *InvalidDistanceError) Error() string {
	return fmt.Sprintf("invalid buffer distance %q: %s", e.Input, e.Reason)
}

// ValidateDistance checks that d is usable as a buffer distance.
func ValidateDistance(d float64) error {
	switch {
	case math.IsNaN(d), math.IsInf(d, 0):
		return &InvalidDistanceError{Input: fmt.Sprint(d), Reason: "not a finite number"}
	case d < 0:
		return &InvalidDistanceError{Input: fmt.Sprint(d), Reason: "negative"}
	}
	return nil
}

// Buffer dilates g by distance in the given unit. The result is an
// orb.Polygon when the dilation is a single piece and an orb.MultiPolygon
// otherwise. A zero distance returns zero-area rings on the source vertices
// (plus the source polygons, for areal input).
func Buffer(g orb.Geometry, distance float64, unit Unit) (orb.Geometry, error) {
	if unit != Meters {
		return nil, &InvalidDistanceError{Input: fmt.Sprintf("%v %s", distance, unit), Reason: "unsupported unit"}
	}
	if err := ValidateDistance(distance); err != nil {
		return nil, err
	}
	if g == nil || isEmpty(g) {
		return nil, ErrEmptyGeometry
	}

	proj := newProjection(g.Bound().Center())
	b := &builder{proj: proj, radius: distance}
	if err := b.add(g); err != nil {
		return nil, err
	}

	if len(b.pieces) == 1 {
		return b.pieces[0], nil
	}
	return orb.MultiPolygon(b.pieces), nil
}

type builder struct {
	proj   projection
	radius float64
	pieces []orb.Polygon
}

func (b *builder) add(g orb.Geometry) error {
	switch g := g.(type) {
	case orb.Point:
		b.addDisc(g)
	case orb.MultiPoint:
		for _, p := range g {
			b.addDisc(p)
		}
	case orb.LineString:
		b.addLine(g)
	case orb.MultiLineString:
		for _, ls := range g {
			b.addLine(ls)
		}
	case orb.Ring:
		b.addPolygon(orb.Polygon{g})
	case orb.Polygon:
		b.addPolygon(g)
	case orb.MultiPolygon:
		for _, p := range g {
			b.addPolygon(p)
		}
	case orb.Collection:
		for _, child := range g {
			if err := b.add(child); err != nil {
				return err
			}
		}
	case orb.Bound:
		b.addPolygon(g.ToPolygon())
	default:
		return fmt.Errorf("unsupported geometry type %T", g)
	}
	return nil
}

func (b *builder) addLine(ls orb.LineString) {
	segments := 0
	for i := 1; i < len(ls); i++ {
		if ls[i] == ls[i-1] {
			continue
		}
		b.addCapsule(ls[i-1], ls[i])
		segments++
	}
	if segments == 0 && len(ls) > 0 {
		b.addDisc(ls[0])
	}
}

func (b *builder) addPolygon(p orb.Polygon) {
	if len(p) == 0 || len(p[0]) == 0 {
		return
	}
	b.pieces = append(b.pieces, p.Clone())
	if b.radius == 0 {
		return
	}
	for _, ring := range p {
		b.addLine(orb.LineString(ring))
	}
}

func (b *builder) addDisc(center orb.Point) {
	if b.radius == 0 {
		b.appendPiece([]orb.Point{center})
		return
	}
	c := b.proj.forward(center)
	n := 4 * stepsPerQuadrant
	pts := make([]orb.Point, 0, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts = append(pts, b.proj.inverse(offset(c, theta, b.radius)))
	}
	b.appendPiece(pts)
}

// addCapsule adds the set of points within radius of segment a-b, traversed
// counter-clockwise: the arc around b, then the arc around a.
func (b *builder) addCapsule(a, c orb.Point) {
	if b.radius == 0 {
		b.appendPiece([]orb.Point{c, a})
		return
	}
	pa := b.proj.forward(a)
	pc := b.proj.forward(c)
	heading := math.Atan2(pc[1]-pa[1], pc[0]-pa[0])

	arc := 2 * stepsPerQuadrant
	pts := make([]orb.Point, 0, 2*(arc+1)+1)
	for i := 0; i <= arc; i++ {
		theta := heading - math.Pi/2 + math.Pi*float64(i)/float64(arc)
		pts = append(pts, b.proj.inverse(offset(pc, theta, b.radius)))
	}
	for i := 0; i <= arc; i++ {
		theta := heading + math.Pi/2 + math.Pi*float64(i)/float64(arc)
		pts = append(pts, b.proj.inverse(offset(pa, theta, b.radius)))
	}
	b.appendPiece(pts)
}

// appendPiece turns an outline in lon/lat into a closed ring, dropping
// consecutive duplicates. Degenerate outlines are padded to four positions.
func (b *builder) appendPiece(outline []orb.Point) {
	ring := make(orb.Ring, 0, len(outline)+1)
	for _, p := range outline {
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) == 0 {
		return
	}
	ring = append(ring, ring[0])
	for len(ring) < 4 {
		ring = append(ring, ring[0])
	}
	b.pieces = append(b.pieces, orb.Polygon{ring})
}

func offset(c orb.Point, theta, r float64) orb.Point {
	return orb.Point{c[0] + r*math.Cos(theta), c[1] + r*math.Sin(theta)}
}

func isEmpty(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return false
			}
		}
		return true
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0 || len(g[0]) == 0
	case orb.MultiPolygon:
		for _, p := range g {
			if !isEmpty(p) {
				return false
			}
		}
		return true
	case orb.Collection:
		for _, child := range g {
			if !isEmpty(child) {
				return false
			}
		}
		return true
	}
	return false
}
