// Package geom provides the planar primitives shared by the routing packages.
//
// All coordinates are float64 with the y axis pointing down, matching the
// screen coordinates used by diagram editors. Rectangles are axis aligned and
// stored as a Min/Max corner pair; a rectangle whose width or height is not
// positive is degenerate.
//
// # Containment and intersection
//
// Two families of predicates exist and the distinction matters to routing:
//
//   - Inclusive predicates (Contains, Intersects, SegmentIntersects) treat the
//     boundary as part of the rectangle. They are used for invalidation, where
//     touching a changed region is enough to be affected.
//   - Strict predicates (ContainsStrict, Overlaps, SegmentCrossesInterior) only
//     consider the open interior. They decide whether a route penetrates an
//     obstacle; running along an obstacle's boundary is allowed.
package geom

import (
	"fmt"
	"math"
)

// Eps is the tolerance used when comparing coordinates.
const Eps = 1e-9

// Point is a location in the plane.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Scale multiplies both coordinates by f.
func (p Point) Scale(f float64) Point {
	return Point{p.X * f, p.Y * f}
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Near reports whether p and q coincide within Eps.
func (p Point) Near(q Point) bool {
	return math.Abs(p.X-q.X) <= Eps && math.Abs(p.Y-q.Y) <= Eps
}

// Less orders points by x, then y. It is the deterministic tie-break used by
// path search.
func (p Point) Less(q Point) bool {
	if p.X != q.X {
		return p.X < q.X
	}
	return p.Y < q.Y
}

// Coord returns the coordinate of p along axis a.
func (p Point) Coord(a Axis) float64 {
	if a == Horizontal {
		return p.X
	}
	return p.Y
}

// With returns p with its coordinate along axis a replaced by v.
func (p Point) With(a Axis, v float64) Point {
	if a == Horizontal {
		p.X = v
	} else {
		p.Y = v
	}
	return p
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Axis identifies the direction a segment runs along.
type Axis uint8

const (
	// Horizontal segments run along x with a fixed y.
	Horizontal Axis = iota
	// Vertical segments run along y with a fixed x.
	Vertical
)

// Other returns the perpendicular axis.
func (a Axis) Other() Axis {
	return 1 - a
}

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// SegmentAxis returns the axis of the segment ab and whether it is axis
// aligned. A zero-length segment reports Horizontal and true.
func SegmentAxis(a, b Point) (Axis, bool) {
	switch {
	case math.Abs(a.Y-b.Y) <= Eps:
		return Horizontal, true
	case math.Abs(a.X-b.X) <= Eps:
		return Vertical, true
	}
	return Horizontal, false
}
