package geom

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max Point
}

// R builds a rectangle from two opposite corners in any order.
func R(x1, y1, x2, y2 float64) Rect {
	return Rect{
		Min: Point{math.Min(x1, x2), math.Min(y1, y2)},
		Max: Point{math.Max(x1, x2), math.Max(y1, y2)},
	}
}

// XYWH builds a rectangle from its top-left corner and size.
func XYWH(x, y, w, h float64) Rect {
	return R(x, y, x+w, y+h)
}

// BoundsOf returns the smallest rectangle containing all points. The result
// is degenerate for fewer than two distinct points.
func BoundsOf(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = math.Min(r.Min.X, p.X)
		r.Min.Y = math.Min(r.Min.Y, p.Y)
		r.Max.X = math.Max(r.Max.X, p.X)
		r.Max.Y = math.Max(r.Max.Y, p.Y)
	}
	return r
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Degenerate reports whether r has no area.
func (r Rect) Degenerate() bool {
	return !(r.Width() > 0) || !(r.Height() > 0)
}

// Centre returns the centroid of r.
func (r Rect) Centre() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Expand grows r by d on every side. A negative d shrinks it; shrinking past
// the centre collapses the rectangle onto its centre.
func (r Rect) Expand(d float64) Rect {
	out := Rect{
		Min: Point{r.Min.X - d, r.Min.Y - d},
		Max: Point{r.Max.X + d, r.Max.Y + d},
	}
	c := r.Centre()
	if out.Min.X > out.Max.X {
		out.Min.X, out.Max.X = c.X, c.X
	}
	if out.Min.Y > out.Max.Y {
		out.Min.Y, out.Max.Y = c.Y, c.Y
	}
	return out
}

// Translate moves r by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	d := Point{dx, dy}
	return Rect{Min: r.Min.Add(d), Max: r.Max.Add(d)}
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: Point{math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)},
	}
}

// Corners returns the corners clockwise from the top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		r.Min,
		{r.Max.X, r.Min.Y},
		r.Max,
		{r.Min.X, r.Max.Y},
	}
}

// Contains reports whether p lies in r or on its boundary.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X-Eps && p.X <= r.Max.X+Eps &&
		p.Y >= r.Min.Y-Eps && p.Y <= r.Max.Y+Eps
}

// ContainsStrict reports whether p lies in the open interior of r.
func (r Rect) ContainsStrict(p Point) bool {
	return p.X > r.Min.X+Eps && p.X < r.Max.X-Eps &&
		p.Y > r.Min.Y+Eps && p.Y < r.Max.Y-Eps
}

// ContainsRect reports whether o lies within r, boundaries included.
func (r Rect) ContainsRect(o Rect) bool {
	return r.Contains(o.Min) && r.Contains(o.Max)
}

// Intersects reports whether r and o share at least one point.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X+Eps && o.Min.X <= r.Max.X+Eps &&
		r.Min.Y <= o.Max.Y+Eps && o.Min.Y <= r.Max.Y+Eps
}

// Overlaps reports whether the interiors of r and o intersect.
func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X < o.Max.X-Eps && o.Min.X < r.Max.X-Eps &&
		r.Min.Y < o.Max.Y-Eps && o.Min.Y < r.Max.Y-Eps
}

// SegmentIntersects reports whether the closed segment ab touches r.
func (r Rect) SegmentIntersects(a, b Point) bool {
	_, _, ok := r.clip(a, b)
	return ok
}

// SegmentCrossesInterior reports whether the segment ab passes through the
// open interior of r. Segments running along the boundary do not cross it.
func (r Rect) SegmentCrossesInterior(a, b Point) bool {
	t0, t1, ok := r.clip(a, b)
	if !ok {
		return false
	}
	mid := a.Add(b.Sub(a).Scale((t0 + t1) / 2))
	return r.ContainsStrict(mid)
}

// clip intersects the segment ab with r (Liang-Barsky) and returns the
// parameter range of the clipped piece.
func (r Rect) clip(a, b Point) (t0, t1 float64, ok bool) {
	t0, t1 = 0, 1
	dx, dy := b.X-a.X, b.Y-a.Y
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{
		a.X - r.Min.X + Eps,
		r.Max.X - a.X + Eps,
		a.Y - r.Min.Y + Eps,
		r.Max.Y - a.Y + Eps,
	}
	for i := range 4 {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return 0, 0, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return 0, 0, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return t0, t1, true
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %g,%g]", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}
