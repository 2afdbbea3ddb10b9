// Package route stores connector paths.
//
// A Route is an arena of point records addressed by index. Each record holds
// the index of its predecessor and successor, so points can be inserted and
// removed in the middle of a path (the nudger inserts stubs next to
// endpoints) without invalidating the indices held by other code. Freed slots
// are recycled by later insertions.
//
// Indices are only meaningful for the Route that issued them. The zero Route
// is empty and ready to use.
package route

import (
	"math"

	"github.com/matzehuels/detour/pkg/geom"
)

// Nil is the index returned when there is no such point.
const Nil = -1

type record struct {
	p          geom.Point
	prev, next int
	live       bool
}

// Route is an ordered sequence of points.
type Route struct {
	recs       []record
	free       []int
	head, tail int
	n          int
}

// New returns a route through pts.
func New(pts ...geom.Point) *Route {
	r := &Route{head: Nil, tail: Nil}
	for _, p := range pts {
		r.Append(p)
	}
	return r
}

func (r *Route) init() {
	if r.recs == nil && r.n == 0 {
		r.head, r.tail = Nil, Nil
	}
}

// Len returns the number of points.
func (r *Route) Len() int { return r.n }

// Head returns the index of the first point, or Nil.
func (r *Route) Head() int {
	r.init()
	return r.head
}

// Tail returns the index of the last point, or Nil.
func (r *Route) Tail() int {
	r.init()
	return r.tail
}

// Next returns the index after i, or Nil.
func (r *Route) Next(i int) int { return r.recs[i].next }

// Prev returns the index before i, or Nil.
func (r *Route) Prev(i int) int { return r.recs[i].prev }

// At returns the point stored at i.
func (r *Route) At(i int) geom.Point { return r.recs[i].p }

// Set replaces the point stored at i.
func (r *Route) Set(i int, p geom.Point) { r.recs[i].p = p }

func (r *Route) alloc(p geom.Point) int {
	rec := record{p: p, prev: Nil, next: Nil, live: true}
	if k := len(r.free); k > 0 {
		i := r.free[k-1]
		r.free = r.free[:k-1]
		r.recs[i] = rec
		return i
	}
	r.recs = append(r.recs, rec)
	return len(r.recs) - 1
}

// Append adds p at the end of the route and returns its index.
func (r *Route) Append(p geom.Point) int {
	r.init()
	if r.tail == Nil {
		i := r.alloc(p)
		r.head, r.tail = i, i
		r.n = 1
		return i
	}
	return r.InsertAfter(r.tail, p)
}

// InsertAfter inserts p after index i and returns the new index.
func (r *Route) InsertAfter(i int, p geom.Point) int {
	j := r.alloc(p)
	next := r.recs[i].next
	r.recs[j].prev = i
	r.recs[j].next = next
	r.recs[i].next = j
	if next == Nil {
		r.tail = j
	} else {
		r.recs[next].prev = j
	}
	r.n++
	return j
}

// InsertBefore inserts p before index i and returns the new index.
func (r *Route) InsertBefore(i int, p geom.Point) int {
	prev := r.recs[i].prev
	if prev != Nil {
		return r.InsertAfter(prev, p)
	}
	j := r.alloc(p)
	r.recs[j].next = i
	r.recs[i].prev = j
	r.head = j
	r.n++
	return j
}

// Remove unlinks index i and releases its slot.
func (r *Route) Remove(i int) {
	rec := r.recs[i]
	if !rec.live {
		return
	}
	if rec.prev == Nil {
		r.head = rec.next
	} else {
		r.recs[rec.prev].next = rec.next
	}
	if rec.next == Nil {
		r.tail = rec.prev
	} else {
		r.recs[rec.next].prev = rec.prev
	}
	r.recs[i] = record{prev: Nil, next: Nil}
	r.free = append(r.free, i)
	r.n--
}

// Points returns a copy of the points in order.
func (r *Route) Points() []geom.Point {
	out := make([]geom.Point, 0, r.n)
	for i := r.Head(); i != Nil; i = r.recs[i].next {
		out = append(out, r.recs[i].p)
	}
	return out
}

// Clone returns an independent, compacted copy of r.
func (r *Route) Clone() *Route {
	return New(r.Points()...)
}

// Simplify removes repeated points and interior points lying on the straight
// line between their neighbours. Endpoints are never removed.
func (r *Route) Simplify() {
	for i := r.Head(); i != Nil; {
		next := r.recs[i].next
		if next == Nil || !r.recs[i].p.Near(r.recs[next].p) {
			i = next
			continue
		}
		switch {
		case next != r.tail:
			r.Remove(next)
		case i != r.head:
			prev := r.recs[i].prev
			r.Remove(i)
			i = prev
		default:
			i = next
		}
	}
	for i := r.Head(); i != Nil; {
		prev, next := r.recs[i].prev, r.recs[i].next
		if prev != Nil && next != Nil && between(r.recs[prev].p, r.recs[i].p, r.recs[next].p) {
			r.Remove(i)
		}
		i = next
	}
}

// between reports whether b lies on the segment ac.
func between(a, b, c geom.Point) bool {
	ab, cb := a.Sub(b), c.Sub(b)
	cross := ab.X*cb.Y - ab.Y*cb.X
	scale := math.Max(1, math.Max(math.Hypot(ab.X, ab.Y), math.Hypot(cb.X, cb.Y)))
	if math.Abs(cross) > geom.Eps*scale*scale {
		return false
	}
	return ab.X*cb.X+ab.Y*cb.Y <= geom.Eps
}

// Length returns the total Euclidean length.
func (r *Route) Length() float64 {
	var total float64
	for i := r.Head(); i != Nil && r.recs[i].next != Nil; i = r.recs[i].next {
		total += r.recs[i].p.Dist(r.recs[r.recs[i].next].p)
	}
	return total
}

// Bounds returns the bounding box of all points.
func (r *Route) Bounds() geom.Rect {
	return geom.BoundsOf(r.Points()...)
}

// Intersects reports whether any segment of r touches rect.
func (r *Route) Intersects(rect geom.Rect) bool {
	return Intersects(r.Points(), rect)
}

// Intersects reports whether the polyline pts touches rect.
func Intersects(pts []geom.Point, rect geom.Rect) bool {
	if len(pts) == 1 {
		return rect.Contains(pts[0])
	}
	for k := 0; k+1 < len(pts); k++ {
		if rect.SegmentIntersects(pts[k], pts[k+1]) {
			return true
		}
	}
	return false
}

// Bends counts the direction changes along pts.
func Bends(pts []geom.Point) int {
	n := 0
	for k := 1; k+1 < len(pts); k++ {
		if !between(pts[k-1], pts[k], pts[k+1]) {
			n++
		}
	}
	return n
}

// Orthogonal reports whether every segment of pts is axis aligned.
func Orthogonal(pts []geom.Point) bool {
	for k := 0; k+1 < len(pts); k++ {
		if _, ok := geom.SegmentAxis(pts[k], pts[k+1]); !ok {
			return false
		}
	}
	return true
}

// Equal reports whether two point sequences are identical within geom.Eps.
func Equal(a, b []geom.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Near(b[i]) {
			return false
		}
	}
	return true
}
