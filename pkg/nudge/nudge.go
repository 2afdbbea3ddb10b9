// Package nudge separates the segments of orthogonal routes.
//
// Path search places every route on the lines of the channel graph, so
// connectors sharing a channel end up drawn on top of each other. Nudge
// turns a set of such raw routes into displayed routes in two steps, first
// for vertical segments and then for horizontal ones:
//
//  1. Interior segments whose neighbours turn to opposite sides (Z-bends)
//     move to the centre of their free channel. The channel is bounded by
//     obstacles the connector cannot cross, by its container and by the far
//     ends of the neighbouring segments.
//  2. Colinear segments that overlap form a group. Members are ordered so
//     that routes leave the group without crossing each other, then by
//     connector creation order, and spread about the shared line at the
//     ideal distance. A group that does not fit its channel is shifted and
//     compressed.
//
// Terminal segments only move when the connector's pin allows it and the
// caller enabled [Options.ShapeSegments]; a short perpendicular stub is
// inserted so the route still ends exactly at its endpoint. The stub leaves
// the pin sideways, so the pin must allow both perpendicular directions.
//
// Segments never move into a buffered obstacle they run outside of, and
// when spreading a group they keep clear of the far ends of their
// neighbouring segments, so no neighbour collapses onto a pin.
//
// Displayed routes are always derived from raw routes, so nudging the same
// input twice yields the same output.
package nudge

import (
	"math"
	"sort"

	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/route"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// Obstacles reports the buffered rectangles touching a region.
// *visgraph.Space implements it.
type Obstacles interface {
	Blockers(r geom.Rect) []geom.Rect
}

// Conn is an orthogonal connector to nudge.
type Conn struct {
	ID string
	// Order is the creation rank; lower values are placed first.
	Order  int
	Points []geom.Point

	// SrcMovable and DstMovable report whether the terminal segment at that
	// end sits on a movable pin.
	SrcMovable, DstMovable bool

	// SrcDirs and DstDirs are the directions the route may leave each end
	// by. DirNone allows all.
	SrcDirs, DstDirs geom.Dir

	// Container, when set, bounds every segment.
	Container *geom.Rect
}

// Options configures a nudging pass.
type Options struct {
	// Ideal is the distance between separated segments.
	Ideal float64
	// ShapeSegments allows moving terminal segments at movable pins.
	ShapeSegments bool
	// TouchingColinear groups colinear segments that only touch end to end.
	TouchingColinear bool
}

// Result holds the displayed routes and, per connector, the channels its
// moved segments were placed in. A later change touching a channel may
// change the route.
type Result struct {
	Routes   map[string][]geom.Point
	Channels map[string][]geom.Rect
}

// Nudge computes displayed routes for conns.
func Nudge(conns []Conn, obs Obstacles, opt Options) Result {
	n := newNudger(conns, obs, opt)
	for _, axis := range []geom.Axis{geom.Vertical, geom.Horizontal} {
		n.centre(axis)
		n.separate(axis)
	}

	res := Result{
		Routes:   make(map[string][]geom.Point, len(n.conns)),
		Channels: make(map[string][]geom.Rect, len(n.conns)),
	}
	for _, c := range n.conns {
		c.r.Simplify()
		res.Routes[c.ID] = c.r.Points()
		if len(c.channels) > 0 {
			res.Channels[c.ID] = c.channels
		}
	}
	return res
}

// =============================================================================
// Working state
// =============================================================================

type conn struct {
	Conn
	r                *route.Route
	stubSrc, stubDst bool
	channels         []geom.Rect
}

type nudger struct {
	conns []*conn
	obs   Obstacles
	opt   Options
}

func newNudger(conns []Conn, obs Obstacles, opt Options) *nudger {
	n := &nudger{obs: obs, opt: opt}
	for _, c := range conns {
		r := route.New(c.Points...)
		r.Simplify()
		n.conns = append(n.conns, &conn{Conn: c, r: r})
	}
	sort.SliceStable(n.conns, func(i, j int) bool {
		if n.conns[i].Order != n.conns[j].Order {
			return n.conns[i].Order < n.conns[j].Order
		}
		return n.conns[i].ID < n.conns[j].ID
	})
	return n
}

// segment is an axis-aligned piece of a working route between the records
// a and b.
type segment struct {
	c      *conn
	index  int
	a, b   int
	axis   geom.Axis
	pos    float64 // coordinate on the perpendicular axis
	lo, hi float64 // extent along the axis

	// side of the perpendicular axis the route continues to beyond each
	// end: -1, +1, or 0 at a route endpoint.
	loSide, hiSide int

	first, last bool
}

func (s *segment) fixed(opt Options) bool {
	if s.first && (s.c.stubSrc || !(s.c.SrcMovable && opt.ShapeSegments) || !sideways(s.c.SrcDirs, s.axis)) {
		return true
	}
	if s.last && (s.c.stubDst || !(s.c.DstMovable && opt.ShapeSegments) || !sideways(s.c.DstDirs, s.axis)) {
		return true
	}
	return false
}

// sideways reports whether a pin with dirs may be left in both directions
// perpendicular to axis, as a stub inserted by move does.
func sideways(dirs geom.Dir, axis geom.Axis) bool {
	dirs = dirs.Normalize()
	if axis == geom.Horizontal {
		return dirs.Has(geom.DirUp | geom.DirDown)
	}
	return dirs.Has(geom.DirLeft | geom.DirRight)
}

func (s *segment) zBend() bool {
	return !s.first && !s.last && s.loSide*s.hiSide < 0
}

func sign(v float64) int {
	switch {
	case v > geom.Eps:
		return 1
	case v < -geom.Eps:
		return -1
	}
	return 0
}

// segments lists the segments of c running along axis.
func (c *conn) segments(axis geom.Axis) []*segment {
	var out []*segment
	perp := axis.Other()
	k := 0
	for i := c.r.Head(); i != route.Nil && c.r.Next(i) != route.Nil; i = c.r.Next(i) {
		j := c.r.Next(i)
		p, q := c.r.At(i), c.r.At(j)
		ax, ok := geom.SegmentAxis(p, q)
		if ok && ax == axis && !p.Near(q) {
			s := &segment{
				c: c, index: k, a: i, b: j, axis: axis,
				pos:   p.Coord(perp),
				first: c.r.Prev(i) == route.Nil,
				last:  c.r.Next(j) == route.Nil,
			}
			side := func(beyond int) int {
				if beyond == route.Nil {
					return 0
				}
				return sign(c.r.At(beyond).Coord(perp) - s.pos)
			}
			sa, sb := side(c.r.Prev(i)), side(c.r.Next(j))
			if p.Coord(axis) <= q.Coord(axis) {
				s.lo, s.hi, s.loSide, s.hiSide = p.Coord(axis), q.Coord(axis), sa, sb
			} else {
				s.lo, s.hi, s.loSide, s.hiSide = q.Coord(axis), p.Coord(axis), sb, sa
			}
			out = append(out, s)
		}
		k++
	}
	return out
}

// bounds returns the interval s may move within. Obstacles the segment
// runs through, such as the shape of a centre pin or an enclosing
// container, do not bound it. The far ends of the neighbouring segments
// do, less a margin of up to keep so the neighbours keep some length.
func (n *nudger) bounds(s *segment, keep float64) (float64, float64) {
	perp := s.axis.Other()
	lo, hi := -visgraph.Far, visgraph.Far

	query := geom.Rect{
		Min: geom.Point{}.With(s.axis, s.lo).With(perp, -visgraph.Far),
		Max: geom.Point{}.With(s.axis, s.hi).With(perp, visgraph.Far),
	}
	if n.obs != nil {
		for _, b := range n.obs.Blockers(query) {
			bLo, bHi := b.Min.Coord(s.axis), b.Max.Coord(s.axis)
			if !(bLo < s.hi-geom.Eps && bHi > s.lo+geom.Eps) {
				continue
			}
			pLo, pHi := b.Min.Coord(perp), b.Max.Coord(perp)
			switch {
			case pHi <= s.pos+geom.Eps:
				lo = math.Max(lo, pHi)
			case pLo >= s.pos-geom.Eps:
				hi = math.Min(hi, pLo)
			}
		}
	}
	if s.c.Container != nil {
		lo = math.Max(lo, s.c.Container.Min.Coord(perp))
		hi = math.Min(hi, s.c.Container.Max.Coord(perp))
	}

	// Neighbouring segments must not reverse.
	for _, beyond := range []int{s.c.r.Prev(s.a), s.c.r.Next(s.b)} {
		if beyond == route.Nil {
			continue
		}
		v := s.c.r.At(beyond).Coord(perp)
		m := math.Min(keep, math.Abs(v-s.pos)/2)
		if v < s.pos {
			lo = math.Max(lo, v+m)
		} else {
			hi = math.Min(hi, v-m)
		}
	}
	return math.Min(lo, s.pos), math.Max(hi, s.pos)
}

// move shifts s to pos, inserting stubs at route endpoints.
func (n *nudger) move(s *segment, pos float64) {
	if math.Abs(pos-s.pos) <= geom.Eps {
		return
	}
	perp := s.axis.Other()
	r := s.c.r
	a, b := s.a, s.b
	if s.first {
		a = r.InsertAfter(a, r.At(a))
		s.c.stubSrc = true
	}
	if s.last {
		b = r.InsertBefore(b, r.At(b))
		s.c.stubDst = true
	}
	r.Set(a, r.At(a).With(perp, pos))
	r.Set(b, r.At(b).With(perp, pos))
	s.a, s.b, s.pos = a, b, pos
	s.first, s.last = false, false
}

func (n *nudger) channel(s *segment, lo, hi float64) {
	perp := s.axis.Other()
	s.c.channels = append(s.c.channels, geom.Rect{
		Min: geom.Point{}.With(s.axis, s.lo).With(perp, lo),
		Max: geom.Point{}.With(s.axis, s.hi).With(perp, hi),
	})
}

// =============================================================================
// Centring
// =============================================================================

func (n *nudger) centre(axis geom.Axis) {
	for _, c := range n.conns {
		for _, s := range c.segments(axis) {
			if !s.zBend() || s.fixed(n.opt) {
				continue
			}
			lo, hi := n.bounds(s, 0)
			n.channel(s, lo, hi)
			n.move(s, (lo+hi)/2)
		}
	}
}

// =============================================================================
// Separation
// =============================================================================

func (n *nudger) separate(axis geom.Axis) {
	var segs []*segment
	for _, c := range n.conns {
		segs = append(segs, c.segments(axis)...)
	}
	for _, g := range groups(segs, n.opt.TouchingColinear) {
		n.spread(g)
	}
}

// groups partitions segs into sets of colinear segments that overlap, or
// touch when touching is set. Groups of one are dropped.
func groups(segs []*segment, touching bool) [][]*segment {
	sorted := append([]*segment(nil), segs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if math.Abs(a.pos-b.pos) > geom.Eps {
			return a.pos < b.pos
		}
		return a.lo < b.lo
	})

	var out [][]*segment
	var cur []*segment
	var reach float64
	flush := func() {
		if len(cur) > 1 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, s := range sorted {
		if len(cur) > 0 {
			same := math.Abs(s.pos-cur[0].pos) <= geom.Eps
			joins := s.lo < reach-geom.Eps || (touching && s.lo <= reach+geom.Eps)
			if same && joins {
				cur = append(cur, s)
				reach = math.Max(reach, s.hi)
				continue
			}
			flush()
		}
		cur = []*segment{s}
		reach = s.hi
	}
	flush()
	return out
}

// vote returns a positive value when s should be placed below t to let
// both routes leave the shared line without crossing.
func vote(s, t *segment) int {
	v := 0
	within := func(x float64, o *segment) bool {
		return x >= o.lo-geom.Eps && x <= o.hi+geom.Eps
	}
	if within(s.lo, t) {
		v -= s.loSide
	}
	if within(s.hi, t) {
		v -= s.hiSide
	}
	if within(t.lo, s) {
		v += t.loSide
	}
	if within(t.hi, s) {
		v += t.hiSide
	}
	return v
}

// order sorts a group: crossing votes first, then creation order, then
// position along the route.
func order(g []*segment) {
	score := make(map[*segment]int, len(g))
	for _, s := range g {
		for _, t := range g {
			if s != t {
				score[s] += vote(s, t)
			}
		}
	}
	sort.SliceStable(g, func(i, j int) bool {
		a, b := g[i], g[j]
		if score[a] != score[b] {
			return score[a] > score[b]
		}
		if a.c.Order != b.c.Order {
			return a.c.Order < b.c.Order
		}
		if a.c.ID != b.c.ID {
			return a.c.ID < b.c.ID
		}
		return a.index < b.index
	})
}

func (n *nudger) spread(g []*segment) {
	order(g)
	centre := g[0].pos

	var slots []slot
	members := make([]int, len(g)) // slot of each member
	fixedSlot := -1
	for i, s := range g {
		lo, hi := n.bounds(s, n.opt.Ideal)
		if s.fixed(n.opt) {
			if fixedSlot < 0 {
				fixedSlot = len(slots)
				slots = append(slots, slot{lo: centre, hi: centre, fixed: true})
			}
			members[i] = fixedSlot
			continue
		}
		members[i] = len(slots)
		slots = append(slots, slot{lo: lo, hi: hi})
	}
	if len(slots) < 2 {
		return
	}

	pos := place(slots, centre, n.opt.Ideal)
	reach := float64(len(slots)) * n.opt.Ideal
	for i, s := range g {
		sl := slots[members[i]]
		if sl.fixed {
			continue
		}
		n.channel(s, math.Max(sl.lo, centre-reach), math.Min(sl.hi, centre+reach))
		n.move(s, pos[members[i]])
	}
}

// =============================================================================
// Scope
// =============================================================================

// Scope returns the connectors that have to be nudged together with seeds:
// the seeds themselves and, transitively, every connector sharing a line
// with one of them. Segments are compared at their raw position and, for
// Z-bends, at their centred position; extents are widened by the ideal
// distance so segments that may meet after spreading are included too.
func Scope(conns []Conn, seeds map[string]bool, obs Obstacles, opt Options) map[string]bool {
	n := newNudger(conns, obs, opt)

	type entry struct {
		axis   geom.Axis
		pos    float64
		lo, hi float64
		conn   int
	}
	var entries []entry
	for ci, c := range n.conns {
		for _, axis := range []geom.Axis{geom.Vertical, geom.Horizontal} {
			for _, s := range c.segments(axis) {
				e := entry{axis: axis, pos: s.pos, lo: s.lo - opt.Ideal, hi: s.hi + opt.Ideal, conn: ci}
				entries = append(entries, e)
				if s.zBend() && !s.fixed(opt) {
					lo, hi := n.bounds(s, 0)
					e.pos = (lo + hi) / 2
					entries = append(entries, e)
				}
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.axis != b.axis {
			return a.axis < b.axis
		}
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		return a.lo < b.lo
	})

	parent := make([]int, len(n.conns))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := 0; i < len(entries); {
		j, reach := i+1, entries[i].hi
		for j < len(entries) &&
			entries[j].axis == entries[i].axis &&
			entries[j].pos-entries[i].pos <= geom.Eps {
			if entries[j].lo <= reach {
				parent[find(entries[j].conn)] = find(entries[j-1].conn)
			}
			reach = math.Max(reach, entries[j].hi)
			j++
		}
		i = j
	}

	roots := make(map[int]bool)
	for ci, c := range n.conns {
		if seeds[c.ID] {
			roots[find(ci)] = true
		}
	}
	out := make(map[string]bool)
	for ci, c := range n.conns {
		if roots[find(ci)] {
			out[c.ID] = true
		}
	}
	return out
}
