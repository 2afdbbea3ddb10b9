package visgraph

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/matzehuels/detour/pkg/geom"
)

// =============================================================================
// Rays and lines
// =============================================================================

type rayKey struct {
	gen  string
	axis geom.Axis
}

// ray is the maximal free interval through a generator along one axis.
type ray struct {
	key    rayKey
	coord  float64 // fixed coordinate (y for horizontal rays)
	lo, hi float64 // extent along the axis
}

func (r *ray) segment() (geom.Point, geom.Point) {
	return at(r.key.axis, r.coord, r.lo), at(r.key.axis, r.coord, r.hi)
}

// Bounds implements rtreego.Spatial.
func (r *ray) Bounds() rtreego.Rect {
	a, b := r.segment()
	return toRect(geom.BoundsOf(a, b))
}

// at returns the point at position v along a line of the given axis and
// fixed coordinate.
func at(axis geom.Axis, coord, v float64) geom.Point {
	if axis == geom.Horizontal {
		return geom.Pt(v, coord)
	}
	return geom.Pt(coord, v)
}

type span struct {
	lo, hi float64
}

// line collects the rays sharing an axis and a fixed coordinate. Its nodes
// are the positions where perpendicular lines cross it.
type line struct {
	axis  geom.Axis
	coord float64
	rays  map[rayKey]*ray
	spans []span

	stops []float64  // node positions, ascending
	links []bool     // links[i]: an edge joins stops[i] and stops[i+1]
	pens  [][]string // pens[i]: shapes crossed by that edge
}

func (l *line) covers(v float64) bool {
	i := sort.Search(len(l.spans), func(i int) bool { return l.spans[i].hi >= v-geom.Eps })
	return i < len(l.spans) && l.spans[i].lo <= v+geom.Eps
}

func (l *line) extent() (span, bool) {
	if len(l.spans) == 0 {
		return span{}, false
	}
	return span{l.spans[0].lo, l.spans[len(l.spans)-1].hi}, true
}

func (l *line) rebuildSpans() {
	ivs := make([]span, 0, len(l.rays))
	for _, r := range l.rays {
		ivs = append(ivs, span{r.lo, r.hi})
	}
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].lo != ivs[j].lo {
			return ivs[i].lo < ivs[j].lo
		}
		return ivs[i].hi < ivs[j].hi
	})
	l.spans = l.spans[:0]
	for _, iv := range ivs {
		if n := len(l.spans); n > 0 && iv.lo <= l.spans[n-1].hi+geom.Eps {
			l.spans[n-1].hi = math.Max(l.spans[n-1].hi, iv.hi)
			continue
		}
		l.spans = append(l.spans, iv)
	}
}

// stopIndex returns the index of position v in l.stops, or -1.
func (l *line) stopIndex(v float64) int {
	i := sort.SearchFloat64s(l.stops, v-geom.Eps)
	if i < len(l.stops) && math.Abs(l.stops[i]-v) <= geom.Eps {
		return i
	}
	return -1
}

// =============================================================================
// Orthogonal graph
// =============================================================================

// Orthogonal is the channel graph used for orthogonal routing.
//
// Every generator casts a horizontal and a vertical ray that extends until it
// meets the boundary of a buffered shape it is not transparent to. Rays on
// the same axis and coordinate merge into lines; the nodes of the graph are
// the crossings of horizontal and vertical lines and its edges join
// consecutive nodes of a line. Each edge remembers which buffered shapes it
// passes through so that a search can decide per connector whether the edge
// is usable.
type Orthogonal struct {
	space    *Space
	rays     map[rayKey]*ray
	rayIndex *rtreego.Rtree
	lines    [2]map[float64]*line
	coords   [2][]float64 // sorted line coordinates per axis
}

// NewOrthogonal creates an empty graph over space. Call Update with the
// space's changes to populate it.
func NewOrthogonal(space *Space) *Orthogonal {
	g := &Orthogonal{space: space}
	g.reset()
	return g
}

func (g *Orthogonal) reset() {
	g.rays = make(map[rayKey]*ray)
	g.rayIndex = rtreego.NewTree(2, 25, 50)
	g.lines = [2]map[float64]*line{make(map[float64]*line), make(map[float64]*line)}
	g.coords = [2][]float64{nil, nil}
}

// Update regenerates the part of the graph invalidated by ch: rays of changed
// generators, rays whose extent touches a changed region, and the lines
// crossing them. Everything else is left untouched.
func (g *Orthogonal) Update(ch Changes) {
	if ch.Reset {
		g.rebuild()
		return
	}

	affected := make(map[rayKey]bool)
	for _, z := range ch.Regions {
		for _, sp := range g.rayIndex.SearchIntersect(toRect(z)) {
			affected[sp.(*ray).key] = true
		}
	}
	for key := range ch.Gens {
		affected[rayKey{key, geom.Horizontal}] = true
		affected[rayKey{key, geom.Vertical}] = true
	}

	dirty := make(map[*line]bool)
	for k := range affected {
		if r, ok := g.rays[k]; ok {
			dirty[g.removeRay(r)] = true
		}
	}
	for k := range affected {
		gen, ok := g.space.Generator(k.gen)
		if !ok {
			continue
		}
		dirty[g.addRay(g.cast(gen, k.axis))] = true
	}
	g.refresh(dirty)
}

// rebuild discards the graph and casts every ray again.
func (g *Orthogonal) rebuild() {
	g.reset()
	dirty := make(map[*line]bool)
	for _, key := range g.space.GeneratorKeys() {
		gen, _ := g.space.Generator(key)
		for _, axis := range []geom.Axis{geom.Horizontal, geom.Vertical} {
			dirty[g.addRay(g.cast(gen, axis))] = true
		}
	}
	g.refresh(dirty)
}

// cast computes the ray through gen along axis.
func (g *Orthogonal) cast(gen Generator, axis geom.Axis) *ray {
	p := gen.Point
	coord, pos := p.Coord(axis.Other()), p.Coord(axis)
	r := &ray{key: rayKey{gen.Key, axis}, coord: coord, lo: -Far, hi: Far}

	transparent := make(map[string]bool)
	for _, id := range g.space.Transparency(gen) {
		transparent[id] = true
	}

	strip := geom.Rect{Min: at(axis, coord, -Far), Max: at(axis, coord, Far)}
	for _, sh := range g.space.near(geom.BoundsOf(strip.Min, strip.Max)) {
		if transparent[sh.ID] {
			continue
		}
		b := sh.buffered
		bLo, bHi := b.Min.Coord(axis), b.Max.Coord(axis)
		cLo, cHi := b.Min.Coord(axis.Other()), b.Max.Coord(axis.Other())
		if !(coord > cLo+geom.Eps && coord < cHi-geom.Eps) {
			continue // the ray runs along or outside this shape
		}
		switch {
		case pos > bLo+geom.Eps && pos < bHi-geom.Eps:
			r.lo, r.hi = pos, pos
			return r
		case bLo >= pos-geom.Eps:
			r.hi = math.Min(r.hi, bLo)
		default:
			r.lo = math.Max(r.lo, bHi)
		}
	}
	r.hi = math.Max(r.hi, pos)
	r.lo = math.Min(r.lo, pos)
	return r
}

func (g *Orthogonal) addRay(r *ray) *line {
	g.rays[r.key] = r
	g.rayIndex.Insert(r)
	l := g.lineAt(r.key.axis, r.coord, true)
	l.rays[r.key] = r
	return l
}

func (g *Orthogonal) removeRay(r *ray) *line {
	delete(g.rays, r.key)
	g.rayIndex.Delete(r)
	l := g.lineAt(r.key.axis, r.coord, false)
	delete(l.rays, r.key)
	return l
}

func (g *Orthogonal) lineAt(axis geom.Axis, coord float64, create bool) *line {
	if l, ok := g.lines[axis][coord]; ok {
		return l
	}
	if !create {
		return nil
	}
	l := &line{axis: axis, coord: coord, rays: make(map[rayKey]*ray)}
	g.lines[axis][coord] = l
	cs := g.coords[axis]
	i := sort.SearchFloat64s(cs, coord)
	cs = append(cs, 0)
	copy(cs[i+1:], cs[i:])
	cs[i] = coord
	g.coords[axis] = cs
	return l
}

func (g *Orthogonal) dropLine(l *line) {
	delete(g.lines[l.axis], l.coord)
	cs := g.coords[l.axis]
	i := sort.SearchFloat64s(cs, l.coord)
	if i < len(cs) && cs[i] == l.coord {
		g.coords[l.axis] = append(cs[:i], cs[i+1:]...)
	}
}

// refresh recomputes spans of the dirty lines and the nodes of every line
// whose crossings may have changed as a result.
func (g *Orthogonal) refresh(dirty map[*line]bool) {
	restop := make(map[*line]bool)
	for l := range dirty {
		if l == nil {
			continue
		}
		before, hadBefore := l.extent()
		l.rebuildSpans()
		after, hasAfter := l.extent()

		if len(l.rays) == 0 {
			g.dropLine(l)
		} else {
			restop[l] = true
		}

		ext := before
		switch {
		case hadBefore && hasAfter:
			ext = span{math.Min(before.lo, after.lo), math.Max(before.hi, after.hi)}
		case hasAfter:
			ext = after
		case !hadBefore:
			continue
		}
		other := l.axis.Other()
		for _, c := range g.coordsIn(other, ext) {
			restop[g.lines[other][c]] = true
		}
	}
	for l := range restop {
		if g.lines[l.axis][l.coord] == l {
			g.rebuildStops(l)
		}
	}
}

// coordsIn returns the coordinates of the axis lines within s.
func (g *Orthogonal) coordsIn(axis geom.Axis, s span) []float64 {
	cs := g.coords[axis]
	i := sort.SearchFloat64s(cs, s.lo-geom.Eps)
	j := sort.SearchFloat64s(cs, s.hi+geom.Eps)
	return cs[i:j]
}

func (g *Orthogonal) rebuildStops(l *line) {
	l.stops = l.stops[:0]
	other := l.axis.Other()
	for _, s := range l.spans {
		for _, c := range g.coordsIn(other, s) {
			if g.lines[other][c].covers(l.coord) {
				l.stops = append(l.stops, c)
			}
		}
	}
	n := len(l.stops)
	l.links = make([]bool, max(n-1, 0))
	l.pens = make([][]string, max(n-1, 0))
	for i := 0; i+1 < n; i++ {
		a, b := l.stops[i], l.stops[i+1]
		if !l.sameSpan(a, b) {
			continue
		}
		l.links[i] = true
		l.pens[i] = g.space.crossed(at(l.axis, l.coord, a), at(l.axis, l.coord, b))
	}
}

func (l *line) sameSpan(a, b float64) bool {
	for _, s := range l.spans {
		if a >= s.lo-geom.Eps && b <= s.hi+geom.Eps {
			return true
		}
	}
	return false
}

// =============================================================================
// Queries
// =============================================================================

// HasNode reports whether p is a node of the graph.
func (g *Orthogonal) HasNode(p geom.Point) bool {
	l, ok := g.lines[geom.Horizontal][p.Y]
	return ok && l.stopIndex(p.X) >= 0
}

// orthEdge is a usable move from a node.
type orthEdge struct {
	to  geom.Point
	dir geom.Dir
	pen []string
}

// neighbours returns the edges leaving p in the order left, right, up, down.
func (g *Orthogonal) neighbours(p geom.Point, out []orthEdge) []orthEdge {
	out = out[:0]
	if l, ok := g.lines[geom.Horizontal][p.Y]; ok {
		out = l.adjacent(p.X, geom.DirLeft, geom.DirRight, out)
	}
	if l, ok := g.lines[geom.Vertical][p.X]; ok {
		out = l.adjacent(p.Y, geom.DirUp, geom.DirDown, out)
	}
	return out
}

func (l *line) adjacent(v float64, back, fwd geom.Dir, out []orthEdge) []orthEdge {
	i := l.stopIndex(v)
	if i < 0 {
		return out
	}
	if i > 0 && l.links[i-1] {
		out = append(out, orthEdge{to: at(l.axis, l.coord, l.stops[i-1]), dir: back, pen: l.pens[i-1]})
	}
	if i+1 < len(l.stops) && l.links[i] {
		out = append(out, orthEdge{to: at(l.axis, l.coord, l.stops[i+1]), dir: fwd, pen: l.pens[i]})
	}
	return out
}

// Stats summarises the size of a graph.
type Stats struct {
	Nodes int
	Edges int
	Lines int
	Rays  int
}

// Stats returns node, edge, line and ray counts.
func (g *Orthogonal) Stats() Stats {
	st := Stats{Rays: len(g.rays)}
	for axis := range g.lines {
		for _, l := range g.lines[axis] {
			st.Lines++
			if axis == int(geom.Horizontal) {
				st.Nodes += len(l.stops)
			}
			for _, ok := range l.links {
				if ok {
					st.Edges++
				}
			}
		}
	}
	return st
}

// Edge is an exported view of a graph edge.
type Edge struct {
	A, B geom.Point
	Pen  []string
}

// Edges returns every edge in a canonical order: horizontal edges first,
// then by coordinate and position.
func (g *Orthogonal) Edges() []Edge {
	var out []Edge
	for _, axis := range []geom.Axis{geom.Horizontal, geom.Vertical} {
		for _, c := range g.coords[axis] {
			l := g.lines[axis][c]
			for i, ok := range l.links {
				if !ok {
					continue
				}
				out = append(out, Edge{
					A:   at(axis, c, l.stops[i]),
					B:   at(axis, c, l.stops[i+1]),
					Pen: l.pens[i],
				})
			}
		}
	}
	return out
}
