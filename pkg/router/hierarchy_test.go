package router

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/route"
)

// hierarchyParams matches the settings used for diagrams with nested
// children: a small buffer, expensive bends and both nudging options.
func hierarchyParams(p *Parameters) {
	p.ShapeBuffer = 4
	p.SegmentPenalty = 50
	p.IdealNudging = 4
	p.NudgeShapeSegments = true
	p.NudgeTouchingColinear = true
}

// addChild adds a 200x200 child of "p" with a left and a right pin of
// class out, 14 below its top edge. A non-zero out2 adds a second pair 56
// below the top. A non-zero in adds a pair of incoming pins at 150.
func addChild(t *testing.T, r *Router, id string, x, y float64, out, out2, in int) {
	t.Helper()
	require.NoError(t, r.AddShape(Shape{ID: id, Rect: geom.XYWH(x, y, 200, 200), Parent: "p"}))
	pair := func(class int, dy float64) {
		require.NoError(t, r.AddPin(Pin{ID: pinID(id, class, "l"), Shape: id, Class: class, Pos: Position{X: 0, Y: dy}, Dirs: geom.DirLeft}))
		require.NoError(t, r.AddPin(Pin{ID: pinID(id, class, "r"), Shape: id, Class: class, Pos: Position{X: 200, Y: dy}, Dirs: geom.DirRight}))
	}
	pair(out, 14)
	if out2 != 0 {
		pair(out2, 56)
	}
	if in != 0 {
		pair(in, 150)
	}
}

func pinID(shape string, class int, side string) string {
	return fmt.Sprintf("%s.%d%s", shape, class, side)
}

type hierarchyConn struct {
	id       string
	src, dst End
}

// pinDirs returns the directions allowed at the resolved ends of id.
func pinDirs(t *testing.T, r *Router, id string) (geom.Dir, geom.Dir) {
	t.Helper()
	src, dst, ok := r.Endpoints(id)
	require.True(t, ok, id)
	dirs := func(e Resolved) geom.Dir {
		if e.Pin == "" {
			return geom.DirAll
		}
		return e.Dirs.Normalize()
	}
	return dirs(src), dirs(dst)
}

// assertPinDirs checks that the first displayed segment leaves the source
// and the last one leaves the destination on an allowed side.
func assertPinDirs(t *testing.T, pts []geom.Point, src, dst geom.Dir) {
	t.Helper()
	require.GreaterOrEqual(t, len(pts), 2)
	first := geom.Travel(pts[0], pts[1])
	last := geom.Travel(pts[len(pts)-1], pts[len(pts)-2])
	assert.NotEqual(t, geom.DirNone, first, "route %v", pts)
	assert.NotEqual(t, geom.DirNone, last, "route %v", pts)
	assert.True(t, src.Normalize().Has(first), "leaves source %s, allowed %s: %v", first, src, pts)
	assert.True(t, dst.Normalize().Has(last), "leaves destination %s, allowed %s: %v", last, dst, pts)
}

type routedSegment struct {
	conn string
	a, b geom.Point
	ends []geom.Point
}

func segmentsOf(id string, pts []geom.Point) []routedSegment {
	var segs []routedSegment
	for i := 1; i < len(pts); i++ {
		s := routedSegment{conn: id, a: pts[i-1], b: pts[i]}
		if i == 1 {
			s.ends = append(s.ends, pts[0])
		}
		if i == len(pts)-1 {
			s.ends = append(s.ends, pts[len(pts)-1])
		}
		segs = append(segs, s)
	}
	return segs
}

// colinearOverlap returns how far two orthogonal segments share a line.
func colinearOverlap(s, u routedSegment) float64 {
	sa, ok1 := geom.SegmentAxis(s.a, s.b)
	ua, ok2 := geom.SegmentAxis(u.a, u.b)
	if !ok1 || !ok2 || sa != ua {
		return 0
	}
	perp := sa.Other()
	if math.Abs(s.a.Coord(perp)-u.a.Coord(perp)) > geom.Eps {
		return 0
	}
	sLo, sHi := math.Min(s.a.Coord(sa), s.b.Coord(sa)), math.Max(s.a.Coord(sa), s.b.Coord(sa))
	uLo, uHi := math.Min(u.a.Coord(sa), u.b.Coord(sa)), math.Max(u.a.Coord(sa), u.b.Coord(sa))
	return math.Min(sHi, uHi) - math.Max(sLo, uLo)
}

func shareEnd(s, u routedSegment) bool {
	for _, p := range s.ends {
		for _, q := range u.ends {
			if p.Near(q) {
				return true
			}
		}
	}
	return false
}

// assertSeparated fails when segments of different connectors run along
// the same line, unless both are terminal segments at a shared pin.
func assertSeparated(t *testing.T, routes map[string][]geom.Point) {
	t.Helper()
	var all []routedSegment
	for id, pts := range routes {
		all = append(all, segmentsOf(id, pts)...)
	}
	for i, s := range all {
		for _, u := range all[i+1:] {
			if s.conn == u.conn || shareEnd(s, u) {
				continue
			}
			assert.LessOrEqual(t, colinearOverlap(s, u), geom.Eps,
				"%s %v-%v overlaps %s %v-%v", s.conn, s.a, s.b, u.conn, u.a, u.b)
		}
	}
}

// verticalXs returns the x of every interior vertical segment, sorted.
func verticalXs(routes map[string][]geom.Point) []float64 {
	var xs []float64
	for _, pts := range routes {
		for i := 2; i < len(pts)-1; i++ {
			if ax, ok := geom.SegmentAxis(pts[i-1], pts[i]); ok && ax == geom.Vertical {
				xs = append(xs, pts[i].X)
			}
		}
	}
	sort.Float64s(xs)
	return xs
}

func TestHierarchicalScenes(t *testing.T) {
	tests := []struct {
		name     string
		children func(t *testing.T, r *Router) []string
		conns    []hierarchyConn
		exact    map[string][]geom.Point
		check    func(t *testing.T, routes map[string][]geom.Point)
	}{
		{
			name: "two children vertically",
			children: func(t *testing.T, r *Router) []string {
				addChild(t, r, "top", 600, 500, 5, 0, 0)
				addChild(t, r, "bottom", 600, 700, 6, 0, 0)
				return []string{"top", "bottom"}
			},
			conns: []hierarchyConn{
				{"b2t", AtShape("bottom", 6), centres("top")},
				{"t2b", AtShape("top", 5), centres("bottom")},
			},
			exact: map[string][]geom.Point{
				"b2t": {geom.Pt(600, 714), geom.Pt(596, 714), geom.Pt(596, 600), geom.Pt(700, 600)},
				"t2b": {geom.Pt(600, 514), geom.Pt(592, 514), geom.Pt(592, 800), geom.Pt(700, 800)},
			},
		},
		{
			name: "two children vertically all with pins",
			children: func(t *testing.T, r *Router) []string {
				addChild(t, r, "top", 650, 200, 5, 6, 111)
				addChild(t, r, "bottom", 650, 500, 7, 8, 111)
				return []string{"top", "bottom"}
			},
			conns: []hierarchyConn{
				{"b2t", AtShape("bottom", 7), AtShape("top", 111)},
				{"b2t2", AtShape("bottom", 8), AtShape("top", 111)},
				{"t2b", AtShape("top", 5), AtShape("bottom", 111)},
				{"t2b2", AtShape("top", 6), AtShape("bottom", 111)},
			},
			check: func(t *testing.T, routes map[string][]geom.Point) {
				// All four run down the shared left side, one nudging
				// distance apart and a buffer away from the children.
				assert.Equal(t, []float64{634, 638, 642, 646}, verticalXs(routes))
			},
		},
		{
			name: "three children vertically",
			children: func(t *testing.T, r *Router) []string {
				addChild(t, r, "top", 600, 300, 5, 0, 0)
				addChild(t, r, "bottom", 600, 600, 6, 0, 0)
				addChild(t, r, "left", 100, 400, 7, 8, 0)
				return []string{"top", "bottom", "left"}
			},
			conns: []hierarchyConn{
				{"b2t", AtShape("bottom", 6), centres("top")},
				{"t2b", AtShape("top", 5), centres("bottom")},
				{"l2t", AtShape("left", 7), centres("top")},
				{"l2b", AtShape("left", 8), centres("bottom")},
			},
			check: func(t *testing.T, routes map[string][]geom.Point) {
				assert.Equal(t, geom.Pt(600, 614), routes["b2t"][0])
				assert.InDelta(t, 596, routes["b2t"][1].X, geom.Eps)
				assert.Equal(t, geom.Pt(600, 314), routes["t2b"][0])
				assert.InDelta(t, 592, routes["t2b"][1].X, geom.Eps)
				assert.Equal(t, geom.Pt(300, 414), routes["l2t"][0])
				assert.Equal(t, geom.Pt(300, 456), routes["l2b"][0])
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, hierarchyParams)
			require.NoError(t, r.AddShape(Shape{ID: "p", Rect: geom.R(-100, -400, 900, 900)}))
			children := tt.children(t, r)
			for _, c := range tt.conns {
				require.NoError(t, r.AddConnector(Connector{ID: c.id, Src: c.src, Dst: c.dst}))
			}
			commit(t, r)

			inner := geom.R(-100, -400, 900, 900).Expand(-4)
			routes := make(map[string][]geom.Point)
			for _, c := range tt.conns {
				pts := routeOf(t, r, c.id)
				routes[c.id] = pts
				assert.True(t, route.Orthogonal(pts), "%s route %v", c.id, pts)
				for _, p := range pts {
					assert.True(t, inner.Contains(p), "%s point %v outside %v", c.id, p, inner)
				}
				src, dst := pinDirs(t, r, c.id)
				assertPinDirs(t, pts, src, dst)
				for _, id := range children {
					if id == c.src.Shape || id == c.dst.Shape {
						continue
					}
					s, _ := r.Shape(id)
					assertAvoids(t, pts, s.Rect.Expand(4))
				}
			}
			assertSeparated(t, routes)
			for id, want := range tt.exact {
				assert.True(t, route.Equal(routes[id], want), "%s route %v, want %v", id, routes[id], want)
			}
			if tt.check != nil {
				tt.check(t, routes)
			}

			assert.True(t, r.ProcessTransaction().Empty())
			require.NoError(t, r.SetParameters(r.Params()))
			commit(t, r)
			for id, pts := range routes {
				assert.Equal(t, pts, routeOf(t, r, id), id)
			}
		})
	}
}

func TestExclusiveSelfLoop(t *testing.T) {
	r := newTestRouter(t)
	require.NoError(t, r.AddShape(Shape{ID: "a", Rect: geom.R(0, 0, 100, 100)}))
	require.NoError(t, r.AddPin(Pin{ID: "e1", Shape: "a", Class: 1, Pos: Position{X: 1, Y: 0.5, Relative: true}, Exclusive: true}))
	require.NoError(t, r.AddConnector(Connector{ID: "loop", Src: AtShape("a", 1), Dst: AtShape("a", 1)}))
	rep := r.ProcessTransaction()

	require.Contains(t, rep.Failed, "loop")
	require.Error(t, r.Err("loop"))
	pts, ok := r.Route("loop")
	assert.True(t, ok)
	assert.Empty(t, pts)

	// A second exclusive pin gives each end its own.
	require.NoError(t, r.AddPin(Pin{ID: "e2", Shape: "a", Class: 1, Pos: Position{X: 0.5, Y: 1, Relative: true}, Exclusive: true}))
	commit(t, r)
	require.NoError(t, r.Err("loop"))
	src, dst, ok := r.Endpoints("loop")
	require.True(t, ok)
	assert.NotEqual(t, src.Pin, dst.Pin)
	assert.ElementsMatch(t, []string{"e1", "e2"}, []string{src.Pin, dst.Pin})
}
