package visgraph

import (
	"container/heap"
	"errors"
	"math"
	"sort"

	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/route"
)

// Sentinel errors returned by Search.
var (
	// ErrNoNode is returned when an endpoint is not a node of the graph.
	ErrNoNode = errors.New("endpoint is not a graph node")

	// ErrNoPath is returned when the endpoints are disconnected.
	ErrNoPath = errors.New("no path between endpoints")
)

// Query describes one connector search.
type Query struct {
	Src, Dst geom.Point

	// SrcDirs restricts the direction of the first segment, DstDirs the side
	// from which the last segment arrives. DirNone allows everything.
	SrcDirs, DstDirs geom.Dir

	// Transparent lists the shapes the route may pass through.
	Transparent map[string]bool

	// Container, when set, bounds the whole route.
	Container *geom.Rect

	SegmentPenalty   float64
	DirectionPenalty float64
}

func (q *Query) admits(a, b geom.Point, pen []string) bool {
	for _, id := range pen {
		if !q.Transparent[id] {
			return false
		}
	}
	if q.Container != nil && !(q.Container.Contains(a) && q.Container.Contains(b)) {
		return false
	}
	return true
}

// Path is a search result.
type Path struct {
	Points   []geom.Point
	Cost     float64
	Expanded int
}

// =============================================================================
// Priority queue
// =============================================================================

// item is a queue entry. Entries are ordered by cost, then by the position
// of the state and finally by insertion order, so equal-cost alternatives
// are always resolved the same way regardless of how the graph was built.
type item struct {
	state int
	cost  float64
	p     geom.Point
	rank  float64 // secondary key specific to the graph kind
	seq   int
}

type queue []item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.p != b.p {
		return a.p.Less(b.p)
	}
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	return a.seq < b.seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(item)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func finish(pts []geom.Point, cost float64, expanded int) Path {
	r := route.New(pts...)
	r.Simplify()
	return Path{Points: r.Points(), Cost: cost, Expanded: expanded}
}

// =============================================================================
// Orthogonal search
// =============================================================================

type orthState struct {
	p geom.Point
	d geom.Dir // direction of the move into p, DirNone at the source
}

// dirRank orders arrival directions; horizontal arrivals come first.
func dirRank(d geom.Dir) float64 {
	switch d {
	case geom.DirLeft:
		return 0
	case geom.DirRight:
		return 1
	case geom.DirUp:
		return 2
	case geom.DirDown:
		return 3
	}
	return 4
}

func axisOf(d geom.Dir) geom.Axis {
	if d == geom.DirLeft || d == geom.DirRight {
		return geom.Horizontal
	}
	return geom.Vertical
}

// Search finds the cheapest orthogonal path for q. The cost is the path
// length plus the segment penalty per bend plus the direction penalty for
// leaving or entering an endpoint on a disallowed side. Paths never reverse
// along a line.
func (g *Orthogonal) Search(q Query) (Path, error) {
	if !g.HasNode(q.Src) || !g.HasNode(q.Dst) {
		return Path{}, ErrNoNode
	}
	if q.Src.Near(q.Dst) {
		return Path{Points: []geom.Point{q.Src, q.Dst}}, nil
	}
	srcDirs, dstDirs := q.SrcDirs.Normalize(), q.DstDirs.Normalize()

	var (
		states []orthState
		index  = make(map[orthState]int)
		dist   []float64
		prev   []int
		done   []bool
		pq     queue
		seq    int
	)
	visit := func(s orthState, cost float64, from int) {
		id, ok := index[s]
		if !ok {
			id = len(states)
			index[s] = id
			states = append(states, s)
			dist = append(dist, math.Inf(1))
			prev = append(prev, -1)
			done = append(done, false)
		}
		if done[id] || cost >= dist[id] {
			return
		}
		dist[id] = cost
		prev[id] = from
		seq++
		heap.Push(&pq, item{state: id, cost: cost, p: s.p, rank: dirRank(s.d), seq: seq})
	}

	visit(orthState{p: q.Src}, 0, -1)
	var edges []orthEdge
	expanded := 0
	for pq.Len() > 0 {
		it := heap.Pop(&pq).(item)
		if done[it.state] || it.cost > dist[it.state] {
			continue
		}
		done[it.state] = true
		expanded++
		cur := states[it.state]

		if cur.p.Near(q.Dst) {
			var pts []geom.Point
			for id := it.state; id >= 0; id = prev[id] {
				pts = append(pts, states[id].p)
			}
			for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
				pts[i], pts[j] = pts[j], pts[i]
			}
			return finish(pts, it.cost, expanded), nil
		}

		edges = g.neighbours(cur.p, edges)
		for _, e := range edges {
			if cur.d != geom.DirNone && e.dir == cur.d.Opposite() {
				continue
			}
			if !q.admits(cur.p, e.to, e.pen) {
				continue
			}
			cost := it.cost + cur.p.Dist(e.to)
			if cur.d != geom.DirNone && axisOf(cur.d) != axisOf(e.dir) {
				cost += q.SegmentPenalty
			}
			if cur.d == geom.DirNone && !srcDirs.Has(e.dir) {
				cost += q.DirectionPenalty
			}
			if e.to.Near(q.Dst) && !dstDirs.Has(e.dir.Opposite()) {
				cost += q.DirectionPenalty
			}
			visit(orthState{p: e.to, d: e.dir}, cost, it.state)
		}
	}
	return Path{Expanded: expanded}, ErrNoPath
}

// =============================================================================
// Polyline search
// =============================================================================

type polyState struct {
	n    *pnode
	prev *pnode // node the path arrived from, nil at the source
}

// Search finds the cheapest polyline path for q. Every change of direction
// costs the segment penalty.
func (g *Polyline) Search(q Query) (Path, error) {
	srcs, dsts := g.byPoint[q.Src], g.byPoint[q.Dst]
	if len(srcs) == 0 || len(dsts) == 0 {
		return Path{}, ErrNoNode
	}
	if q.Src.Near(q.Dst) {
		return Path{Points: []geom.Point{q.Src, q.Dst}}, nil
	}
	srcDirs, dstArrive := q.SrcDirs.Normalize(), q.DstDirs.Normalize().Opposite()

	var (
		states []polyState
		index  = make(map[polyState]int)
		dist   []float64
		prev   []int
		done   []bool
		pq     queue
		seq    int
	)
	visit := func(s polyState, cost float64, from int) {
		id, ok := index[s]
		if !ok {
			id = len(states)
			index[s] = id
			states = append(states, s)
			dist = append(dist, math.Inf(1))
			prev = append(prev, -1)
			done = append(done, false)
		}
		if done[id] || cost >= dist[id] {
			return
		}
		dist[id] = cost
		prev[id] = from
		seq++
		rank := -Far
		if s.prev != nil {
			rank = s.prev.gen.Point.X
		}
		heap.Push(&pq, item{state: id, cost: cost, p: s.n.gen.Point, rank: rank, seq: seq})
	}

	for _, n := range sortNodes(srcs) {
		visit(polyState{n: n}, 0, -1)
	}
	expanded := 0
	for pq.Len() > 0 {
		it := heap.Pop(&pq).(item)
		if done[it.state] || it.cost > dist[it.state] {
			continue
		}
		done[it.state] = true
		expanded++
		cur := states[it.state]
		p := cur.n.gen.Point

		if p.Near(q.Dst) {
			var pts []geom.Point
			for id := it.state; id >= 0; id = prev[id] {
				pts = append(pts, states[id].n.gen.Point)
			}
			for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
				pts[i], pts[j] = pts[j], pts[i]
			}
			return finish(pts, it.cost, expanded), nil
		}

		for _, e := range sortEdges(cur.n) {
			m := e.other(cur.n)
			mp := m.gen.Point
			if !q.admits(p, mp, e.pen) {
				continue
			}
			if mp.Near(p) {
				visit(polyState{n: m, prev: cur.prev}, it.cost, it.state)
				continue
			}
			v := mp.Sub(p)
			cost := it.cost + e.length
			if cur.prev == nil {
				if !srcDirs.Allows(v) {
					cost += q.DirectionPenalty
				}
			} else if !straight(cur.prev.gen.Point, p, mp) {
				cost += q.SegmentPenalty
			}
			if mp.Near(q.Dst) && !dstArrive.Allows(v) {
				cost += q.DirectionPenalty
			}
			visit(polyState{n: m, prev: cur.n}, cost, it.state)
		}
	}
	return Path{Expanded: expanded}, ErrNoPath
}

// straight reports whether the path a→b→c continues in the same direction.
func straight(a, b, c geom.Point) bool {
	u, v := b.Sub(a), c.Sub(b)
	cross := u.X*v.Y - u.Y*v.X
	lu, lv := math.Hypot(u.X, u.Y), math.Hypot(v.X, v.Y)
	return math.Abs(cross) <= 1e-9*lu*lv && u.X*v.X+u.Y*v.Y > 0
}

func sortNodes(ns []*pnode) []*pnode {
	out := append([]*pnode(nil), ns...)
	sort.Slice(out, func(i, j int) bool { return out[i].gen.Key < out[j].gen.Key })
	return out
}

func sortEdges(n *pnode) []*pedge {
	keys := make([]string, 0, len(n.edges))
	for k := range n.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*pedge, len(keys))
	for i, k := range keys {
		out[i] = n.edges[k]
	}
	return out
}
