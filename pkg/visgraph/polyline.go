package visgraph

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/matzehuels/detour/pkg/geom"
)

type pnode struct {
	gen    Generator
	trans  []string
	edges  map[string]*pedge // keyed by the other end's generator key
	sights map[string]*sight // same keys, visible or not
}

// sight is the segment between two nodes. Every evaluated pair has one, so
// a changed region finds exactly the pairs it may block or unblock.
type sight struct {
	a, b *pnode
	box  rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (s *sight) Bounds() rtreego.Rect { return s.box }

type pedge struct {
	a, b   *pnode
	length float64
	pen    []string
}

func (e *pedge) other(n *pnode) *pnode {
	if e.a == n {
		return e.b
	}
	return e.a
}

// Polyline is the visibility graph used for polyline routing. Its nodes are
// the generators; two nodes are joined when the straight segment between
// them only crosses buffered shapes one of its ends is transparent to.
type Polyline struct {
	space   *Space
	nodes   map[string]*pnode
	byPoint map[geom.Point][]*pnode
	sights  *rtreego.Rtree
}

// NewPolyline creates an empty graph over space.
func NewPolyline(space *Space) *Polyline {
	return &Polyline{
		space:   space,
		nodes:   make(map[string]*pnode),
		byPoint: make(map[geom.Point][]*pnode),
		sights:  rtreego.NewTree(2, 25, 50),
	}
}

// Update regenerates nodes of changed generators and re-evaluates the
// visibility of every pair whose segment touches a changed region.
func (g *Polyline) Update(ch Changes) {
	if ch.Reset {
		g.nodes = make(map[string]*pnode)
		g.byPoint = make(map[geom.Point][]*pnode)
		g.sights = rtreego.NewTree(2, 25, 50)
		ch = Changes{Gens: make(map[string]bool)}
		for _, key := range g.space.GeneratorKeys() {
			ch.Gens[key] = true
		}
	}

	changed := sortedKeys(ch.Gens)
	for _, key := range changed {
		if n, ok := g.nodes[key]; ok {
			g.removeNode(n)
		}
	}
	var added []*pnode
	for _, key := range changed {
		gen, ok := g.space.Generator(key)
		if !ok {
			continue
		}
		n := &pnode{
			gen:    gen,
			trans:  g.space.Transparency(gen),
			edges:  make(map[string]*pedge),
			sights: make(map[string]*sight),
		}
		g.nodes[key] = n
		g.byPoint[gen.Point] = append(g.byPoint[gen.Point], n)
		added = append(added, n)
	}

	// Pairs of unchanged nodes only need another look when their sight
	// line crosses a changed region.
	seen := make(map[*sight]bool)
	for _, z := range ch.Regions {
		for _, sp := range g.sights.SearchIntersect(toRect(z)) {
			st := sp.(*sight)
			if seen[st] || ch.Gens[st.a.gen.Key] || ch.Gens[st.b.gen.Key] {
				continue
			}
			seen[st] = true
			if touchesAny(st.a.gen.Point, st.b.gen.Point, ch.Regions) {
				g.evaluate(st.a, st.b)
			}
		}
	}

	keys := g.keys()
	for _, n := range added {
		for _, k := range keys {
			if k == n.gen.Key || (ch.Gens[k] && k < n.gen.Key) {
				continue
			}
			g.evaluate(n, g.nodes[k])
		}
	}
}

func touchesAny(a, b geom.Point, regions []geom.Rect) bool {
	bb := geom.BoundsOf(a, b)
	for _, z := range regions {
		if bb.Intersects(z) && z.SegmentIntersects(a, b) {
			return true
		}
	}
	return false
}

// evaluate adds, updates or removes the edge between a and b.
func (g *Polyline) evaluate(a, b *pnode) {
	if _, ok := a.sights[b.gen.Key]; !ok {
		st := &sight{a: a, b: b, box: toRect(geom.BoundsOf(a.gen.Point, b.gen.Point))}
		a.sights[b.gen.Key] = st
		b.sights[a.gen.Key] = st
		g.sights.Insert(st)
	}
	pen := g.space.crossed(a.gen.Point, b.gen.Point)
	if !subset(pen, a.trans, b.trans) {
		delete(a.edges, b.gen.Key)
		delete(b.edges, a.gen.Key)
		return
	}
	e := &pedge{a: a, b: b, length: a.gen.Point.Dist(b.gen.Point), pen: pen}
	a.edges[b.gen.Key] = e
	b.edges[a.gen.Key] = e
}

func (g *Polyline) removeNode(n *pnode) {
	for k := range n.edges {
		if o, ok := g.nodes[k]; ok {
			delete(o.edges, n.gen.Key)
		}
	}
	for k, st := range n.sights {
		if o, ok := g.nodes[k]; ok {
			delete(o.sights, n.gen.Key)
		}
		g.sights.Delete(st)
	}
	delete(g.nodes, n.gen.Key)
	list := g.byPoint[n.gen.Point]
	for i, m := range list {
		if m == n {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(g.byPoint, n.gen.Point)
	} else {
		g.byPoint[n.gen.Point] = list
	}
}

func (g *Polyline) keys() []string {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasNode reports whether some generator sits at p.
func (g *Polyline) HasNode(p geom.Point) bool {
	return len(g.byPoint[p]) > 0
}

// Stats returns node and edge counts.
func (g *Polyline) Stats() Stats {
	st := Stats{Nodes: len(g.nodes)}
	for _, n := range g.nodes {
		st.Edges += len(n.edges)
	}
	st.Edges /= 2
	return st
}

// Edges returns every edge ordered by the keys of its ends.
func (g *Polyline) Edges() []Edge {
	var out []Edge
	for _, ka := range g.keys() {
		a := g.nodes[ka]
		others := make([]string, 0, len(a.edges))
		for kb := range a.edges {
			if kb > ka {
				others = append(others, kb)
			}
		}
		sort.Strings(others)
		for _, kb := range others {
			e := a.edges[kb]
			out = append(out, Edge{A: a.gen.Point, B: e.other(a).gen.Point, Pen: e.pen})
		}
	}
	return out
}

// subset reports whether every id in pen appears in one of the sorted sets.
func subset(pen []string, sets ...[]string) bool {
	for _, id := range pen {
		found := false
		for _, s := range sets {
			i := sort.SearchStrings(s, id)
			if i < len(s) && s[i] == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
