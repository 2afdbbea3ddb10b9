package visgraph

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/matzehuels/detour/pkg/geom"
)

// Far bounds the plane. Rays that hit nothing end at ±Far; diagram
// coordinates are expected to stay well inside it.
const Far = 1e9

// pad keeps index rectangles non-degenerate. It is larger than geom.Eps so
// boundary contacts within tolerance are still reported by the index.
const pad = 1e-6

// =============================================================================
// Obstacles
// =============================================================================

// Obstacle is a shape as seen by the graph builders.
type Obstacle struct {
	ID     string
	Rect   geom.Rect
	Parent string // empty for top-level shapes
}

type shape struct {
	Obstacle
	buffered geom.Rect
	children int
}

// Bounds implements rtreego.Spatial.
func (s *shape) Bounds() rtreego.Rect {
	return toRect(s.buffered)
}

// toRect converts r to an index rectangle, padding it so zero-width
// rectangles (points, axis-aligned segments) stay valid.
func toRect(r geom.Rect) rtreego.Rect {
	lo := rtreego.Point{r.Min.X - pad, r.Min.Y - pad}
	lengths := []float64{math.Max(r.Width(), 0) + 2*pad, math.Max(r.Height(), 0) + 2*pad}
	rect, err := rtreego.NewRect(lo, lengths)
	if err != nil {
		// Only reachable with NaN coordinates.
		panic(fmt.Sprintf("visgraph: invalid rectangle %v: %v", r, err))
	}
	return rect
}

// =============================================================================
// Generators
// =============================================================================

// GenKind identifies what produced a generator point.
type GenKind uint8

const (
	// GenCorner is a corner of a shape's buffered rectangle.
	GenCorner GenKind = iota
	// GenInner is a corner of a container's inner rectangle.
	GenInner
	// GenPin is a connection pin.
	GenPin
	// GenPoint is a free connector endpoint.
	GenPoint
)

// Generator is a point the graphs are built from: every generator becomes a
// graph node and, in the orthogonal graph, casts a horizontal and a vertical
// ray.
type Generator struct {
	Key   string
	Kind  GenKind
	Point geom.Point
	Owner string // owning shape, empty for GenPoint
}

// =============================================================================
// Space
// =============================================================================

// Changes describes what moved since the last flush: the regions whose
// geometry changed and the keys of generators that were added, moved or
// removed.
type Changes struct {
	Regions []geom.Rect
	Gens    map[string]bool
	// Reset is set when the whole space must be regenerated, for example
	// after the buffer distance changed.
	Reset bool
}

// Empty reports whether c carries no change.
func (c Changes) Empty() bool {
	return len(c.Regions) == 0 && len(c.Gens) == 0 && !c.Reset
}

// Space is the obstacle set shared by the orthogonal and polyline graphs.
// Each shape contributes its rectangle expanded by the buffer distance;
// containers additionally contribute the corners of their rectangle shrunk
// by the buffer. Shapes are indexed in an R-tree.
type Space struct {
	buffer  float64
	shapes  map[string]*shape
	index   *rtreego.Rtree
	gens    map[string]*Generator
	pending Changes
}

// NewSpace creates an empty space with the given buffer distance.
func NewSpace(buffer float64) *Space {
	return &Space{
		buffer: buffer,
		shapes: make(map[string]*shape),
		index:  rtreego.NewTree(2, 25, 50),
		gens:   make(map[string]*Generator),
		pending: Changes{
			Gens: make(map[string]bool),
		},
	}
}

// Buffer returns the buffer distance.
func (s *Space) Buffer() float64 { return s.buffer }

// SetBuffer changes the buffer distance and schedules a full regeneration.
func (s *Space) SetBuffer(d float64) {
	if d == s.buffer {
		return
	}
	s.buffer = d
	for _, id := range s.ShapeIDs() {
		sh := s.shapes[id]
		s.index.Delete(sh)
		sh.buffered = sh.Rect.Expand(d)
		s.index.Insert(sh)
		s.syncCorners(sh)
	}
	s.pending.Reset = true
}

// SetShape adds o or updates its rectangle. The parent of an existing shape
// cannot change and must already be in the space.
func (s *Space) SetShape(o Obstacle) {
	if sh, ok := s.shapes[o.ID]; ok {
		s.pending.Regions = append(s.pending.Regions, sh.buffered)
		s.index.Delete(sh)
		sh.Rect = o.Rect
		sh.buffered = o.Rect.Expand(s.buffer)
		s.index.Insert(sh)
		s.pending.Regions = append(s.pending.Regions, sh.buffered)
		s.syncCorners(sh)
		return
	}

	sh := &shape{Obstacle: o, buffered: o.Rect.Expand(s.buffer)}
	s.shapes[o.ID] = sh
	s.index.Insert(sh)
	s.pending.Regions = append(s.pending.Regions, sh.buffered)
	s.syncCorners(sh)
	if p, ok := s.shapes[o.Parent]; ok {
		p.children++
		if p.children == 1 {
			s.syncCorners(p)
		}
	}
}

// RemoveShape drops a shape and its corner generators.
func (s *Space) RemoveShape(id string) {
	sh, ok := s.shapes[id]
	if !ok {
		return
	}
	s.index.Delete(sh)
	delete(s.shapes, id)
	s.pending.Regions = append(s.pending.Regions, sh.buffered)
	for i := range 4 {
		s.RemoveGenerator(cornerKey(id, GenCorner, i))
		s.RemoveGenerator(cornerKey(id, GenInner, i))
	}
	if p, ok := s.shapes[sh.Parent]; ok {
		p.children--
		if p.children == 0 {
			s.syncCorners(p)
		}
	}
}

// Shape returns the obstacle registered under id.
func (s *Space) Shape(id string) (Obstacle, bool) {
	sh, ok := s.shapes[id]
	if !ok {
		return Obstacle{}, false
	}
	return sh.Obstacle, true
}

// ShapeIDs returns all shape ids in ascending order.
func (s *Space) ShapeIDs() []string {
	ids := make([]string, 0, len(s.shapes))
	for id := range s.shapes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Buffered returns the buffer-expanded rectangle of a shape.
func (s *Space) Buffered(id string) (geom.Rect, bool) {
	sh, ok := s.shapes[id]
	if !ok {
		return geom.Rect{}, false
	}
	return sh.buffered, true
}

// Inner returns the rectangle of a shape shrunk by the buffer distance. It
// is the space available to routes kept inside the shape.
func (s *Space) Inner(id string) (geom.Rect, bool) {
	sh, ok := s.shapes[id]
	if !ok {
		return geom.Rect{}, false
	}
	return sh.Rect.Expand(-s.buffer), true
}

// Ancestors returns the parent chain of id, nearest first.
func (s *Space) Ancestors(id string) []string {
	var out []string
	sh, ok := s.shapes[id]
	for ok && sh.Parent != "" {
		out = append(out, sh.Parent)
		sh, ok = s.shapes[sh.Parent]
	}
	return out
}

// Containing returns the shapes whose buffered rectangle strictly contains
// p, sorted by id.
func (s *Space) Containing(p geom.Point) []string {
	var out []string
	for _, sp := range s.index.SearchIntersect(toRect(geom.Rect{Min: p, Max: p})) {
		sh := sp.(*shape)
		if sh.buffered.ContainsStrict(p) {
			out = append(out, sh.ID)
		}
	}
	sort.Strings(out)
	return out
}

// crossed returns the shapes whose buffered interior the segment ab
// crosses, sorted by id.
func (s *Space) crossed(a, b geom.Point) []string {
	var out []string
	for _, sp := range s.index.SearchIntersect(toRect(geom.BoundsOf(a, b))) {
		sh := sp.(*shape)
		if sh.buffered.SegmentCrossesInterior(a, b) {
			out = append(out, sh.ID)
		}
	}
	sort.Strings(out)
	return out
}

// near returns the shapes whose buffered rectangle touches r.
func (s *Space) near(r geom.Rect) []*shape {
	hits := s.index.SearchIntersect(toRect(r))
	out := make([]*shape, 0, len(hits))
	for _, sp := range hits {
		out = append(out, sp.(*shape))
	}
	return out
}

// Blockers returns the buffered rectangles touching r. The nudger uses it
// to find channel bounds.
func (s *Space) Blockers(r geom.Rect) []geom.Rect {
	var out []geom.Rect
	for _, sh := range s.near(r) {
		out = append(out, sh.buffered)
	}
	return out
}

// SetGenerator adds or moves a generator.
func (s *Space) SetGenerator(g Generator) {
	if old, ok := s.gens[g.Key]; ok && *old == g {
		return
	}
	cp := g
	s.gens[g.Key] = &cp
	s.pending.Gens[g.Key] = true
}

// RemoveGenerator drops a generator.
func (s *Space) RemoveGenerator(key string) {
	if _, ok := s.gens[key]; !ok {
		return
	}
	delete(s.gens, key)
	s.pending.Gens[key] = true
}

// Generator returns the generator registered under key.
func (s *Space) Generator(key string) (Generator, bool) {
	g, ok := s.gens[key]
	if !ok {
		return Generator{}, false
	}
	return *g, true
}

// GeneratorKeys returns all generator keys in ascending order.
func (s *Space) GeneratorKeys() []string {
	keys := make([]string, 0, len(s.gens))
	for k := range s.gens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Transparency returns the shapes whose interior rays from g may cross.
// Corners see through the ancestors of their shape, pins and inner corners
// through their shape and its ancestors, free points through every shape
// containing them.
func (s *Space) Transparency(g Generator) []string {
	var out []string
	switch g.Kind {
	case GenCorner:
		out = s.Ancestors(g.Owner)
	case GenInner, GenPin:
		out = append([]string{g.Owner}, s.Ancestors(g.Owner)...)
	case GenPoint:
		out = s.Containing(g.Point)
	}
	sort.Strings(out)
	return out
}

// Flush returns the changes accumulated since the previous call. Free
// endpoints lying in a changed region are reported as changed generators,
// since the shapes containing them may differ now.
func (s *Space) Flush() Changes {
	ch := s.pending
	for _, key := range s.GeneratorKeys() {
		g := s.gens[key]
		if g.Kind != GenPoint {
			continue
		}
		for _, z := range ch.Regions {
			if z.Contains(g.Point) {
				ch.Gens[key] = true
				break
			}
		}
	}
	s.pending = Changes{Gens: make(map[string]bool)}
	return ch
}

func cornerKey(id string, kind GenKind, i int) string {
	if kind == GenInner {
		return fmt.Sprintf("%s#i%d", id, i)
	}
	return fmt.Sprintf("%s#c%d", id, i)
}

// syncCorners registers the corner generators of sh, and the inner corners
// while it has children.
func (s *Space) syncCorners(sh *shape) {
	for i, p := range sh.buffered.Corners() {
		s.SetGenerator(Generator{Key: cornerKey(sh.ID, GenCorner, i), Kind: GenCorner, Point: p, Owner: sh.ID})
	}
	if sh.children == 0 {
		for i := range 4 {
			s.RemoveGenerator(cornerKey(sh.ID, GenInner, i))
		}
		return
	}
	for i, p := range sh.Rect.Expand(-s.buffer).Corners() {
		s.SetGenerator(Generator{Key: cornerKey(sh.ID, GenInner, i), Kind: GenInner, Point: p, Owner: sh.ID})
	}
}
