package router

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/nudge"
	"github.com/matzehuels/detour/pkg/route"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// txn collects what a commit changed.
type txn struct {
	report *Report

	shapes    map[string]bool // shapes added, removed, moved or resized
	pinShapes map[string]bool // shapes whose pins changed
	dirty     map[string]bool // connectors that must be rerouted

	// regions holds changed geometry. nudgeOnly holds the segments of
	// removed or rerouted connectors: they free channel space but do not
	// affect other searches.
	regions   []geom.Rect
	nudgeOnly []geom.Rect
}

func (t *txn) fail(o op, err error) {
	t.report.Items[o.index].Err = err
}

func (t *txn) point(p geom.Point) {
	t.regions = append(t.regions, geom.Rect{Min: p, Max: p})
}

func (t *txn) vacate(pts []geom.Point) {
	for i := 1; i < len(pts); i++ {
		t.nudgeOnly = append(t.nudgeOnly, geom.BoundsOf(pts[i-1], pts[i]))
	}
}

func (r *Router) next() int {
	r.seq++
	return r.seq
}

// =============================================================================
// Commit
// =============================================================================

// ProcessTransaction applies the queued mutations and brings every affected
// route up to date. Mutations are applied in phases: connector, pin and
// shape deletions, shape moves and resizes, pin moves, shape, pin and
// connector additions, then connector modifications. Within a phase the
// queue order is kept. A mutation that fails is reported in the returned
// Report and leaves the diagram as if it had not been queued; the other
// mutations still apply.
//
// Committing an empty queue changes nothing.
func (r *Router) ProcessTransaction() *Report {
	start := time.Now()
	rep := &Report{Failed: make(map[string]error)}
	if len(r.pending) == 0 && !r.reset {
		rep.Stats = r.stats()
		return rep
	}

	ops := r.pending
	r.pending = nil
	r.hooks.OnCommitStart(len(ops))

	rep.Items = make([]Outcome, len(ops))
	for i, o := range ops {
		rep.Items[i] = Outcome{Op: o.kind.String(), ID: o.id}
	}
	t := &txn{
		report:    rep,
		shapes:    make(map[string]bool),
		pinShapes: make(map[string]bool),
		dirty:     make(map[string]bool),
	}
	r.apply(t, ops)

	r.syncEndGenerators()
	ch := r.space.Flush()
	if r.reset {
		ch.Reset = true
	}
	t.regions = append(t.regions, ch.Regions...)
	r.updateGraphs(ch)

	rerouted := make(map[string]bool)
	for _, id := range r.Connectors() {
		c := r.conns[id]
		if !r.isDirty(t, c) {
			continue
		}
		t.vacate(c.raw)
		t.vacate(c.display)
		rerouted[id] = true
		rep.Rerouted = append(rep.Rerouted, id)
		if err := r.routeConnector(c); err != nil {
			rep.Failed[id] = err
			r.logger.Debug("connector unroutable", "connector", id, "err", err)
		}
	}
	rep.Nudged = r.nudgeRoutes(t, rerouted)

	r.reset = false
	rep.Stats = r.stats()
	rep.Duration = time.Since(start)
	r.hooks.OnCommitComplete(len(rep.Rerouted), len(rep.Failed), rep.Duration)
	r.logger.Debug("committed transaction",
		"ops", len(ops),
		"failed_ops", len(rep.ItemErrors()),
		"rerouted", len(rep.Rerouted),
		"unroutable", len(rep.Failed),
		"nudged", len(rep.Nudged),
		"duration", rep.Duration)
	return rep
}

func (r *Router) apply(t *txn, ops []op) {
	sorted := append([]op(nil), ops...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].kind.phase() < sorted[j].kind.phase()
	})
	for len(sorted) > 0 {
		n := 1
		for n < len(sorted) && sorted[n].kind.phase() == sorted[0].kind.phase() {
			n++
		}
		group := sorted[:n]
		sorted = sorted[n:]

		switch group[0].kind {
		case opDeleteShape:
			r.deleteShapes(t, group)
		case opMoveShape, opResizeShape:
			r.reshape(t, group)
		case opAddShape:
			r.addShapes(t, group)
		default:
			for _, o := range group {
				if err := r.applyOne(t, o); err != nil {
					t.fail(o, err)
				}
			}
		}
	}
}

func (r *Router) applyOne(t *txn, o op) error {
	switch o.kind {
	case opDeleteConnector:
		c, ok := r.conns[o.id]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "connector %q not found", o.id)
		}
		r.release(c.ID)
		t.vacate(c.raw)
		t.vacate(c.display)
		r.space.RemoveGenerator(endKey(c.ID, "src"))
		r.space.RemoveGenerator(endKey(c.ID, "dst"))
		delete(r.conns, o.id)

	case opDeletePin:
		p, ok := r.pins[o.id]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "pin %q not found", o.id)
		}
		r.removePin(t, p)

	case opMovePin:
		p, ok := r.pins[o.id]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "pin %q not found", o.id)
		}
		t.point(p.point)
		p.Pos = o.pos
		r.placePin(t, p)

	case opAddPin:
		if _, ok := r.pins[o.id]; ok {
			return errors.New(errors.ErrCodeDuplicateID, "pin %q already exists", o.id)
		}
		if _, ok := r.shapes[o.pin.Shape]; !ok {
			return errors.New(errors.ErrCodeNotFound, "pin %q: shape %q not found", o.id, o.pin.Shape)
		}
		p := &pinRec{Pin: o.pin, order: r.next()}
		r.pins[p.ID] = p
		r.placePin(t, p)

	case opAddConnector:
		if _, ok := r.conns[o.id]; ok {
			return errors.New(errors.ErrCodeDuplicateID, "connector %q already exists", o.id)
		}
		if err := r.checkDiscipline(o.id, o.conn.Discipline); err != nil {
			return err
		}
		r.conns[o.id] = &connRec{Connector: o.conn, order: r.next()}
		t.dirty[o.id] = true

	case opSetDiscipline:
		c, ok := r.conns[o.id]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "connector %q not found", o.id)
		}
		if err := r.checkDiscipline(o.id, o.disc); err != nil {
			return err
		}
		c.Discipline = o.disc
		t.dirty[o.id] = true

	case opSetEnds:
		c, ok := r.conns[o.id]
		if !ok {
			return errors.New(errors.ErrCodeNotFound, "connector %q not found", o.id)
		}
		c.Src, c.Dst = o.src, o.dst
		t.dirty[o.id] = true
	}
	return nil
}

// =============================================================================
// Shapes
// =============================================================================

func (r *Router) children(id string) []string {
	var out []string
	for cid, s := range r.shapes {
		if s.Parent == id {
			out = append(out, cid)
		}
	}
	sort.Strings(out)
	return out
}

// checkNesting verifies that a shape lies within its parent and contains
// its children.
func (r *Router) checkNesting(id string) error {
	s := r.shapes[id]
	if p, ok := r.shapes[s.Parent]; ok && !p.Rect.ContainsRect(s.Rect) {
		return errors.New(errors.ErrCodeConfiguration, "shape %q would lie outside its parent %q", id, s.Parent)
	}
	for _, cid := range r.children(id) {
		if !s.Rect.ContainsRect(r.shapes[cid].Rect) {
			return errors.New(errors.ErrCodeConfiguration, "shape %q would no longer contain child %q", id, cid)
		}
	}
	return nil
}

func (r *Router) deleteShapes(t *txn, group []op) {
	deleting := make(map[string]op)
	var ids []string
	for _, o := range group {
		if _, ok := r.shapes[o.id]; !ok {
			t.fail(o, errors.New(errors.ErrCodeNotFound, "shape %q not found", o.id))
			continue
		}
		if _, dup := deleting[o.id]; dup {
			t.fail(o, errors.New(errors.ErrCodeNotFound, "shape %q already deleted", o.id))
			continue
		}
		deleting[o.id] = o
		ids = append(ids, o.id)
	}

	// A shape keeping a child that stays cannot go. Refusing one deletion
	// may in turn keep its parent.
	for changed := true; changed; {
		changed = false
		for _, id := range ids {
			o, ok := deleting[id]
			if !ok {
				continue
			}
			for _, cid := range r.children(id) {
				if _, gone := deleting[cid]; !gone {
					t.fail(o, errors.New(errors.ErrCodeConfiguration, "shape %q still has child %q", id, cid))
					delete(deleting, id)
					changed = true
					break
				}
			}
		}
	}

	ids = lo.Filter(ids, func(id string, _ int) bool { _, ok := deleting[id]; return ok })
	depth := lo.SliceToMap(ids, func(id string) (string, int) { return id, len(r.space.Ancestors(id)) })
	sort.SliceStable(ids, func(i, j int) bool { return depth[ids[i]] > depth[ids[j]] })
	for _, id := range ids {
		for _, p := range r.pinsOf(id) {
			r.removePin(t, p)
		}
		r.space.RemoveShape(id)
		delete(r.shapes, id)
		t.shapes[id] = true
	}
}

func (r *Router) reshape(t *txn, group []op) {
	before := make(map[string]geom.Rect)
	applied := make(map[string][]op)
	var ids []string
	for _, o := range group {
		s, ok := r.shapes[o.id]
		if !ok {
			t.fail(o, errors.New(errors.ErrCodeNotFound, "shape %q not found", o.id))
			continue
		}
		if _, seen := before[o.id]; !seen {
			before[o.id] = s.Rect
			ids = append(ids, o.id)
		}
		if o.kind == opMoveShape {
			s.Rect = s.Rect.Translate(o.dx, o.dy)
		} else {
			s.Rect = o.rect
		}
		applied[o.id] = append(applied[o.id], o)
	}

	// Revert shapes that break the hierarchy until it holds again.
	reverted := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, id := range ids {
			if reverted[id] {
				continue
			}
			if err := r.checkNesting(id); err != nil {
				r.shapes[id].Rect = before[id]
				for _, o := range applied[id] {
					t.fail(o, err)
				}
				reverted[id] = true
				changed = true
			}
		}
	}

	for _, id := range ids {
		s := r.shapes[id]
		if reverted[id] || s.Rect == before[id] {
			continue
		}
		r.space.SetShape(visgraph.Obstacle{ID: id, Rect: s.Rect, Parent: s.Parent})
		t.shapes[id] = true
		for _, p := range r.pinsOf(id) {
			t.point(p.point)
			r.placePin(t, p)
		}
	}
}

func (r *Router) addShapes(t *txn, group []op) {
	queued := make(map[string]bool)
	var todo []op
	for _, o := range group {
		if _, ok := r.shapes[o.id]; ok || queued[o.id] {
			t.fail(o, errors.New(errors.ErrCodeDuplicateID, "shape %q already exists", o.id))
			continue
		}
		queued[o.id] = true
		todo = append(todo, o)
	}

	// Parents go in before their children, whatever the queue order.
	for progress := true; progress && len(todo) > 0; {
		progress = false
		var rest []op
		for _, o := range todo {
			s := o.shape
			if s.Parent != "" {
				p, ok := r.shapes[s.Parent]
				if !ok && queued[s.Parent] {
					rest = append(rest, o)
					continue
				}
				if !ok {
					t.fail(o, errors.New(errors.ErrCodeNotFound, "shape %q: parent %q not found", s.ID, s.Parent))
					delete(queued, s.ID)
					progress = true
					continue
				}
				if !p.Rect.ContainsRect(s.Rect) {
					t.fail(o, errors.New(errors.ErrCodeConfiguration, "shape %q lies outside its parent %q", s.ID, s.Parent))
					delete(queued, s.ID)
					progress = true
					continue
				}
			}
			r.shapes[s.ID] = &shapeRec{Shape: s, order: r.next()}
			r.space.SetShape(visgraph.Obstacle{ID: s.ID, Rect: s.Rect, Parent: s.Parent})
			t.shapes[s.ID] = true
			delete(queued, s.ID)
			progress = true
		}
		todo = rest
	}
	for _, o := range todo {
		t.fail(o, errors.New(errors.ErrCodeConfiguration, "shape %q: parent chain %q forms a cycle", o.id, o.shape.Parent))
	}
}

// =============================================================================
// Pins
// =============================================================================

func (r *Router) pinsOf(shape string) []*pinRec {
	var out []*pinRec
	for _, p := range r.pins {
		if p.Shape == shape {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// placePin recomputes the absolute position of p and its generator.
func (r *Router) placePin(t *txn, p *pinRec) {
	p.point = p.Pos.point(r.shapes[p.Shape].Rect)
	r.space.SetGenerator(visgraph.Generator{Key: pinKey(p.ID), Kind: visgraph.GenPin, Point: p.point, Owner: p.Shape})
	t.point(p.point)
	t.pinShapes[p.Shape] = true
}

func (r *Router) removePin(t *txn, p *pinRec) {
	if p.bound != "" {
		t.dirty[p.bound] = true
	}
	t.point(p.point)
	t.pinShapes[p.Shape] = true
	r.space.RemoveGenerator(pinKey(p.ID))
	delete(r.pins, p.ID)
}

// =============================================================================
// Generators
// =============================================================================

func pinKey(id string) string    { return "pin/" + id }
func centreKey(id string) string { return "centre/" + id }
func endKey(id, side string) string {
	return "end/" + id + "/" + side
}

// syncEndGenerators registers fixed connector ends and the centres of
// shapes that a connector attaches to without a centre pin.
func (r *Router) syncEndGenerators() {
	classes := make(map[string]map[int]bool)
	for _, p := range r.pins {
		if classes[p.Shape] == nil {
			classes[p.Shape] = make(map[int]bool)
		}
		classes[p.Shape][p.Class] = true
	}

	need := make(map[string]bool)
	for id, c := range r.conns {
		for _, end := range []struct {
			side string
			e    End
		}{{"src", c.Src}, {"dst", c.Dst}} {
			key := endKey(id, end.side)
			if end.e.Shape == "" {
				r.space.SetGenerator(visgraph.Generator{Key: key, Kind: visgraph.GenPoint, Point: end.e.Point})
				continue
			}
			r.space.RemoveGenerator(key)
			if _, ok := r.shapes[end.e.Shape]; ok && end.e.Class == CentreClass && !classes[end.e.Shape][CentreClass] {
				need[end.e.Shape] = true
			}
		}
	}

	for id := range r.centres {
		if !need[id] {
			r.space.RemoveGenerator(centreKey(id))
			delete(r.centres, id)
		}
	}
	for id := range need {
		r.space.SetGenerator(visgraph.Generator{
			Key:   centreKey(id),
			Kind:  visgraph.GenPin,
			Point: r.shapes[id].Rect.Centre(),
			Owner: id,
		})
		r.centres[id] = true
	}
}

func (r *Router) updateGraphs(ch visgraph.Changes) {
	if r.orth != nil {
		start := time.Now()
		r.orth.Update(ch)
		s := r.orth.Stats()
		r.hooks.OnGraphUpdate(Orthogonal.String(), s.Nodes, s.Edges, time.Since(start))
	}
	if r.poly != nil {
		start := time.Now()
		r.poly.Update(ch)
		s := r.poly.Stats()
		r.hooks.OnGraphUpdate(Polyline.String(), s.Nodes, s.Edges, time.Since(start))
	}
}

// =============================================================================
// Dirty connectors and nudging
// =============================================================================

// isDirty reports whether c must be rerouted: it is new or was modified, an
// end's shape or pins changed, its route touches changed geometry, or it
// could not be routed before.
func (r *Router) isDirty(t *txn, c *connRec) bool {
	if r.reset || t.dirty[c.ID] || !c.routed || c.err != nil {
		return true
	}
	for _, e := range []End{c.Src, c.Dst} {
		if e.Shape != "" && (t.shapes[e.Shape] || t.pinShapes[e.Shape]) {
			return true
		}
	}
	for _, z := range t.regions {
		if route.Intersects(c.raw, z) || route.Intersects(c.display, z) {
			return true
		}
	}
	return false
}

func touches(c *connRec, regions []geom.Rect) bool {
	for _, z := range regions {
		if route.Intersects(c.raw, z) || route.Intersects(c.display, z) {
			return true
		}
		for _, ch := range c.channels {
			if ch.Intersects(z) {
				return true
			}
		}
	}
	return false
}

// nudgeRoutes recomputes the displayed routes of the orthogonal connectors
// that share a channel with a rerouted connector or changed geometry.
// Polyline routes are displayed as found.
func (r *Router) nudgeRoutes(t *txn, rerouted map[string]bool) []string {
	opt := nudge.Options{
		Ideal:            r.params.IdealNudging,
		ShapeSegments:    r.params.NudgeShapeSegments,
		TouchingColinear: r.params.NudgeTouchingColinear,
	}
	regions := append(append([]geom.Rect(nil), t.regions...), t.nudgeOnly...)

	var conns []nudge.Conn
	seeds := make(map[string]bool)
	for _, id := range r.Connectors() {
		c := r.conns[id]
		if c.err != nil || len(c.raw) == 0 {
			continue
		}
		if c.Discipline != Orthogonal {
			if rerouted[id] {
				c.display = clonePoints(c.raw)
			}
			continue
		}
		container, _ := r.container(c)
		conns = append(conns, nudge.Conn{
			ID:         id,
			Order:      c.order,
			Points:     c.raw,
			SrcMovable: c.src.Movable,
			DstMovable: c.dst.Movable,
			SrcDirs:    c.src.Dirs,
			DstDirs:    c.dst.Dirs,
			Container:  container,
		})
		if r.reset || rerouted[id] || touches(c, regions) {
			seeds[id] = true
		}
	}
	if len(seeds) == 0 {
		return nil
	}

	start := time.Now()
	scope := nudge.Scope(conns, seeds, r.space, opt)
	subset := lo.Filter(conns, func(c nudge.Conn, _ int) bool { return scope[c.ID] })
	res := nudge.Nudge(subset, r.space, opt)

	ids := make([]string, 0, len(subset))
	for _, nc := range subset {
		c := r.conns[nc.ID]
		c.display = res.Routes[nc.ID]
		c.channels = res.Channels[nc.ID]
		ids = append(ids, nc.ID)
	}
	r.hooks.OnNudge(len(subset), time.Since(start))
	return ids
}
