package router

import (
	stderrors "errors"
	"time"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// candidates lists the points an end may resolve to, in pin creation order.
// Exclusive pins held by another connector are skipped.
func (r *Router) candidates(conn string, e End) ([]Resolved, error) {
	if e.Shape == "" {
		return []Resolved{{Point: e.Point}}, nil
	}
	s, ok := r.shapes[e.Shape]
	if !ok {
		return nil, errors.New(errors.ErrCodeResolution, "connector %q: shape %q not found", conn, e.Shape)
	}

	var all, free []Resolved
	for _, p := range r.pinsOf(e.Shape) {
		if p.Class != e.Class {
			continue
		}
		res := Resolved{Point: p.point, Dirs: p.Dirs, Shape: p.Shape, Pin: p.ID, Movable: !p.Fixed}
		all = append(all, res)
		if p.Exclusive && p.bound != "" && p.bound != conn {
			continue
		}
		free = append(free, res)
	}
	switch {
	case len(free) > 0:
		return free, nil
	case len(all) > 0:
		return nil, errors.New(errors.ErrCodeResolution, "connector %q: every pin of class %d on %q is taken", conn, e.Class, e.Shape)
	case e.Class == CentreClass:
		return []Resolved{{Point: s.Rect.Centre(), Shape: s.ID, Movable: true}}, nil
	}
	return nil, errors.New(errors.ErrCodeResolution, "connector %q: shape %q has no pin of class %d", conn, e.Shape, e.Class)
}

// transparent returns the shapes a connector may pass through: the shapes
// its ends attach to with their ancestors, and the shapes around a fixed
// end.
func (r *Router) transparent(c *connRec) map[string]bool {
	m := make(map[string]bool)
	for _, e := range []End{c.Src, c.Dst} {
		if e.Shape == "" {
			for _, id := range r.space.Containing(e.Point) {
				m[id] = true
			}
			continue
		}
		m[e.Shape] = true
		for _, id := range r.space.Ancestors(e.Shape) {
			m[id] = true
		}
	}
	return m
}

// container returns the inner rectangle of the deepest shape strictly
// enclosing both ends of c, if any.
func (r *Router) container(c *connRec) (*geom.Rect, string) {
	if c.Src.Shape == "" || c.Dst.Shape == "" {
		return nil, ""
	}
	dst := make(map[string]bool)
	for _, id := range r.space.Ancestors(c.Dst.Shape) {
		dst[id] = true
	}
	for _, id := range r.space.Ancestors(c.Src.Shape) {
		if dst[id] {
			inner, ok := r.space.Inner(id)
			if !ok {
				return nil, ""
			}
			return &inner, id
		}
	}
	return nil, ""
}

func (r *Router) search(d RoutingType, q visgraph.Query) (visgraph.Path, error) {
	switch {
	case d == Orthogonal && r.orth != nil:
		return r.orth.Search(q)
	case d == Polyline && r.poly != nil:
		return r.poly.Search(q)
	}
	return visgraph.Path{}, errors.New(errors.ErrCodeConfiguration, "%s routing is not enabled", d)
}

// routeConnector resolves both ends of c and searches the cheapest route
// between any pair of candidates. Ties go to the earlier source candidate,
// then the earlier destination candidate.
func (r *Router) routeConnector(c *connRec) error {
	r.release(c.ID)
	c.routed = true
	c.raw, c.display, c.channels = nil, nil, nil
	c.src, c.dst = Resolved{}, Resolved{}
	c.err = r.resolveAndSearch(c)
	return c.err
}

func (r *Router) resolveAndSearch(c *connRec) error {
	srcs, err := r.candidates(c.ID, c.Src)
	if err != nil {
		return err
	}
	dsts, err := r.candidates(c.ID, c.Dst)
	if err != nil {
		return err
	}
	container, cid := r.container(c)
	q := visgraph.Query{
		Transparent:      r.transparent(c),
		Container:        container,
		SegmentPenalty:   r.params.SegmentPenalty,
		DirectionPenalty: r.params.DirectionPenalty,
	}

	var (
		best   visgraph.Path
		bi, bj = -1, -1
		pairs  int
		last   error
	)
	for i, s := range srcs {
		for j, d := range dsts {
			if s.Pin != "" && s.Pin == d.Pin && r.pins[s.Pin].Exclusive {
				continue
			}
			pairs++
			q.Src, q.Dst = s.Point, d.Point
			q.SrcDirs, q.DstDirs = s.Dirs, d.Dirs
			start := time.Now()
			p, err := r.search(c.Discipline, q)
			r.hooks.OnSearch(c.ID, p.Expanded, time.Since(start), err)
			if err != nil {
				last = err
				continue
			}
			if bi < 0 || p.Cost < best.Cost {
				best, bi, bj = p, i, j
			}
		}
	}
	if pairs == 0 {
		return errors.New(errors.ErrCodeResolution, "connector %q: exclusive pin %q cannot serve both ends", c.ID, srcs[0].Pin)
	}
	if bi < 0 {
		return r.searchError(c, last, cid)
	}

	c.src, c.dst = srcs[bi], dsts[bj]
	r.bind(c.ID, c.src)
	r.bind(c.ID, c.dst)
	c.raw = best.Points
	return nil
}

func (r *Router) searchError(c *connRec, err error, container string) error {
	switch {
	case stderrors.Is(err, visgraph.ErrNoPath) && container != "":
		return errors.Wrap(errors.ErrCodeResolution, err, "connector %q: no route inside %q", c.ID, container)
	case stderrors.Is(err, visgraph.ErrNoPath):
		return errors.Wrap(errors.ErrCodeUnroutable, err, "connector %q: no route from %s to %s", c.ID, c.Src, c.Dst)
	case errors.GetCode(err) != "":
		return err
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "connector %q", c.ID)
}

func (r *Router) bind(conn string, res Resolved) {
	if p, ok := r.pins[res.Pin]; ok && p.Exclusive {
		p.bound = conn
	}
}

func (r *Router) release(conn string) {
	for _, p := range r.pins {
		if p.bound == conn {
			p.bound = ""
		}
	}
}
