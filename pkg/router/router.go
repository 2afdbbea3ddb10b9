package router

import (
	"io"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/observability"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// =============================================================================
// Options
// =============================================================================

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger commits report to. Commits log at debug level.
func WithLogger(l *log.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHooks sets the observability hooks.
func WithHooks(h observability.RouterHooks) Option {
	return func(r *Router) {
		if h != nil {
			r.hooks = h
		}
	}
}

// =============================================================================
// Router
// =============================================================================

type shapeRec struct {
	Shape
	order int
}

type pinRec struct {
	Pin
	order int
	point geom.Point
	bound string // connector holding an exclusive pin
}

type connRec struct {
	Connector
	order    int
	raw      []geom.Point
	display  []geom.Point
	channels []geom.Rect
	src, dst Resolved
	err      error
	routed   bool
}

// Router holds a diagram and keeps its connector routes up to date. Changes
// are queued by the mutation methods and applied together by
// ProcessTransaction. A Router is not safe for concurrent use.
type Router struct {
	params Parameters
	logger *log.Logger
	hooks  observability.RouterHooks

	space *visgraph.Space
	orth  *visgraph.Orthogonal
	poly  *visgraph.Polyline

	shapes  map[string]*shapeRec
	pins    map[string]*pinRec
	conns   map[string]*connRec
	centres map[string]bool // shapes with an implicit centre generator
	seq     int

	pending []op
	reset   bool
}

// New creates an empty router.
func New(params Parameters, opts ...Option) (*Router, error) {
	if err := params.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r := &Router{
		params:  params,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		hooks:   observability.NoopRouterHooks{},
		space:   visgraph.NewSpace(params.ShapeBuffer),
		shapes:  make(map[string]*shapeRec),
		pins:    make(map[string]*pinRec),
		conns:   make(map[string]*connRec),
		centres: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.syncGraphs()
	return r, nil
}

// syncGraphs creates the graphs of the enabled disciplines and drops the
// others.
func (r *Router) syncGraphs() {
	if r.params.Routing.Has(Orthogonal) {
		if r.orth == nil {
			r.orth = visgraph.NewOrthogonal(r.space)
			r.reset = true
		}
	} else {
		r.orth = nil
	}
	if r.params.Routing.Has(Polyline) {
		if r.poly == nil {
			r.poly = visgraph.NewPolyline(r.space)
			r.reset = true
		}
	} else {
		r.poly = nil
	}
}

// Params returns the current parameters.
func (r *Router) Params() Parameters {
	return r.params
}

// SetParameters replaces the parameters. Every connector is rerouted by the
// next commit.
func (r *Router) SetParameters(p Parameters) error {
	if err := p.ValidateAndSetDefaults(); err != nil {
		return err
	}
	for _, id := range r.Connectors() {
		if d := r.conns[id].Discipline; !p.Routing.Has(d) {
			return errors.New(errors.ErrCodeConfiguration, "connector %q uses disabled discipline %s", id, d)
		}
	}
	r.params = p
	r.space.SetBuffer(p.ShapeBuffer)
	r.syncGraphs()
	r.reset = true
	return nil
}

// Pending returns the number of queued mutations.
func (r *Router) Pending() int {
	return len(r.pending)
}

// Discard drops every queued mutation without applying it.
func (r *Router) Discard() {
	r.pending = nil
}

// =============================================================================
// Queries
// =============================================================================

// Route returns the displayed route of a connector. It is empty for
// connectors that could not be routed.
func (r *Router) Route(id string) ([]geom.Point, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return clonePoints(c.display), true
}

// RawRoute returns the route found by the search, before nudging.
func (r *Router) RawRoute(id string) ([]geom.Point, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return clonePoints(c.raw), true
}

// Endpoints returns the resolved ends of a routed connector.
func (r *Router) Endpoints(id string) (src, dst Resolved, ok bool) {
	c, ok := r.conns[id]
	if !ok || !c.routed || c.err != nil {
		return Resolved{}, Resolved{}, false
	}
	return c.src, c.dst, true
}

// Err returns why a connector could not be routed, or nil.
func (r *Router) Err(id string) error {
	c, ok := r.conns[id]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "connector %q not found", id)
	}
	return c.err
}

// Connector returns a committed connector.
func (r *Router) Connector(id string) (Connector, bool) {
	c, ok := r.conns[id]
	if !ok {
		return Connector{}, false
	}
	return c.Connector, true
}

// Connectors returns the committed connector ids in creation order.
func (r *Router) Connectors() []string {
	return byOrder(r.conns, func(c *connRec) int { return c.order })
}

// Shape returns a committed shape.
func (r *Router) Shape(id string) (Shape, bool) {
	s, ok := r.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return s.Shape, true
}

// Shapes returns the committed shapes in creation order.
func (r *Router) Shapes() []Shape {
	ids := byOrder(r.shapes, func(s *shapeRec) int { return s.order })
	return lo.Map(ids, func(id string, _ int) Shape { return r.shapes[id].Shape })
}

// Pins returns the committed pins in creation order.
func (r *Router) Pins() []Pin {
	ids := byOrder(r.pins, func(p *pinRec) int { return p.order })
	return lo.Map(ids, func(id string, _ int) Pin { return r.pins[id].Pin })
}

// PinPoint returns the absolute position of a pin.
func (r *Router) PinPoint(id string) (geom.Point, bool) {
	p, ok := r.pins[id]
	if !ok {
		return geom.Point{}, false
	}
	return p.point, true
}

// Graph is a read-only view of a routing graph.
type Graph interface {
	Stats() visgraph.Stats
	Edges() []visgraph.Edge
	ToDOT() string
}

// Graph returns the routing graph of a discipline, or nil when it is not
// enabled. It reflects the last commit.
func (r *Router) Graph(d RoutingType) Graph {
	switch {
	case d == Orthogonal && r.orth != nil:
		return r.orth
	case d == Polyline && r.poly != nil:
		return r.poly
	}
	return nil
}

func (r *Router) stats() GraphStats {
	var s GraphStats
	if r.orth != nil {
		s.Orthogonal = r.orth.Stats()
	}
	if r.poly != nil {
		s.Polyline = r.poly.Stats()
	}
	return s
}

func byOrder[T any](m map[string]T, order func(T) int) []string {
	ids := lo.Keys(m)
	sort.Slice(ids, func(i, j int) bool { return order(m[ids[i]]) < order(m[ids[j]]) })
	return ids
}

func clonePoints(pts []geom.Point) []geom.Point {
	if pts == nil {
		return nil
	}
	return append([]geom.Point(nil), pts...)
}
