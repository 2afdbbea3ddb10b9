package router

import (
	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
)

// opKind is a queued mutation. The values are in commit order: deletions,
// geometry changes, additions, then connector modifications.
type opKind uint8

const (
	opDeleteConnector opKind = iota
	opDeletePin
	opDeleteShape
	opMoveShape
	opResizeShape
	opMovePin
	opAddShape
	opAddPin
	opAddConnector
	opSetDiscipline
	opSetEnds
)

var opNames = map[opKind]string{
	opDeleteConnector: "delete_connector",
	opDeletePin:       "delete_pin",
	opDeleteShape:     "delete_shape",
	opMoveShape:       "move_shape",
	opResizeShape:     "resize_shape",
	opMovePin:         "move_pin",
	opAddShape:        "add_shape",
	opAddPin:          "add_pin",
	opAddConnector:    "add_connector",
	opSetDiscipline:   "set_discipline",
	opSetEnds:         "set_ends",
}

func (k opKind) String() string { return opNames[k] }

// phase groups kinds that are applied together.
func (k opKind) phase() int {
	switch k {
	case opMoveShape, opResizeShape:
		return int(opMoveShape)
	}
	return int(k)
}

type op struct {
	kind  opKind
	index int // position in the queue
	id    string

	shape Shape
	pin   Pin
	conn  Connector

	dx, dy   float64
	rect     geom.Rect
	pos      Position
	disc     RoutingType
	src, dst End
}

func (r *Router) enqueue(o op) {
	o.index = len(r.pending)
	r.pending = append(r.pending, o)
}

// AddShape queues a new shape. Its parent must exist or be added in the
// same transaction, and must contain it.
func (r *Router) AddShape(s Shape) error {
	if err := errors.ValidateID("shape", s.ID); err != nil {
		return err
	}
	if err := validRect("shape", s.ID, s.Rect); err != nil {
		return err
	}
	if s.Parent != "" {
		if err := errors.ValidateID("parent", s.Parent); err != nil {
			return err
		}
		if s.Parent == s.ID {
			return errors.New(errors.ErrCodeConfiguration, "shape %q cannot be its own parent", s.ID)
		}
	}
	r.enqueue(op{kind: opAddShape, id: s.ID, shape: s})
	return nil
}

// DeleteShape queues the removal of a shape and its pins. A shape with
// children cannot be deleted unless they are deleted too.
func (r *Router) DeleteShape(id string) error {
	if err := errors.ValidateID("shape", id); err != nil {
		return err
	}
	r.enqueue(op{kind: opDeleteShape, id: id})
	return nil
}

// MoveShape queues a translation of a shape and its pins. Children do not
// follow their parent.
func (r *Router) MoveShape(id string, dx, dy float64) error {
	if err := errors.ValidateID("shape", id); err != nil {
		return err
	}
	if err := validPoint("shape", id, geom.Pt(dx, dy)); err != nil {
		return err
	}
	r.enqueue(op{kind: opMoveShape, id: id, dx: dx, dy: dy})
	return nil
}

// ResizeShape queues a new rectangle for a shape.
func (r *Router) ResizeShape(id string, rect geom.Rect) error {
	if err := errors.ValidateID("shape", id); err != nil {
		return err
	}
	if err := validRect("shape", id, rect); err != nil {
		return err
	}
	r.enqueue(op{kind: opResizeShape, id: id, rect: rect})
	return nil
}

// AddPin queues a new pin on an existing or queued shape.
func (r *Router) AddPin(p Pin) error {
	if err := errors.ValidateID("pin", p.ID); err != nil {
		return err
	}
	if err := errors.ValidateID("shape", p.Shape); err != nil {
		return err
	}
	if p.Class < 0 {
		return errors.New(errors.ErrCodeConfiguration, "pin %q: negative class %d", p.ID, p.Class)
	}
	if !p.Dirs.Valid() {
		return errors.New(errors.ErrCodeConfiguration, "pin %q: invalid directions %#x", p.ID, uint8(p.Dirs))
	}
	if err := validPoint("pin", p.ID, geom.Pt(p.Pos.X, p.Pos.Y)); err != nil {
		return err
	}
	r.enqueue(op{kind: opAddPin, id: p.ID, pin: p})
	return nil
}

// DeletePin queues the removal of a pin.
func (r *Router) DeletePin(id string) error {
	if err := errors.ValidateID("pin", id); err != nil {
		return err
	}
	r.enqueue(op{kind: opDeletePin, id: id})
	return nil
}

// MovePin queues a new position for a pin.
func (r *Router) MovePin(id string, pos Position) error {
	if err := errors.ValidateID("pin", id); err != nil {
		return err
	}
	if err := validPoint("pin", id, geom.Pt(pos.X, pos.Y)); err != nil {
		return err
	}
	r.enqueue(op{kind: opMovePin, id: id, pos: pos})
	return nil
}

// AddConnector queues a new connector. A zero discipline selects orthogonal
// routing when it is enabled and polyline routing otherwise.
func (r *Router) AddConnector(c Connector) error {
	if err := errors.ValidateID("connector", c.ID); err != nil {
		return err
	}
	if c.Discipline == 0 {
		c.Discipline = r.defaultDiscipline()
	}
	if err := r.checkDiscipline(c.ID, c.Discipline); err != nil {
		return err
	}
	if err := validEnd(c.ID, "source", c.Src); err != nil {
		return err
	}
	if err := validEnd(c.ID, "destination", c.Dst); err != nil {
		return err
	}
	r.enqueue(op{kind: opAddConnector, id: c.ID, conn: c})
	return nil
}

// DeleteConnector queues the removal of a connector.
func (r *Router) DeleteConnector(id string) error {
	if err := errors.ValidateID("connector", id); err != nil {
		return err
	}
	r.enqueue(op{kind: opDeleteConnector, id: id})
	return nil
}

// SetDiscipline queues a discipline change for a connector.
func (r *Router) SetDiscipline(id string, d RoutingType) error {
	if err := errors.ValidateID("connector", id); err != nil {
		return err
	}
	if err := r.checkDiscipline(id, d); err != nil {
		return err
	}
	r.enqueue(op{kind: opSetDiscipline, id: id, disc: d})
	return nil
}

// SetEnds queues new ends for a connector.
func (r *Router) SetEnds(id string, src, dst End) error {
	if err := errors.ValidateID("connector", id); err != nil {
		return err
	}
	if err := validEnd(id, "source", src); err != nil {
		return err
	}
	if err := validEnd(id, "destination", dst); err != nil {
		return err
	}
	r.enqueue(op{kind: opSetEnds, id: id, src: src, dst: dst})
	return nil
}

func (r *Router) defaultDiscipline() RoutingType {
	if r.params.Routing.Has(Orthogonal) {
		return Orthogonal
	}
	return Polyline
}

func (r *Router) checkDiscipline(id string, d RoutingType) error {
	if !d.Single() {
		return errors.New(errors.ErrCodeConfiguration, "connector %q: unknown routing discipline %#x", id, uint8(d))
	}
	if !r.params.Routing.Has(d) {
		return errors.New(errors.ErrCodeConfiguration, "connector %q: %s routing is not enabled", id, d)
	}
	return nil
}
