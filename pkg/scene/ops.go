package scene

import (
	"fmt"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/router"
)

// Operation names.
const (
	OpAddShape        = "add_shape"
	OpDeleteShape     = "delete_shape"
	OpMoveShape       = "move_shape"
	OpResizeShape     = "resize_shape"
	OpAddPin          = "add_pin"
	OpDeletePin       = "delete_pin"
	OpMovePin         = "move_pin"
	OpAddConnector    = "add_connector"
	OpDeleteConnector = "delete_connector"
	OpSetDiscipline   = "set_discipline"
	OpSetEnds         = "set_ends"
)

// Op is one queued mutation. Which fields apply depends on the operation.
type Op struct {
	Op string `json:"op" yaml:"op" toml:"op"`
	ID string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`

	// Shapes
	Parent string    `json:"parent,omitempty" yaml:"parent,omitempty" toml:"parent,omitempty"`
	Rect   []float64 `json:"rect,omitempty" yaml:"rect,omitempty" toml:"rect,omitempty"`
	DX     float64   `json:"dx,omitempty" yaml:"dx,omitempty" toml:"dx,omitempty"`
	DY     float64   `json:"dy,omitempty" yaml:"dy,omitempty" toml:"dy,omitempty"`

	// Pins
	Shape     string    `json:"shape,omitempty" yaml:"shape,omitempty" toml:"shape,omitempty"`
	Class     int       `json:"class,omitempty" yaml:"class,omitempty" toml:"class,omitempty"`
	Pos       []float64 `json:"pos,omitempty" yaml:"pos,omitempty" toml:"pos,omitempty"`
	Relative  bool      `json:"relative,omitempty" yaml:"relative,omitempty" toml:"relative,omitempty"`
	Dirs      []string  `json:"dirs,omitempty" yaml:"dirs,omitempty" toml:"dirs,omitempty"`
	Exclusive bool      `json:"exclusive,omitempty" yaml:"exclusive,omitempty" toml:"exclusive,omitempty"`
	Fixed     bool      `json:"fixed,omitempty" yaml:"fixed,omitempty" toml:"fixed,omitempty"`

	// Connectors
	Src        *End   `json:"src,omitempty" yaml:"src,omitempty" toml:"src,omitempty"`
	Dst        *End   `json:"dst,omitempty" yaml:"dst,omitempty" toml:"dst,omitempty"`
	Discipline string `json:"discipline,omitempty" yaml:"discipline,omitempty" toml:"discipline,omitempty"`
}

// End is a connector end: a pin class on a shape, or a point.
type End struct {
	Shape string    `json:"shape,omitempty" yaml:"shape,omitempty" toml:"shape,omitempty"`
	Class int       `json:"class,omitempty" yaml:"class,omitempty" toml:"class,omitempty"`
	Point []float64 `json:"point,omitempty" yaml:"point,omitempty" toml:"point,omitempty"`
}

func (e *End) check(side string) error {
	if e == nil {
		return fmt.Errorf("missing %s", side)
	}
	switch {
	case e.Shape != "" && e.Point != nil:
		return fmt.Errorf("%s: shape and point are exclusive", side)
	case e.Shape == "" && len(e.Point) != 2:
		return fmt.Errorf("%s: want a shape or a point [x, y]", side)
	}
	return nil
}

func (e *End) end() router.End {
	if e.Shape != "" {
		return router.AtShape(e.Shape, e.Class)
	}
	return router.AtPoint(geom.Pt(e.Point[0], e.Point[1]))
}

// EndOf converts a router end.
func EndOf(e router.End) *End {
	if e.Shape != "" {
		return &End{Shape: e.Shape, Class: e.Class}
	}
	return &End{Point: []float64{e.Point.X, e.Point.Y}}
}

// normalize checks that the fields the operation needs are present and
// fills in missing ids of additions.
func (o *Op) normalize() error {
	switch o.Op {
	case OpAddShape, OpAddPin, OpAddConnector:
		if o.ID == "" {
			o.ID = newID()
		}
	case "":
		return fmt.Errorf("missing op")
	case OpDeleteShape, OpMoveShape, OpResizeShape, OpDeletePin, OpMovePin,
		OpDeleteConnector, OpSetDiscipline, OpSetEnds:
		if o.ID == "" {
			return fmt.Errorf("%s: missing id", o.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}

	switch o.Op {
	case OpAddShape, OpResizeShape:
		if len(o.Rect) != 4 {
			return fmt.Errorf("%s %q: rect must be [x1, y1, x2, y2]", o.Op, o.ID)
		}
	case OpAddPin:
		if o.Shape == "" {
			return fmt.Errorf("%s %q: missing shape", o.Op, o.ID)
		}
		fallthrough
	case OpMovePin:
		if len(o.Pos) != 2 {
			return fmt.Errorf("%s %q: pos must be [x, y]", o.Op, o.ID)
		}
		if _, err := geom.ParseDirs(o.Dirs); err != nil {
			return fmt.Errorf("%s %q: %w", o.Op, o.ID, err)
		}
	case OpAddConnector, OpSetEnds:
		if err := o.Src.check("src"); err != nil {
			return fmt.Errorf("%s %q: %w", o.Op, o.ID, err)
		}
		if err := o.Dst.check("dst"); err != nil {
			return fmt.Errorf("%s %q: %w", o.Op, o.ID, err)
		}
	case OpSetDiscipline:
		if o.Discipline == "" {
			return fmt.Errorf("%s %q: missing discipline", o.Op, o.ID)
		}
	}
	return nil
}

// Apply queues the operation on r. The error is the one the router returns
// when it rejects the operation outright; problems found at commit time are
// reported by the commit.
func (o *Op) Apply(r *router.Router) error {
	if err := o.normalize(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "op")
	}
	switch o.Op {
	case OpAddShape:
		return r.AddShape(router.Shape{ID: o.ID, Rect: o.rect(), Parent: o.Parent})
	case OpDeleteShape:
		return r.DeleteShape(o.ID)
	case OpMoveShape:
		return r.MoveShape(o.ID, o.DX, o.DY)
	case OpResizeShape:
		return r.ResizeShape(o.ID, o.rect())
	case OpAddPin:
		dirs, _ := geom.ParseDirs(o.Dirs)
		return r.AddPin(router.Pin{
			ID:        o.ID,
			Shape:     o.Shape,
			Class:     o.Class,
			Pos:       o.position(),
			Dirs:      dirs,
			Exclusive: o.Exclusive,
			Fixed:     o.Fixed,
		})
	case OpDeletePin:
		return r.DeletePin(o.ID)
	case OpMovePin:
		return r.MovePin(o.ID, o.position())
	case OpAddConnector:
		var d router.RoutingType
		if o.Discipline != "" {
			var err error
			if d, err = router.ParseRoutingType(o.Discipline); err != nil {
				return err
			}
		}
		return r.AddConnector(router.Connector{ID: o.ID, Src: o.Src.end(), Dst: o.Dst.end(), Discipline: d})
	case OpDeleteConnector:
		return r.DeleteConnector(o.ID)
	case OpSetDiscipline:
		d, err := router.ParseRoutingType(o.Discipline)
		if err != nil {
			return err
		}
		return r.SetDiscipline(o.ID, d)
	case OpSetEnds:
		return r.SetEnds(o.ID, o.Src.end(), o.Dst.end())
	}
	return nil
}

func (o *Op) rect() geom.Rect {
	return geom.R(o.Rect[0], o.Rect[1], o.Rect[2], o.Rect[3])
}

func (o *Op) position() router.Position {
	return router.Position{X: o.Pos[0], Y: o.Pos[1], Relative: o.Relative}
}
