package router

import (
	"fmt"
	"math"
	"time"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/visgraph"
)

// CentreClass is the reserved pin class of a shape's centre. A shape that
// declares no pin of this class still resolves it, to its centroid.
const CentreClass = 0

// Shape is a rectangular obstacle, optionally nested in a parent shape.
type Shape struct {
	ID     string
	Rect   geom.Rect
	Parent string
}

// Position places a pin on its shape. Relative positions are fractions of
// the shape's width and height; absolute ones are offsets from its top-left
// corner.
type Position struct {
	X, Y     float64
	Relative bool
}

// Pin is a connection point on a shape.
type Pin struct {
	ID    string
	Shape string
	Class int
	Pos   Position

	// Dirs restricts the directions a route may leave or enter the pin
	// by. geom.DirNone allows all.
	Dirs geom.Dir

	// Exclusive pins serve at most one connector.
	Exclusive bool

	// Fixed pins keep their terminal segments in place when nudging.
	Fixed bool
}

func (p Position) point(box geom.Rect) geom.Point {
	if p.Relative {
		return geom.Pt(box.Min.X+p.X*box.Width(), box.Min.Y+p.Y*box.Height())
	}
	return geom.Pt(box.Min.X+p.X, box.Min.Y+p.Y)
}

// End is a connector endpoint: a pin class on a shape, or a fixed point
// when Shape is empty.
type End struct {
	Shape string
	Class int
	Point geom.Point
}

// AtPoint returns an end fixed at p.
func AtPoint(p geom.Point) End {
	return End{Point: p}
}

// AtShape returns an end attached to the pins of class on shape.
func AtShape(shape string, class int) End {
	return End{Shape: shape, Class: class}
}

func (e End) String() string {
	if e.Shape == "" {
		return e.Point.String()
	}
	return fmt.Sprintf("%s:%d", e.Shape, e.Class)
}

// Connector joins two ends.
type Connector struct {
	ID         string
	Src, Dst   End
	Discipline RoutingType
}

// Resolved is a connector end turned into a concrete point.
type Resolved struct {
	Point geom.Point
	Dirs  geom.Dir

	// Shape and Pin identify what the end resolved through. Pin is empty
	// for fixed points and implicit centres.
	Shape string
	Pin   string

	// Movable reports whether the terminal segment may be nudged.
	Movable bool
}

// =============================================================================
// Report
// =============================================================================

// Outcome is the result of one queued mutation.
type Outcome struct {
	Op  string
	ID  string
	Err error
}

// GraphStats holds the size of the routing graphs after a commit.
type GraphStats struct {
	Orthogonal visgraph.Stats
	Polyline   visgraph.Stats
}

// Report describes a commit.
type Report struct {
	// Items lists the queued mutations in queue order.
	Items []Outcome

	// Failed maps connectors that could not be routed to the reason.
	Failed map[string]error

	// Rerouted and Nudged list connector ids in creation order.
	Rerouted []string
	Nudged   []string

	Stats    GraphStats
	Duration time.Duration
}

// Empty reports whether the commit had nothing to do.
func (r *Report) Empty() bool {
	return len(r.Items) == 0 && len(r.Rerouted) == 0 && len(r.Nudged) == 0
}

// ItemErrors returns the failed mutations.
func (r *Report) ItemErrors() []Outcome {
	var out []Outcome
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// =============================================================================
// Static validation
// =============================================================================

func validRect(kind, id string, r geom.Rect) error {
	for _, v := range []float64{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= visgraph.Far/2 {
			return errors.New(errors.ErrCodeConfiguration, "%s %q: coordinate out of range in %v", kind, id, r)
		}
	}
	if r.Degenerate() {
		return errors.New(errors.ErrCodeConfiguration, "%s %q: degenerate rectangle %v", kind, id, r)
	}
	return nil
}

func validPoint(kind, id string, p geom.Point) error {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= visgraph.Far/2 {
			return errors.New(errors.ErrCodeConfiguration, "%s %q: coordinate out of range in %v", kind, id, p)
		}
	}
	return nil
}

func validEnd(conn, side string, e End) error {
	if e.Shape == "" {
		return validPoint("connector "+side, conn, e.Point)
	}
	if err := errors.ValidateID("shape", e.Shape); err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "connector %q %s", conn, side)
	}
	if e.Class < 0 {
		return errors.New(errors.ErrCodeConfiguration, "connector %q %s: negative pin class %d", conn, side, e.Class)
	}
	return nil
}
