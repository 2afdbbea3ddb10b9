package router

import (
	"math"
	"strings"

	"github.com/matzehuels/detour/pkg/errors"
)

// =============================================================================
// Routing types
// =============================================================================

// RoutingType is a set of routing disciplines. A router enables one or both;
// every connector uses exactly one.
type RoutingType uint8

const (
	// Orthogonal routes only use horizontal and vertical segments.
	Orthogonal RoutingType = 1 << iota
	// Polyline routes use straight segments in any direction.
	Polyline
)

const allRoutingTypes = Orthogonal | Polyline

// Has reports whether every discipline in t is in r.
func (r RoutingType) Has(t RoutingType) bool {
	return t != 0 && r&t == t
}

// Single reports whether r names exactly one discipline.
func (r RoutingType) Single() bool {
	return r == Orthogonal || r == Polyline
}

func (r RoutingType) String() string {
	switch r {
	case Orthogonal:
		return "orthogonal"
	case Polyline:
		return "polyline"
	case Orthogonal | Polyline:
		return "orthogonal|polyline"
	}
	return "none"
}

// ParseRoutingType parses a discipline name.
func ParseRoutingType(s string) (RoutingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "orthogonal", "orth":
		return Orthogonal, nil
	case "polyline", "poly":
		return Polyline, nil
	}
	return 0, errors.New(errors.ErrCodeConfiguration, "unknown routing discipline %q", s)
}

// =============================================================================
// Parameters
// =============================================================================

// Default values for Parameters.
const (
	DefaultShapeBuffer    = 4.0
	DefaultSegmentPenalty = 10.0
	DefaultIdealNudging   = 4.0
)

// Parameters configures a router. The zero value of a numeric field is a
// valid setting; Defaults returns the recommended configuration.
type Parameters struct {
	// Routing selects the enabled disciplines.
	Routing RoutingType `json:"routing"`

	// ShapeBuffer is the clearance kept around every shape.
	ShapeBuffer float64 `json:"shape_buffer"`

	// SegmentPenalty is added to the cost of a route for every bend.
	SegmentPenalty float64 `json:"segment_penalty"`

	// IdealNudging is the distance between separated parallel segments.
	IdealNudging float64 `json:"ideal_nudging"`

	// NudgeShapeSegments allows nudging the segments attached to pins.
	NudgeShapeSegments bool `json:"nudge_shape_segments"`

	// NudgeTouchingColinear separates colinear segments that only touch.
	NudgeTouchingColinear bool `json:"nudge_touching_colinear"`

	// DirectionPenalty is added when a route leaves or enters a pin from a
	// side the pin does not allow. Zero selects 1e6 · max(1, SegmentPenalty).
	DirectionPenalty float64 `json:"direction_penalty,omitempty"`
}

// Defaults returns the recommended parameters: orthogonal routing with a
// small buffer and nudging distance.
func Defaults() Parameters {
	p := Parameters{
		Routing:        Orthogonal,
		ShapeBuffer:    DefaultShapeBuffer,
		SegmentPenalty: DefaultSegmentPenalty,
		IdealNudging:   DefaultIdealNudging,
	}
	p.SetDefaults()
	return p
}

// SetDefaults fills fields whose zero value means "unset".
func (p *Parameters) SetDefaults() {
	if p.Routing == 0 {
		p.Routing = Orthogonal
	}
	if p.DirectionPenalty == 0 {
		p.DirectionPenalty = 1e6 * math.Max(1, p.SegmentPenalty)
	}
}

// Validate checks p without modifying it.
func (p Parameters) Validate() error {
	if p.Routing == 0 || p.Routing&^allRoutingTypes != 0 {
		return errors.New(errors.ErrCodeConfiguration, "invalid routing types %#x", uint8(p.Routing))
	}
	fields := []struct {
		name string
		v    float64
	}{
		{"shape_buffer", p.ShapeBuffer},
		{"segment_penalty", p.SegmentPenalty},
		{"ideal_nudging", p.IdealNudging},
		{"direction_penalty", p.DirectionPenalty},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return errors.New(errors.ErrCodeConfiguration, "%s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates the result. It is
// idempotent.
func (p *Parameters) ValidateAndSetDefaults() error {
	p.SetDefaults()
	return p.Validate()
}
