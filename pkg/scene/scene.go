package scene

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/router"
)

// Scene is a sequence of routing transactions.
type Scene struct {
	Params Params `json:"params" yaml:"params" toml:"params"`
	Steps  []Step `json:"steps" yaml:"steps" toml:"steps"`
}

// Step is one transaction.
type Step struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Ops  []Op   `json:"ops" yaml:"ops" toml:"ops"`
}

// Params overrides router parameters. Unset fields keep the value of the
// parameters they are applied to.
type Params struct {
	Routing               []string `json:"routing,omitempty" yaml:"routing,omitempty" toml:"routing,omitempty"`
	ShapeBuffer           *float64 `json:"shape_buffer,omitempty" yaml:"shape_buffer,omitempty" toml:"shape_buffer,omitempty"`
	SegmentPenalty        *float64 `json:"segment_penalty,omitempty" yaml:"segment_penalty,omitempty" toml:"segment_penalty,omitempty"`
	IdealNudging          *float64 `json:"ideal_nudging,omitempty" yaml:"ideal_nudging,omitempty" toml:"ideal_nudging,omitempty"`
	DirectionPenalty      *float64 `json:"direction_penalty,omitempty" yaml:"direction_penalty,omitempty" toml:"direction_penalty,omitempty"`
	NudgeShapeSegments    *bool    `json:"nudge_shape_segments,omitempty" yaml:"nudge_shape_segments,omitempty" toml:"nudge_shape_segments,omitempty"`
	NudgeTouchingColinear *bool    `json:"nudge_touching_colinear,omitempty" yaml:"nudge_touching_colinear,omitempty" toml:"nudge_touching_colinear,omitempty"`
}

// Merge returns p with every field set in over replacing its own.
func (p Params) Merge(over Params) Params {
	if len(over.Routing) > 0 {
		p.Routing = over.Routing
	}
	if over.ShapeBuffer != nil {
		p.ShapeBuffer = over.ShapeBuffer
	}
	if over.SegmentPenalty != nil {
		p.SegmentPenalty = over.SegmentPenalty
	}
	if over.IdealNudging != nil {
		p.IdealNudging = over.IdealNudging
	}
	if over.DirectionPenalty != nil {
		p.DirectionPenalty = over.DirectionPenalty
	}
	if over.NudgeShapeSegments != nil {
		p.NudgeShapeSegments = over.NudgeShapeSegments
	}
	if over.NudgeTouchingColinear != nil {
		p.NudgeTouchingColinear = over.NudgeTouchingColinear
	}
	return p
}

// Apply overlays p on base and validates the result.
func (p Params) Apply(base router.Parameters) (router.Parameters, error) {
	if len(p.Routing) > 0 {
		base.Routing = 0
		for _, name := range p.Routing {
			t, err := router.ParseRoutingType(name)
			if err != nil {
				return base, err
			}
			base.Routing |= t
		}
	}
	if p.ShapeBuffer != nil {
		base.ShapeBuffer = *p.ShapeBuffer
	}
	if p.SegmentPenalty != nil {
		base.SegmentPenalty = *p.SegmentPenalty
		// Rederived from the new penalty unless set below.
		base.DirectionPenalty = 0
	}
	if p.IdealNudging != nil {
		base.IdealNudging = *p.IdealNudging
	}
	if p.DirectionPenalty != nil {
		base.DirectionPenalty = *p.DirectionPenalty
	}
	if p.NudgeShapeSegments != nil {
		base.NudgeShapeSegments = *p.NudgeShapeSegments
	}
	if p.NudgeTouchingColinear != nil {
		base.NudgeTouchingColinear = *p.NudgeTouchingColinear
	}
	if err := base.ValidateAndSetDefaults(); err != nil {
		return base, err
	}
	return base, nil
}

// Parameters returns the router parameters of the scene on top of the
// defaults.
func (s *Scene) Parameters() (router.Parameters, error) {
	return s.Params.Apply(router.Defaults())
}

// =============================================================================
// Decoding
// =============================================================================

// Format is a scene encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "%s: unknown scene format (want .toml, .yaml or .json)", path)
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTOML, FormatYAML, FormatJSON:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown scene format %q", s)
}

// Load reads the scene file at path.
func Load(path string) (*Scene, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()

	s, err := Decode(f, format)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "%s", path)
	}
	return s, nil
}

// Decode reads a scene in the given format from r. Unknown fields are
// rejected, as are malformed operations. Add operations without an id are
// given a random one.
func Decode(r io.Reader, format Format) (*Scene, error) {
	var s Scene
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode toml")
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "decode toml: unknown field %q", keys[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && err != io.EOF {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode yaml")
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown scene format %q", format)
	}

	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeBytes decodes a scene held in memory.
func DecodeBytes(data []byte, format Format) (*Scene, error) {
	return Decode(bytes.NewReader(data), format)
}

func (s *Scene) normalize() error {
	if _, err := s.Parameters(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "params")
	}
	for i := range s.Steps {
		step := &s.Steps[i]
		for j := range step.Ops {
			if err := step.Ops[j].normalize(); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidFormat, err, "step %s op %d", s.stepName(i), j)
			}
		}
	}
	return nil
}

func (s *Scene) stepName(i int) string {
	if name := s.Steps[i].Name; name != "" {
		return fmt.Sprintf("%d (%s)", i, name)
	}
	return fmt.Sprint(i)
}

// newID returns an identifier for an object declared without one.
func newID() string {
	return uuid.NewString()
}

// Encode writes s in the given format.
func (s *Scene) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown scene format %q", format)
}
