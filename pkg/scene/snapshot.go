package scene

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/detour/pkg/errors"
	"github.com/matzehuels/detour/pkg/route"
	"github.com/matzehuels/detour/pkg/router"
)

// Snapshot is the routing state of a router at one point in time.
type Snapshot struct {
	Params     router.Parameters `json:"params" msgpack:"params"`
	Connectors []Route           `json:"connectors" msgpack:"connectors"`
}

// Route is the outcome for one connector.
type Route struct {
	ID         string       `json:"id" msgpack:"id"`
	Discipline string       `json:"discipline" msgpack:"discipline"`
	Src        string       `json:"src" msgpack:"src"`
	Dst        string       `json:"dst" msgpack:"dst"`
	Points     [][2]float64 `json:"points" msgpack:"points"`
	Bends      int          `json:"bends" msgpack:"bends"`
	Length     float64      `json:"length" msgpack:"length"`
	Code       string       `json:"code,omitempty" msgpack:"code,omitempty"`
	Error      string       `json:"error,omitempty" msgpack:"error,omitempty"`
}

// OK reports whether the connector was routed.
func (r *Route) OK() bool { return r.Error == "" }

// Take captures the routes of every connector of r in creation order.
func Take(r *router.Router) *Snapshot {
	s := &Snapshot{Params: r.Params(), Connectors: []Route{}}
	for _, id := range r.Connectors() {
		c, _ := r.Connector(id)
		rt := Route{
			ID:         id,
			Discipline: c.Discipline.String(),
			Src:        c.Src.String(),
			Dst:        c.Dst.String(),
			Points:     [][2]float64{},
		}
		if err := r.Err(id); err != nil {
			rt.Code = string(errors.GetCode(err))
			rt.Error = errors.UserMessage(err)
		}
		pts, _ := r.Route(id)
		for i, p := range pts {
			rt.Points = append(rt.Points, [2]float64{p.X, p.Y})
			if i > 0 {
				rt.Length += p.Dist(pts[i-1])
			}
		}
		rt.Bends = route.Bends(pts)
		s.Connectors = append(s.Connectors, rt)
	}
	return s
}

// Route returns the route of connector id.
func (s *Snapshot) Route(id string) (Route, bool) {
	for _, r := range s.Connectors {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// Failed returns the connectors without a route.
func (s *Snapshot) Failed() []Route {
	var out []Route
	for _, r := range s.Connectors {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// WriteJSON writes s as indented JSON.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSnapshotJSON decodes a snapshot written by WriteJSON.
func ReadSnapshotJSON(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot")
	}
	return &s, nil
}

// MarshalBinary encodes s compactly for caching.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(s)
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	if err := msgpack.Unmarshal(data, s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot")
	}
	return nil
}
