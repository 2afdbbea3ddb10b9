package nudge

import (
	"math"
	"testing"

	"github.com/matzehuels/detour/pkg/geom"
	"github.com/matzehuels/detour/pkg/route"
)

// rects is a fixed obstacle set.
type rects []geom.Rect

func (rs rects) Blockers(r geom.Rect) []geom.Rect {
	var out []geom.Rect
	for _, b := range rs {
		if b.Intersects(r) {
			out = append(out, b)
		}
	}
	return out
}

func pts(xy ...float64) []geom.Point {
	out := make([]geom.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, geom.Pt(xy[i], xy[i+1]))
	}
	return out
}

func zConn(id string, order int, y0, y1 float64) Conn {
	return Conn{ID: id, Order: order, Points: pts(0, y0, 100, y0, 100, y1, 300, y1)}
}

func TestCentreZSegment(t *testing.T) {
	tests := []struct {
		name string
		obs  rects
		want []geom.Point
	}{
		{
			name: "free channel",
			want: pts(0, 0, 150, 0, 150, 200, 300, 200),
		},
		{
			name: "obstacle on the right",
			obs:  rects{geom.R(120, 50, 140, 150)},
			want: pts(0, 0, 60, 0, 60, 200, 300, 200),
		},
		{
			name: "obstacle beside the channel is ignored",
			obs:  rects{geom.R(120, 300, 140, 400)},
			want: pts(0, 0, 150, 0, 150, 200, 300, 200),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Nudge([]Conn{zConn("c", 0, 0, 200)}, tt.obs, Options{Ideal: 4})
			if got := res.Routes["c"]; !route.Equal(got, tt.want) {
				t.Errorf("route = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUSegmentNotCentred(t *testing.T) {
	in := pts(0, 0, 100, 0, 100, 200, 0, 200)
	res := Nudge([]Conn{{ID: "u", Points: in}}, nil, Options{Ideal: 4})
	if got := res.Routes["u"]; !route.Equal(got, in) {
		t.Errorf("route = %v, want %v", got, in)
	}
}

func TestSeparateZSegments(t *testing.T) {
	conns := []Conn{zConn("c1", 0, 0, 200), zConn("c2", 1, 50, 250)}
	res := Nudge(conns, nil, Options{Ideal: 4})

	// c2 joins the shared line from the left, inside c1's extent.
	want := map[string][]geom.Point{
		"c1": pts(0, 0, 152, 0, 152, 200, 300, 200),
		"c2": pts(0, 50, 148, 50, 148, 250, 300, 250),
	}
	for id, w := range want {
		if got := res.Routes[id]; !route.Equal(got, w) {
			t.Errorf("%s = %v, want %v", id, got, w)
		}
	}
	if len(res.Channels["c1"]) == 0 {
		t.Error("expected channels for c1")
	}
}

func TestSeparateThreeSegments(t *testing.T) {
	conns := []Conn{
		zConn("a", 0, 0, 300),
		zConn("b", 1, 10, 310),
		zConn("c", 2, 20, 320),
	}
	res := Nudge(conns, nil, Options{Ideal: 6})

	xs := make(map[string]float64)
	for id, p := range res.Routes {
		xs[id] = p[1].X
	}
	// a leaves the shared line first, turning right, so it takes the right side.
	if !(xs["c"] < xs["b"] && xs["b"] < xs["a"]) {
		t.Fatalf("unexpected order %v", xs)
	}
	if d := xs["b"] - xs["c"]; math.Abs(d-6) > 1e-9 {
		t.Errorf("gap c-b = %v, want 6", d)
	}
	if d := xs["a"] - xs["b"]; math.Abs(d-6) > 1e-9 {
		t.Errorf("gap b-a = %v, want 6", d)
	}
	if xs["b"] != 150 {
		t.Errorf("middle segment at %v, want 150", xs["b"])
	}
}

func TestTerminalSegments(t *testing.T) {
	straight := func(id string, order int) Conn {
		return Conn{ID: id, Order: order, Points: pts(0, 100, 300, 100), SrcMovable: true, DstMovable: true}
	}
	conns := []Conn{straight("c1", 0), straight("c2", 1)}

	t.Run("fixed by default", func(t *testing.T) {
		res := Nudge(conns, nil, Options{Ideal: 4})
		for _, id := range []string{"c1", "c2"} {
			if got := res.Routes[id]; !route.Equal(got, pts(0, 100, 300, 100)) {
				t.Errorf("%s = %v, want unchanged", id, got)
			}
		}
	})

	t.Run("movable with stubs", func(t *testing.T) {
		res := Nudge(conns, nil, Options{Ideal: 4, ShapeSegments: true})
		want := map[string][]geom.Point{
			"c1": pts(0, 100, 0, 98, 300, 98, 300, 100),
			"c2": pts(0, 100, 0, 102, 300, 102, 300, 100),
		}
		for id, w := range want {
			if got := res.Routes[id]; !route.Equal(got, w) {
				t.Errorf("%s = %v, want %v", id, got, w)
			}
		}
	})

	t.Run("fixed points never move", func(t *testing.T) {
		fixed := []Conn{
			{ID: "c1", Points: pts(0, 100, 300, 100)},
			{ID: "c2", Order: 1, Points: pts(0, 100, 300, 100)},
		}
		res := Nudge(fixed, nil, Options{Ideal: 4, ShapeSegments: true})
		for _, id := range []string{"c1", "c2"} {
			if got := res.Routes[id]; !route.Equal(got, pts(0, 100, 300, 100)) {
				t.Errorf("%s = %v, want unchanged", id, got)
			}
		}
	})
}

func TestTerminalSegmentsRespectPinDirs(t *testing.T) {
	// Pins facing along the segment cannot take a sideways stub.
	straight := func(id string, order int) Conn {
		return Conn{
			ID: id, Order: order, Points: pts(0, 100, 300, 100),
			SrcMovable: true, DstMovable: true,
			SrcDirs: geom.DirRight, DstDirs: geom.DirLeft,
		}
	}
	res := Nudge([]Conn{straight("c1", 0), straight("c2", 1)}, nil, Options{Ideal: 4, ShapeSegments: true})
	for _, id := range []string{"c1", "c2"} {
		if got := res.Routes[id]; !route.Equal(got, pts(0, 100, 300, 100)) {
			t.Errorf("%s = %v, want unchanged", id, got)
		}
	}
}

func TestSpreadKeepsClearOfShapes(t *testing.T) {
	// Two U-shaped routes between left-facing pins run down the buffered
	// left side of two stacked shapes. The group must spread outwards only.
	obs := rects{geom.R(646, 196, 854, 404), geom.R(646, 496, 854, 704)}
	conns := []Conn{
		{
			ID: "down", Points: pts(650, 214, 646, 214, 646, 650, 650, 650),
			SrcMovable: true, DstMovable: true, SrcDirs: geom.DirLeft, DstDirs: geom.DirLeft,
		},
		{
			ID: "up", Order: 1, Points: pts(650, 514, 646, 514, 646, 350, 650, 350),
			SrcMovable: true, DstMovable: true, SrcDirs: geom.DirLeft, DstDirs: geom.DirLeft,
		},
	}
	res := Nudge(conns, obs, Options{Ideal: 4, ShapeSegments: true})

	want := map[string][]geom.Point{
		"down": pts(650, 214, 642, 214, 642, 650, 650, 650),
		"up":   pts(650, 514, 646, 514, 646, 350, 650, 350),
	}
	for id, w := range want {
		got := res.Routes[id]
		if !route.Equal(got, w) {
			t.Errorf("%s = %v, want %v", id, got, w)
		}
		if d := geom.Travel(got[0], got[1]); d != geom.DirLeft {
			t.Errorf("%s leaves its source %s", id, d)
		}
		if d := geom.Travel(got[len(got)-1], got[len(got)-2]); d != geom.DirLeft {
			t.Errorf("%s leaves its destination %s", id, d)
		}
	}
}

func TestTouchingColinear(t *testing.T) {
	conns := []Conn{
		{ID: "c1", Points: pts(0, 0, 100, 0, 100, 100, 200, 100)},
		{ID: "c2", Order: 1, Points: pts(200, 300, 100, 300, 100, 100, 0, 100)},
	}
	// The vertical segments touch at (100, 100) without overlapping.
	res := Nudge(conns, nil, Options{Ideal: 4})
	if res.Routes["c1"][1].X != res.Routes["c2"][1].X {
		t.Fatalf("segments separated without TouchingColinear: %v %v", res.Routes["c1"], res.Routes["c2"])
	}
	res = Nudge(conns, nil, Options{Ideal: 4, TouchingColinear: true})
	if res.Routes["c1"][1].X == res.Routes["c2"][1].X {
		t.Errorf("touching segments not separated: %v %v", res.Routes["c1"], res.Routes["c2"])
	}
}

func TestNudgeIdempotent(t *testing.T) {
	conns := []Conn{zConn("c1", 0, 0, 200), zConn("c2", 1, 50, 250), zConn("c3", 2, 100, 300)}
	opt := Options{Ideal: 4, ShapeSegments: true}
	first := Nudge(conns, rects{geom.R(200, 0, 220, 80)}, opt)
	second := Nudge(conns, rects{geom.R(200, 0, 220, 80)}, opt)
	for id := range first.Routes {
		if !route.Equal(first.Routes[id], second.Routes[id]) {
			t.Errorf("%s changed between runs: %v vs %v", id, first.Routes[id], second.Routes[id])
		}
	}
}

func TestEndpointsPreserved(t *testing.T) {
	conns := []Conn{
		{ID: "a", Points: pts(0, 100, 300, 100), SrcMovable: true, DstMovable: true},
		{ID: "b", Order: 1, Points: pts(0, 100, 300, 100), SrcMovable: true},
		zConn("c", 2, 100, 50),
	}
	res := Nudge(conns, nil, Options{Ideal: 4, ShapeSegments: true})
	for _, c := range conns {
		got := res.Routes[c.ID]
		if !got[0].Near(c.Points[0]) || !got[len(got)-1].Near(c.Points[len(c.Points)-1]) {
			t.Errorf("%s endpoints moved: %v", c.ID, got)
		}
		if !route.Orthogonal(got) {
			t.Errorf("%s not orthogonal: %v", c.ID, got)
		}
	}
}

func TestScope(t *testing.T) {
	conns := []Conn{
		zConn("c1", 0, 0, 200),
		zConn("c2", 1, 50, 250),
		{ID: "far", Order: 2, Points: pts(1000, 1000, 1200, 1000)},
	}
	got := Scope(conns, map[string]bool{"c1": true}, nil, Options{Ideal: 4})
	if !got["c1"] || !got["c2"] {
		t.Errorf("scope %v misses a connector sharing the channel", got)
	}
	if got["far"] {
		t.Errorf("scope %v includes an unrelated connector", got)
	}
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name   string
		slots  []slot
		centre float64
		gap    float64
		want   []float64
	}{
		{
			name:   "symmetric",
			slots:  []slot{{-100, 100, false}, {-100, 100, false}, {-100, 100, false}},
			centre: 0, gap: 4,
			want: []float64{-4, 0, 4},
		},
		{
			name:   "shifted by a bound",
			slots:  []slot{{-1, 100, false}, {-100, 100, false}},
			centre: 0, gap: 4,
			want: []float64{-1, 3},
		},
		{
			name:   "compressed",
			slots:  []slot{{-1, 1, false}, {-1, 1, false}},
			centre: 0, gap: 4,
			want: []float64{-1, 1},
		},
		{
			name:   "fixed slot stays",
			slots:  []slot{{-100, 100, false}, {0, 0, true}, {-100, 100, false}},
			centre: 0, gap: 4,
			want: []float64{-4, 0, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := place(tt.slots, tt.centre, tt.gap)
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-6 {
					t.Fatalf("place = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestConstraintSatisfy(t *testing.T) {
	pos := []float64{0, 1}
	pinned := []bool{false, false}

	c := constraint{kind: separation, a: 0, b: 1, value: 4}
	if c.satisfy(pos, pinned) {
		t.Error("separation reported satisfied")
	}
	if pos[1]-pos[0] != 4 {
		t.Errorf("separation not restored: %v", pos)
	}
	if !c.satisfy(pos, pinned) {
		t.Error("separation not satisfied after projection")
	}

	b := constraint{kind: bound, a: 1, lo: -1, hi: 1}
	b.satisfy(pos, pinned)
	if pos[1] != 1 {
		t.Errorf("bound not applied: %v", pos)
	}

	f := constraint{kind: fixed, a: 0, value: 7}
	f.satisfy(pos, pinned)
	if pos[0] != 7 {
		t.Errorf("fixed not applied: %v", pos)
	}
}
