package route

import (
	"testing"

	"github.com/matzehuels/detour/pkg/geom"
)

func TestInsertRemove(t *testing.T) {
	r := New(geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 10))

	mid := r.Next(r.Head())
	r.InsertAfter(r.Head(), geom.Pt(0, 5))
	r.InsertBefore(r.Head(), geom.Pt(-5, 5))
	r.Remove(mid)

	want := []geom.Point{geom.Pt(-5, 5), geom.Pt(0, 0), geom.Pt(0, 5), geom.Pt(10, 10)}
	if got := r.Points(); !Equal(got, want) {
		t.Fatalf("Points() = %v, want %v", got, want)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}

	// freed slot is recycled
	before := len(r.recs)
	r.Append(geom.Pt(20, 10))
	if len(r.recs) != before {
		t.Errorf("expected freed slot reuse, arena grew to %d", len(r.recs))
	}
}

func TestZeroRoute(t *testing.T) {
	var r Route
	if r.Head() != Nil || r.Len() != 0 {
		t.Fatal("zero route should be empty")
	}
	r.Append(geom.Pt(1, 2))
	if got := r.Points(); len(got) != 1 || got[0] != geom.Pt(1, 2) {
		t.Errorf("Points() = %v", got)
	}
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		name string
		in   []geom.Point
		want []geom.Point
	}{
		{
			name: "colinear interior",
			in:   []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
			want: []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		},
		{
			name: "duplicates",
			in:   []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 0}},
			want: []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}},
		},
		{
			name: "bend kept",
			in:   []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
			want: []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		},
		{
			name: "diagonal colinear",
			in:   []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}},
			want: []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.in...)
			r.Simplify()
			if got := r.Points(); !Equal(got, tt.want) {
				t.Errorf("Simplify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	pts := []geom.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 10}}
	r := New(pts...)
	if r.Length() != 30 {
		t.Errorf("Length() = %v, want 30", r.Length())
	}
	if Bends(pts) != 2 {
		t.Errorf("Bends() = %d, want 2", Bends(pts))
	}
	if !Orthogonal(pts) {
		t.Error("expected orthogonal route")
	}
	if !r.Intersects(geom.R(8, 4, 12, 6)) {
		t.Error("route should intersect rectangle around its vertical segment")
	}
	if r.Intersects(geom.R(30, 30, 40, 40)) {
		t.Error("route should not intersect distant rectangle")
	}
}
