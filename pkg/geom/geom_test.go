package geom

import (
	"fmt"
	"testing"
)

func TestRectPredicates(t *testing.T) {
	r := R(0, 0, 10, 10)

	tests := []struct {
		name   string
		p      Point
		in     bool
		strict bool
	}{
		{"centre", Pt(5, 5), true, true},
		{"edge", Pt(0, 5), true, false},
		{"corner", Pt(10, 10), true, false},
		{"outside", Pt(11, 5), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.p); got != tt.in {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.in)
			}
			if got := r.ContainsStrict(tt.p); got != tt.strict {
				t.Errorf("ContainsStrict(%v) = %v, want %v", tt.p, got, tt.strict)
			}
		})
	}
}

func TestRectOverlapsVsIntersects(t *testing.T) {
	a := R(0, 0, 10, 10)
	touching := R(10, 0, 20, 10)
	overlapping := R(5, 5, 15, 15)

	if !a.Intersects(touching) {
		t.Error("touching rectangles should intersect")
	}
	if a.Overlaps(touching) {
		t.Error("touching rectangles should not overlap")
	}
	if !a.Overlaps(overlapping) {
		t.Error("overlapping rectangles should overlap")
	}
}

func TestSegmentCrossesInterior(t *testing.T) {
	r := R(0, 0, 10, 10)

	tests := []struct {
		name string
		a, b Point
		want bool
	}{
		{"through", Pt(-5, 5), Pt(15, 5), true},
		{"along edge", Pt(-5, 0), Pt(15, 0), false},
		{"outside", Pt(-5, -5), Pt(15, -5), false},
		{"diagonal", Pt(-5, -5), Pt(15, 15), true},
		{"corner touch", Pt(-5, 5), Pt(5, -5), false},
		{"corner cut", Pt(-5, 5), Pt(5, -3), true},
		{"ends at edge", Pt(-5, 5), Pt(0, 5), false},
		{"inside", Pt(2, 2), Pt(3, 3), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.SegmentCrossesInterior(tt.a, tt.b); got != tt.want {
				t.Errorf("SegmentCrossesInterior(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSegmentIntersects(t *testing.T) {
	r := R(0, 0, 10, 10)
	if !r.SegmentIntersects(Pt(-5, 0), Pt(15, 0)) {
		t.Error("segment along the edge should intersect")
	}
	if !r.SegmentIntersects(Pt(-5, 5), Pt(0, 5)) {
		t.Error("segment ending on the edge should intersect")
	}
	if r.SegmentIntersects(Pt(-5, 5), Pt(-1, 5)) {
		t.Error("segment short of the edge should not intersect")
	}
}

func TestExpandCollapses(t *testing.T) {
	r := R(0, 0, 10, 4)
	got := r.Expand(-3)
	if got.Min.Y != 2 || got.Max.Y != 2 {
		t.Errorf("Expand(-3) = %v, want height collapsed onto y=2", got)
	}
	if got.Min.X != 3 || got.Max.X != 7 {
		t.Errorf("Expand(-3) = %v, want x range [3,7]", got)
	}
}

func TestDirs(t *testing.T) {
	if DirLeft.Opposite() != DirRight {
		t.Error("left should mirror to right")
	}
	if DirNone.Normalize() != DirAll {
		t.Error("none should normalize to all")
	}
	if !DirLeft.Allows(Pt(-3, 1)) {
		t.Error("left should allow a vector pointing left")
	}
	if DirLeft.Allows(Pt(0, 5)) {
		t.Error("left should not allow a vertical vector")
	}
	if got := Travel(Pt(0, 0), Pt(0, -5)); got != DirUp {
		t.Errorf("Travel up = %v", got)
	}

	d, err := ParseDirs([]string{"left", "Up"})
	if err != nil {
		t.Fatalf("ParseDirs: %v", err)
	}
	if d != DirLeft|DirUp {
		t.Errorf("ParseDirs = %v", d)
	}
	if _, err := ParseDir("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func ExampleRect_SegmentCrossesInterior() {
	box := R(100, 100, 300, 300)
	fmt.Println(box.SegmentCrossesInterior(Pt(0, 200), Pt(400, 200)))
	fmt.Println(box.SegmentCrossesInterior(Pt(0, 100), Pt(400, 100)))
	// Output:
	// true
	// false
}
