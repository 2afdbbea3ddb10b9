package geom

import (
	"fmt"
	"strings"
)

// Dir is a set of compass directions. Pins use it to restrict the side a
// connector may leave or approach them from; a connector attached to a pin
// with DirLeft leaves it travelling left.
type Dir uint8

const (
	DirNone  Dir = 0
	DirUp    Dir = 1 << 0
	DirDown  Dir = 1 << 1
	DirLeft  Dir = 1 << 2
	DirRight Dir = 1 << 3
	DirAll       = DirUp | DirDown | DirLeft | DirRight
)

var dirNames = []struct {
	d    Dir
	name string
}{
	{DirUp, "up"},
	{DirDown, "down"},
	{DirLeft, "left"},
	{DirRight, "right"},
}

// Has reports whether every direction in x is in d.
func (d Dir) Has(x Dir) bool {
	return x != DirNone && d&x == x
}

// Valid reports whether d only uses known direction bits.
func (d Dir) Valid() bool {
	return d&^DirAll == 0
}

// Normalize maps the empty set to DirAll. A pin without a direction
// restriction can be approached from every side.
func (d Dir) Normalize() Dir {
	if d == DirNone {
		return DirAll
	}
	return d
}

// Opposite mirrors every direction in d.
func (d Dir) Opposite() Dir {
	var o Dir
	if d&DirUp != 0 {
		o |= DirDown
	}
	if d&DirDown != 0 {
		o |= DirUp
	}
	if d&DirLeft != 0 {
		o |= DirRight
	}
	if d&DirRight != 0 {
		o |= DirLeft
	}
	return o
}

// Vector returns the unit vector of a single direction.
func (d Dir) Vector() Point {
	switch d {
	case DirUp:
		return Point{0, -1}
	case DirDown:
		return Point{0, 1}
	case DirLeft:
		return Point{-1, 0}
	case DirRight:
		return Point{1, 0}
	}
	return Point{}
}

// Allows reports whether travelling along v is compatible with d, that is
// v points into one of the half planes named by d.
func (d Dir) Allows(v Point) bool {
	d = d.Normalize()
	for _, dn := range dirNames {
		if d&dn.d == 0 {
			continue
		}
		u := dn.d.Vector()
		if u.X*v.X+u.Y*v.Y > Eps {
			return true
		}
	}
	return false
}

// Travel returns the direction of travel from a to b along one axis, or
// DirNone for diagonal or zero-length moves.
func Travel(a, b Point) Dir {
	ax, ok := SegmentAxis(a, b)
	if !ok || a.Near(b) {
		return DirNone
	}
	if ax == Horizontal {
		if b.X > a.X {
			return DirRight
		}
		return DirLeft
	}
	if b.Y > a.Y {
		return DirDown
	}
	return DirUp
}

func (d Dir) String() string {
	switch d {
	case DirNone:
		return "none"
	case DirAll:
		return "all"
	}
	var parts []string
	for _, dn := range dirNames {
		if d&dn.d != 0 {
			parts = append(parts, dn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseDir parses a direction name ("left", "all", "none", ...).
func ParseDir(s string) (Dir, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none":
		return DirNone, nil
	case "all":
		return DirAll, nil
	}
	for _, dn := range dirNames {
		if dn.name == s {
			return dn.d, nil
		}
	}
	return DirNone, fmt.Errorf("unknown direction %q", s)
}

// ParseDirs combines a list of direction names.
func ParseDirs(names []string) (Dir, error) {
	var d Dir
	for _, n := range names {
		x, err := ParseDir(n)
		if err != nil {
			return DirNone, err
		}
		d |= x
	}
	return d, nil
}
