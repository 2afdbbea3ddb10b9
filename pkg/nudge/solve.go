package nudge

import (
	"math"

	"github.com/matzehuels/detour/pkg/geom"
)

// constraintKind tags the variants of constraint.
type constraintKind uint8

const (
	// separation keeps pos[b] at least value above pos[a].
	separation constraintKind = iota
	// fixed pins pos[a] to value.
	fixed
	// bound keeps pos[a] within [lo, hi].
	bound
)

type constraint struct {
	kind   constraintKind
	a, b   int
	value  float64
	lo, hi float64
}

// satisfy projects pos onto c and reports whether it already held.
func (c constraint) satisfy(pos []float64, pinned []bool) bool {
	switch c.kind {
	case fixed:
		if math.Abs(pos[c.a]-c.value) <= geom.Eps {
			return true
		}
		pos[c.a] = c.value
		return false

	case bound:
		switch {
		case pos[c.a] < c.lo-geom.Eps:
			pos[c.a] = c.lo
		case pos[c.a] > c.hi+geom.Eps:
			pos[c.a] = c.hi
		default:
			return true
		}
		return false

	case separation:
		short := c.value - (pos[c.b] - pos[c.a])
		if short <= geom.Eps {
			return true
		}
		switch {
		case pinned[c.a] && pinned[c.b]:
			return true
		case pinned[c.a]:
			pos[c.b] += short
		case pinned[c.b]:
			pos[c.a] -= short
		default:
			pos[c.a] -= short / 2
			pos[c.b] += short / 2
		}
		return false
	}
	return true
}

const maxIterations = 100

// solver projects positions onto its constraints until they all hold. Bound
// and fixed constraints win over separation when the set is infeasible.
type solver struct {
	pos    []float64
	pinned []bool
	cs     []constraint
}

func (s *solver) solve() {
	for range maxIterations {
		done := true
		for _, c := range s.cs {
			if !c.satisfy(s.pos, s.pinned) {
				done = false
			}
		}
		if done {
			return
		}
	}
	for _, c := range s.cs {
		if c.kind != separation {
			c.satisfy(s.pos, s.pinned)
		}
	}
}

// slot is one position in a separation group. Several immovable segments
// share a single slot.
type slot struct {
	lo, hi float64
	fixed  bool
}

// place spreads slots around centre at the given gap. The block is shifted
// to fit every slot's bounds and the gap is compressed when it cannot fit.
// A fixed slot stays at centre.
func place(slots []slot, centre, gap float64) []float64 {
	m := len(slots)
	jf := -1
	for j, sl := range slots {
		if sl.fixed {
			jf = j
			break
		}
	}

	// base ranges over the first slot's positions that satisfy every bound
	// when slots are g apart.
	baseRange := func(g float64) (float64, float64) {
		lo, hi := math.Inf(-1), math.Inf(1)
		for j, sl := range slots {
			lo = math.Max(lo, sl.lo-float64(j)*g)
			hi = math.Min(hi, sl.hi-float64(j)*g)
		}
		return lo, hi
	}
	feasible := func(g float64) bool {
		lo, hi := baseRange(g)
		if jf >= 0 {
			base := centre - float64(jf)*g
			return base >= lo-geom.Eps && base <= hi+geom.Eps
		}
		return lo <= hi+geom.Eps
	}

	g := gap
	if !feasible(g) {
		lo, hi := 0.0, gap
		for range 50 {
			mid := (lo + hi) / 2
			if feasible(mid) {
				lo = mid
			} else {
				hi = mid
			}
		}
		g = lo
	}

	var base float64
	if jf >= 0 {
		base = centre - float64(jf)*g
	} else {
		base = centre - float64(m-1)/2*g
		if lo, hi := baseRange(g); lo <= hi {
			base = math.Min(math.Max(base, lo), hi)
		}
	}

	s := &solver{pos: make([]float64, m), pinned: make([]bool, m)}
	for j, sl := range slots {
		s.pos[j] = base + float64(j)*g
		if sl.fixed {
			s.pinned[j] = true
			s.cs = append(s.cs, constraint{kind: fixed, a: j, value: centre})
		}
		s.cs = append(s.cs, constraint{kind: bound, a: j, lo: sl.lo, hi: sl.hi})
		if j > 0 {
			s.cs = append(s.cs, constraint{kind: separation, a: j - 1, b: j, value: g})
		}
	}
	s.solve()
	return s.pos
}
