package geom

import (
	"fmt"

	"gardenbot.ai/internal/sim/logic/mathx"
)

// PositionState is the set of positions the agent may occupy after its last action, all
// reachable at the same already-paid cost. Extent 0 is an exact point. A positive extent is
// the segment Anchor + t*(1,1), a negative extent is Anchor + t*(-1,1), for t in [0,|Extent|].
//
// The representation is canonical: a single point always has Extent 0, so two states
// describing the same set compare equal and can be used as map keys.
type PositionState struct {
	Anchor Pos
	Extent int
}

func Exact(p Pos) PositionState { return PositionState{Anchor: p} }

func (s PositionState) IsExact() bool { return s.Extent == 0 }

// Len is the number of lattice points in the state.
func (s PositionState) Len() int { return mathx.AbsInt(s.Extent) + 1 }

func (s PositionState) dir() Pos {
	if s.Extent < 0 {
		return Pos{X: -1, Y: 1}
	}
	return Pos{X: 1, Y: 1}
}

// At returns the i-th point, 0 <= i < Len().
func (s PositionState) At(i int) Pos {
	d := s.dir()
	return Pos{X: s.Anchor.X + i*d.X, Y: s.Anchor.Y + i*d.Y}
}

func (s PositionState) Points() []Pos {
	out := make([]Pos, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		out = append(out, s.At(i))
	}
	return out
}

func (s PositionState) String() string {
	if s.Extent == 0 {
		return s.Anchor.String()
	}
	return fmt.Sprintf("%s..%s", s.Anchor, s.At(s.Len()-1))
}

func (s PositionState) box() box {
	u, v := rot(s.Anchor)
	switch {
	case s.Extent > 0:
		return box{u: span{u, u + 2*s.Extent}, v: span{v, v}}
	case s.Extent < 0:
		return box{u: span{u, u}, v: span{v + 2*s.Extent, v}}
	}
	return box{u: span{u, u}, v: span{v, v}}
}

// fromBox converts a lattice box with at least one degenerate axis back into a state.
func fromBox(b box) PositionState {
	if b.u.single() {
		v := b.v.snap(b.u.lo)
		return PositionState{Anchor: unrot(b.u.lo, v.hi), Extent: -(v.hi - v.lo) / 2}
	}
	u := b.u.snap(b.v.lo)
	return PositionState{Anchor: unrot(u.lo, b.v.lo), Extent: (u.hi - u.lo) / 2}
}

// Distance is the taxicab distance from the nearest point of s to p.
func (s PositionState) Distance(p Pos) int {
	b := s.box()
	u, v := rot(p)
	return max(gap(b.u, span{u, u}), gap(b.v, span{v, v}))
}

// ApplySeed moves onto target exactly. Collecting removes all position uncertainty.
func (s PositionState) ApplySeed(target Pos) (PositionState, int) {
	return Exact(target), s.Distance(target)
}

// ApplyPlant returns the cheapest way to come within radius of target: the travel cost
// and the exact set of positions that achieve it.
func (s PositionState) ApplyPlant(target Pos, radius int) (PositionState, int) {
	next, cost, _ := s.plant(target, radius)
	return next, cost
}
