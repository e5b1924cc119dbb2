package geom

import (
	"fmt"

	"gardenbot.ai/internal/sim/logic/mathx"
)

type Pos struct {
	X int
	Y int
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

func (p Pos) ToArray() [2]int { return [2]int{p.X, p.Y} }

func FromArray(a [2]int) Pos { return Pos{X: a[0], Y: a[1]} }

// Manhattan is the taxicab distance |dx|+|dy|.
func Manhattan(a, b Pos) int {
	return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Y-b.Y)
}

// In the rotated frame u=x+y, v=x-y the taxicab metric becomes the Chebyshev metric
// max(|du|,|dv|), an interaction diamond becomes an axis-aligned box and both diagonal
// directions become axis directions. Lattice points satisfy u ≡ v (mod 2).

type span struct {
	lo int
	hi int
}

func (s span) single() bool { return s.lo == s.hi }

// gap is the distance between two closed intervals, 0 when they overlap.
func gap(a, b span) int {
	return max(0, b.lo-a.hi, a.lo-b.hi)
}

func (s span) grow(d int) span { return span{lo: s.lo - d, hi: s.hi + d} }

func (s span) intersect(o span) span {
	return span{lo: max(s.lo, o.lo), hi: min(s.hi, o.hi)}
}

// snap shrinks s to the values sharing parity with w.
func (s span) snap(w int) span {
	if (s.lo-w)%2 != 0 {
		s.lo++
	}
	if (s.hi-w)%2 != 0 {
		s.hi--
	}
	return s
}

type box struct {
	u span
	v span
}

func (b box) grow(d int) box { return box{u: b.u.grow(d), v: b.v.grow(d)} }

func (b box) intersect(o box) box { return box{u: b.u.intersect(o.u), v: b.v.intersect(o.v)} }

func rot(p Pos) (int, int) { return p.X + p.Y, p.X - p.Y }

func unrot(u, v int) Pos { return Pos{X: (u + v) / 2, Y: (u - v) / 2} }

func disc(center Pos, radius int) box {
	u, v := rot(center)
	return box{u: span{u - radius, u + radius}, v: span{v - radius, v + radius}}
}
