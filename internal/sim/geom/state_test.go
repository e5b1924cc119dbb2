package geom

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func contains(s PositionState, p Pos) bool {
	return s.Distance(p) == 0
}

// nearest returns the first point of s closest to p.
func nearest(s PositionState, p Pos) Pos {
	pts := s.Points()
	best := pts[0]
	for _, q := range pts[1:] {
		if Manhattan(q, p) < Manhattan(best, p) {
			best = q
		}
	}
	return best
}

func TestApplyPlant_Cases(t *testing.T) {
	cases := []struct {
		name     string
		from     PositionState
		target   Pos
		radius   int
		approach Approach
		cost     int
		want     PositionState
	}{
		{
			name:     "corner from exact point",
			from:     Exact(Pos{}),
			target:   Pos{X: 5, Y: 0},
			radius:   2,
			approach: ApproachCorner,
			cost:     3,
			want:     Exact(Pos{X: 3, Y: 0}),
		},
		{
			name:     "up-left edge from exact point",
			from:     Exact(Pos{}),
			target:   Pos{X: 5, Y: 1},
			radius:   2,
			approach: ApproachUpLeft,
			cost:     4,
			want:     PositionState{Anchor: Pos{X: 4, Y: 0}, Extent: -1},
		},
		{
			name:     "up-right edge from segment",
			from:     PositionState{Anchor: Pos{}, Extent: 4},
			target:   Pos{X: 4, Y: 0},
			radius:   2,
			approach: ApproachUpRight,
			cost:     2,
			want:     PositionState{Anchor: Pos{X: 2, Y: 0}, Extent: 2},
		},
		{
			name:     "within shrinks segment",
			from:     PositionState{Anchor: Pos{}, Extent: 4},
			target:   Pos{X: 3, Y: 4},
			radius:   1,
			approach: ApproachWithin,
			cost:     0,
			want:     PositionState{Anchor: Pos{X: 3, Y: 3}, Extent: 1},
		},
		{
			name:     "within keeps exact point",
			from:     Exact(Pos{X: 1, Y: 1}),
			target:   Pos{X: 2, Y: 2},
			radius:   2,
			approach: ApproachWithin,
			cost:     0,
			want:     Exact(Pos{X: 1, Y: 1}),
		},
		{
			name:     "zero radius lands on target",
			from:     PositionState{Anchor: Pos{}, Extent: 2},
			target:   Pos{X: 1, Y: 0},
			radius:   0,
			approach: ApproachUpRight,
			cost:     1,
			want:     Exact(Pos{X: 1, Y: 0}),
		},
	}
	for _, c := range cases {
		got, cost := c.from.ApplyPlant(c.target, c.radius)
		if a := c.from.Approach(c.target, c.radius); a != c.approach {
			t.Fatalf("%s: approach=%s want %s", c.name, a, c.approach)
		}
		if cost != c.cost {
			t.Fatalf("%s: cost=%d want %d", c.name, cost, c.cost)
		}
		if got != c.want {
			t.Fatalf("%s: state=%v want %v", c.name, got, c.want)
		}
	}
}

func TestApplyPlant_ExactPointCostConsistency(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := Pos{X: r.Intn(21) - 10, Y: r.Intn(21) - 10}
		tgt := Pos{X: r.Intn(21) - 10, Y: r.Intn(21) - 10}
		radius := r.Intn(4)
		next, cost := Exact(p).ApplyPlant(tgt, radius)
		want := max(0, Manhattan(p, tgt)-radius)
		if cost != want {
			t.Fatalf("p=%v t=%v r=%d: cost=%d want %d", p, tgt, radius, cost, want)
		}
		q := nearest(next, tgt)
		d := Manhattan(q, tgt)
		if cost > 0 && d != radius {
			t.Fatalf("p=%v t=%v r=%d: landed at distance %d", p, tgt, radius, d)
		}
		if cost == 0 && d > radius {
			t.Fatalf("p=%v t=%v r=%d: out of range at distance %d", p, tgt, radius, d)
		}
	}
}

// bruteReach enumerates every lattice point within radius of target and keeps the ones
// cheapest to reach from any point of s.
func bruteReach(s PositionState, target Pos, radius int) ([]Pos, int) {
	best := -1
	var out []Pos
	for dx := -radius; dx <= radius; dx++ {
		rem := radius - abs(dx)
		for dy := -rem; dy <= rem; dy++ {
			q := Pos{X: target.X + dx, Y: target.Y + dy}
			c := -1
			for _, p := range s.Points() {
				if d := Manhattan(p, q); c < 0 || d < c {
					c = d
				}
			}
			switch {
			case best < 0 || c < best:
				best = c
				out = []Pos{q}
			case c == best:
				out = append(out, q)
			}
		}
	}
	return out, best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sortPos(ps []Pos) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		return ps[i].Y < ps[j].Y
	})
}

func TestApplyPlant_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		s := PositionState{
			Anchor: Pos{X: r.Intn(11) - 5, Y: r.Intn(11) - 5},
			Extent: r.Intn(9) - 4,
		}
		tgt := Pos{X: r.Intn(17) - 8, Y: r.Intn(17) - 8}
		radius := r.Intn(4)

		got, cost := s.ApplyPlant(tgt, radius)
		want, wantCost := bruteReach(s, tgt, radius)
		if cost != wantCost {
			t.Fatalf("s=%v t=%v r=%d: cost=%d want %d", s, tgt, radius, cost, wantCost)
		}
		pts := got.Points()
		sortPos(pts)
		sortPos(want)
		if !reflect.DeepEqual(pts, want) {
			t.Fatalf("s=%v t=%v r=%d: reach=%v want %v", s, tgt, radius, pts, want)
		}
		if got.Len() == 1 && got.Extent != 0 {
			t.Fatalf("single point must be canonical: %+v", got)
		}
	}
}

func TestApplySeed(t *testing.T) {
	next, cost := Exact(Pos{X: 3, Y: 0}).ApplySeed(Pos{X: 3, Y: 5})
	if cost != 5 || next != Exact(Pos{X: 3, Y: 5}) {
		t.Fatalf("seed: state=%v cost=%d", next, cost)
	}

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		s := PositionState{
			Anchor: Pos{X: r.Intn(11) - 5, Y: r.Intn(11) - 5},
			Extent: r.Intn(9) - 4,
		}
		seed := Pos{X: r.Intn(17) - 8, Y: r.Intn(17) - 8}
		next, cost := s.ApplySeed(seed)
		want := -1
		for _, p := range s.Points() {
			if d := Manhattan(p, seed); want < 0 || d < want {
				want = d
			}
		}
		if cost != want {
			t.Fatalf("s=%v seed=%v: cost=%d want %d", s, seed, cost, want)
		}
		if !next.IsExact() || next.Anchor != seed {
			t.Fatalf("seed must collapse state: %v", next)
		}
		if n := nearest(s, seed); Manhattan(n, seed) != want || !contains(s, n) {
			t.Fatalf("s=%v seed=%v: nearest=%v", s, seed, n)
		}
	}
}

func TestPoints_Orientation(t *testing.T) {
	up := PositionState{Anchor: Pos{X: 1, Y: 1}, Extent: 2}
	if got := up.Points(); !reflect.DeepEqual(got, []Pos{{1, 1}, {2, 2}, {3, 3}}) {
		t.Fatalf("up-right points: %v", got)
	}
	left := PositionState{Anchor: Pos{X: 1, Y: 1}, Extent: -2}
	if got := left.Points(); !reflect.DeepEqual(got, []Pos{{1, 1}, {0, 2}, {-1, 3}}) {
		t.Fatalf("up-left points: %v", got)
	}
	if !contains(left, Pos{X: 0, Y: 2}) || contains(left, Pos{X: 2, Y: 2}) {
		t.Fatalf("contains mismatch")
	}
}
