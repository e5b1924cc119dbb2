package geom

// Approach classifies how a state reaches an interaction disc.
type Approach uint8

const (
	// ApproachWithin: the state already touches the disc and shrinks to the part in range.
	ApproachWithin Approach = iota
	// ApproachCorner: both rotated axes bind and a single point is optimal.
	ApproachCorner
	// ApproachUpRight: the v axis binds; the optimal set runs along (1,1).
	ApproachUpRight
	// ApproachUpLeft: the u axis binds; the optimal set runs along (-1,1).
	ApproachUpLeft
)

func (a Approach) String() string {
	switch a {
	case ApproachWithin:
		return "within"
	case ApproachCorner:
		return "corner"
	case ApproachUpRight:
		return "up_right"
	case ApproachUpLeft:
		return "up_left"
	}
	return "unknown"
}

func classify(gu, gv int) Approach {
	switch {
	case gu == 0 && gv == 0:
		return ApproachWithin
	case gu == gv:
		return ApproachCorner
	case gv > gu:
		return ApproachUpRight
	}
	return ApproachUpLeft
}

// Approach reports which case ApplyPlant takes for target.
func (s PositionState) Approach(target Pos, radius int) Approach {
	_, _, a := s.plant(target, radius)
	return a
}

func (s PositionState) plant(target Pos, radius int) (PositionState, int, Approach) {
	b := s.box()
	d := disc(target, radius)
	gu, gv := gap(b.u, d.u), gap(b.v, d.v)
	a := classify(gu, gv)
	if a == ApproachWithin {
		return fromBox(b.intersect(d)), 0, a
	}
	// The binding axis collapses to the disc edge facing s; the other axis keeps every value
	// still reachable within cost.
	cost := max(gu, gv)
	return fromBox(b.grow(cost).intersect(d)), cost, a
}
