package bound

import "gardenbot.ai/internal/sim/geom"

// Estimator computes a lower bound on the travel needed to plant every remaining plant, as
// the weight of a Prim spanning tree rooted at the agent's state. Edge weights are
// ApplyPlant costs from the state a tree node was reached in, so seed storage is ignored
// and a plant may hang off any node instead of a single path.
//
// The bound is admissible for Radius 0 only. With a positive radius the tree edges are
// measured from the reached segments rather than a path through them, and the sum can
// exceed the cheapest order by a few steps; the search then prunes heuristically.
//
// An Estimator reuses its scratch buffers and must not be shared between goroutines.
type Estimator struct {
	Radius int

	best []int
	via  []geom.PositionState
	done []bool
}

func New(radius int) *Estimator {
	return &Estimator{Radius: radius}
}

func (e *Estimator) reset(n int) {
	if cap(e.best) < n {
		e.best = make([]int, n)
		e.via = make([]geom.PositionState, n)
		e.done = make([]bool, n)
	}
	e.best = e.best[:n]
	e.via = e.via[:n]
	e.done = e.done[:n]
	for i := range e.done {
		e.done[i] = false
	}
}

func (e *Estimator) Estimate(from geom.PositionState, plants []geom.Pos) int {
	n := len(plants)
	if n == 0 {
		return 0
	}
	e.reset(n)
	for i, p := range plants {
		_, c := from.ApplyPlant(p, e.Radius)
		e.best[i] = c
		e.via[i] = from
	}

	total := 0
	for k := 0; k < n; k++ {
		pick := -1
		for i := 0; i < n; i++ {
			if e.done[i] {
				continue
			}
			if pick < 0 || e.best[i] < e.best[pick] {
				pick = i
			}
		}
		e.done[pick] = true
		total += e.best[pick]
		if k == n-1 {
			break
		}

		node, _ := e.via[pick].ApplyPlant(plants[pick], e.Radius)
		for j := 0; j < n; j++ {
			if e.done[j] {
				continue
			}
			if _, c := node.ApplyPlant(plants[j], e.Radius); c < e.best[j] {
				e.best[j] = c
				e.via[j] = node
			}
		}
	}
	return total
}

// Estimate is a convenience for one-off calls.
func Estimate(from geom.PositionState, plants []geom.Pos, radius int) int {
	return New(radius).Estimate(from, plants)
}
