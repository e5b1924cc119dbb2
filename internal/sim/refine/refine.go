package refine

import (
	"context"
	"time"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/resolve"
)

// Greedy plants the cheapest remaining plant while storage lasts and otherwise collects the
// cheapest remaining seed. It ignores the distance budget; Evaluate truncates the result.
func Greedy(p *plan.Problem) []plan.Action {
	state := geom.Exact(p.Start())
	storage := p.SeedCapacity
	plants := make([]bool, len(p.Plants))
	seeds := make([]bool, len(p.Seeds))
	left := len(p.Plants)

	var out []plan.Action
	for left > 0 {
		var a plan.Action
		if storage > 0 {
			a = cheapest(p.Plants, plants, func(q geom.Pos) int {
				_, c := state.ApplyPlant(q, p.Range)
				return c
			})
			a.Kind = plan.Plant
		} else {
			a = cheapest(p.Seeds, seeds, state.Distance)
			if a.Index < 0 {
				break
			}
			a.Kind = plan.Collect
		}

		state, _ = p.Apply(state, a)
		out = append(out, a)
		if a.Kind == plan.Plant {
			plants[a.Index] = true
			storage--
			left--
		} else {
			seeds[a.Index] = true
			storage = p.SeedCapacity
		}
	}
	return out
}

// cheapest returns the unused target with the lowest cost, lowest index first. Index is -1
// when every target is used.
func cheapest(targets []geom.Pos, used []bool, cost func(geom.Pos) int) plan.Action {
	best := plan.Action{Index: -1}
	bestCost := 0
	for i, q := range targets {
		if used[i] {
			continue
		}
		if c := cost(q); best.Index < 0 || c < bestCost {
			best = plan.Action{Target: q, Index: i}
			bestCost = c
		}
	}
	return best
}

type SpliceOptions struct {
	// MaxSpan is the longest window rotated; values below 2 mean 2.
	MaxSpan   int
	TimeLimit time.Duration
	Now       func() time.Time
}

type SpliceStats struct {
	Passes   int
	Accepted int
	Tried    int
}

// Splice improves actions by rotating short windows. A rotation is kept when the plan stays
// within seed capacity and its score strictly improves. Passes repeat until one finds
// nothing, the time limit passes or ctx ends; the best plan so far is returned either way.
func Splice(ctx context.Context, p *plan.Problem, actions []plan.Action, opts SpliceOptions) ([]plan.Action, resolve.Score, SpliceStats) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = now().Add(opts.TimeLimit)
	}
	expired := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && !now().Before(deadline))
	}
	maxSpan := max(opts.MaxSpan, 2)

	best := append([]plan.Action(nil), actions...)
	score := resolve.Evaluate(p, best)
	cand := make([]plan.Action, len(best))
	var stats SpliceStats

	for improved := true; improved; {
		improved = false
		stats.Passes++
		for i := 0; i < len(best); i++ {
			for span := 2; span <= maxSpan && i+span <= len(best); span++ {
				for k := 1; k < span; k++ {
					if expired() {
						return best, score, stats
					}
					copy(cand, best)
					rotate(cand[i:i+span], k)
					stats.Tried++
					s := resolve.Evaluate(p, cand)
					if !s.Better(score) {
						continue
					}
					best, cand = cand, best
					score = s
					stats.Accepted++
					improved = true
				}
			}
		}
	}
	return best, score, stats
}

// rotate moves s[k:] to the front.
func rotate(s []plan.Action, k int) {
	reverse(s[:k])
	reverse(s[k:])
	reverse(s)
}

func reverse(s []plan.Action) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
