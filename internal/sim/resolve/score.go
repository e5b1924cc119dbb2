package resolve

import (
	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

type Score struct {
	Feasible bool
	Reached  int
	Planted  int
	Distance int
}

// Better orders plans by planted count, then by shorter distance. Infeasible plans lose.
func (s Score) Better(o Score) bool {
	if s.Feasible != o.Feasible {
		return s.Feasible
	}
	if s.Planted != o.Planted {
		return s.Planted > o.Planted
	}
	return s.Distance < o.Distance
}

// Evaluate scores actions the same way Resolve does, replaying position states instead of
// concrete points. Targets are taken as given; callers that may hold unknown or reused
// targets should Bind first.
func Evaluate(p *plan.Problem, actions []plan.Action) Score {
	if !p.CheckCapacity(actions) {
		return Score{}
	}
	s := Score{Feasible: true}
	state := geom.Exact(p.Start())
	traveled, planted := 0, 0
	for i, a := range actions {
		next, cost := p.Apply(state, a)
		if traveled+cost > p.MaxDistance {
			break
		}
		state = next
		traveled += cost
		if a.Kind == plan.Plant {
			planted++
			s.Reached = i + 1
			s.Planted = planted
			s.Distance = traveled
		}
	}
	return s
}

// Of reads the score of a resolution.
func Of(r Resolution) Score {
	return Score{Feasible: r.Feasible, Reached: r.Reached, Planted: r.Planted, Distance: r.Distance}
}
