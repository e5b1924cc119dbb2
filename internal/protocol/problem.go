package protocol

import (
	"encoding/json"
	"fmt"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

// ProblemDoc is the input file format.
type ProblemDoc struct {
	MaxDistance  int      `json:"maxDistance"`
	SeedCapacity int      `json:"seedCapacity"`
	Range        int      `json:"range"`
	Seeds        [][2]int `json:"seeds"`
	Plants       [][2]int `json:"plants"`
}

// DecodeProblem validates raw against the problem schema and the problem invariants.
func DecodeProblem(name string, raw []byte) (*plan.Problem, error) {
	if err := Validate(SchemaProblem, raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, plan.ErrInvalidProblem, err)
	}
	var doc ProblemDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p := doc.Problem(name)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

func (d ProblemDoc) Problem(name string) *plan.Problem {
	return &plan.Problem{
		Name:         name,
		MaxDistance:  d.MaxDistance,
		SeedCapacity: d.SeedCapacity,
		Range:        d.Range,
		Plants:       fromArrays(d.Plants),
		Seeds:        fromArrays(d.Seeds),
	}
}

func ProblemDocOf(p *plan.Problem) ProblemDoc {
	return ProblemDoc{
		MaxDistance:  p.MaxDistance,
		SeedCapacity: p.SeedCapacity,
		Range:        p.Range,
		Seeds:        toArrays(p.Seeds),
		Plants:       toArrays(p.Plants),
	}
}

func fromArrays(in [][2]int) []geom.Pos {
	out := make([]geom.Pos, len(in))
	for i, a := range in {
		out[i] = geom.FromArray(a)
	}
	return out
}

func toArrays(in []geom.Pos) [][2]int {
	out := make([][2]int, len(in))
	for i, q := range in {
		out[i] = q.ToArray()
	}
	return out
}
