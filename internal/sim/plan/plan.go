package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gardenbot.ai/internal/sim/geom"
)

var ErrInvalidProblem = errors.New("invalid problem")

// Problem is one planting instance. The agent starts at Start with full seed storage.
type Problem struct {
	Name         string
	MaxDistance  int
	SeedCapacity int
	Range        int
	Plants       []geom.Pos
	Seeds        []geom.Pos
}

func (p *Problem) Start() geom.Pos { return geom.Pos{} }

func (p *Problem) Validate() error {
	if p.MaxDistance < 0 {
		return fmt.Errorf("%w: maxDistance=%d", ErrInvalidProblem, p.MaxDistance)
	}
	if p.SeedCapacity <= 0 {
		return fmt.Errorf("%w: seedCapacity=%d", ErrInvalidProblem, p.SeedCapacity)
	}
	if p.Range < 0 {
		return fmt.Errorf("%w: range=%d", ErrInvalidProblem, p.Range)
	}
	if err := distinct("plant", p.Plants); err != nil {
		return err
	}
	return distinct("seed", p.Seeds)
}

func distinct(kind string, ps []geom.Pos) error {
	seen := make(map[geom.Pos]struct{}, len(ps))
	for _, q := range ps {
		if _, dup := seen[q]; dup {
			return fmt.Errorf("%w: duplicate %s %v", ErrInvalidProblem, kind, q)
		}
		seen[q] = struct{}{}
	}
	return nil
}

// Digest identifies the instance independently of its name.
func (p *Problem) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|", p.MaxDistance, p.SeedCapacity, p.Range)
	for _, q := range p.Plants {
		fmt.Fprintf(h, "p%d,%d;", q.X, q.Y)
	}
	for _, q := range p.Seeds {
		fmt.Fprintf(h, "s%d,%d;", q.X, q.Y)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type ActionKind uint8

const (
	Plant ActionKind = iota + 1
	Collect
)

func (k ActionKind) String() string {
	switch k {
	case Plant:
		return "PLANT"
	case Collect:
		return "COLLECT"
	}
	return "UNKNOWN"
}

// Action is an abstract step: plant near Target or collect the seed at Target. Index points
// into Problem.Plants or Problem.Seeds.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target geom.Pos   `json:"target"`
	Index  int        `json:"index"`
}

func (a Action) String() string { return fmt.Sprintf("%s%v", a.Kind, a.Target) }

func PlantAt(index int, target geom.Pos) Action {
	return Action{Kind: Plant, Target: target, Index: index}
}

func CollectAt(index int, target geom.Pos) Action {
	return Action{Kind: Collect, Target: target, Index: index}
}

// Apply moves state through a, returning the new state and its travel cost.
func (p *Problem) Apply(state geom.PositionState, a Action) (geom.PositionState, int) {
	if a.Kind == Collect {
		return state.ApplySeed(a.Target)
	}
	return state.ApplyPlant(a.Target, p.Range)
}

// CheckCapacity replays the seed storage over actions. It fails when a Plant would run on
// empty storage.
func (p *Problem) CheckCapacity(actions []Action) bool {
	storage := p.SeedCapacity
	for _, a := range actions {
		switch a.Kind {
		case Collect:
			storage = p.SeedCapacity
		case Plant:
			if storage == 0 {
				return false
			}
			storage--
		}
	}
	return true
}

// Bind resolves targets back to problem indices. Unknown targets and reused targets fail.
func (p *Problem) Bind(actions []Action) ([]Action, error) {
	plants := indexOf(p.Plants)
	seeds := indexOf(p.Seeds)
	used := make(map[Action]struct{}, len(actions))
	out := make([]Action, 0, len(actions))
	for i, a := range actions {
		idx := plants
		if a.Kind == Collect {
			idx = seeds
		}
		j, ok := idx[a.Target]
		if !ok {
			return nil, fmt.Errorf("action %d: unknown %s target %v", i, a.Kind, a.Target)
		}
		b := Action{Kind: a.Kind, Target: a.Target, Index: j}
		if _, dup := used[b]; dup {
			return nil, fmt.Errorf("action %d: %s target %v used twice", i, a.Kind, a.Target)
		}
		used[b] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}

func indexOf(ps []geom.Pos) map[geom.Pos]int {
	m := make(map[geom.Pos]int, len(ps))
	for i, q := range ps {
		m[q] = i
	}
	return m
}
