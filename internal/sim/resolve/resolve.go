package resolve

import (
	"container/heap"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

type StepKind uint8

const (
	Move StepKind = iota + 1
	Plant
	Collect
)

func (k StepKind) String() string {
	switch k {
	case Move:
		return "MOVE"
	case Plant:
		return "PLANT"
	case Collect:
		return "COLLECT"
	}
	return "UNKNOWN"
}

// Step is one concrete output instruction. Pos is the destination of a Move and the target
// of a Plant; a Collect happens wherever the agent stands.
type Step struct {
	Kind StepKind
	Pos  geom.Pos
}

type Resolution struct {
	Steps []Step
	// Feasible is false when storage would run dry or a target is unknown or reused.
	Feasible bool
	// Reached counts the abstract actions kept after budget truncation.
	Reached  int
	Planted  int
	Distance int
}

type node struct {
	pos    geom.Pos
	index  int
	dist   int
	parent int
}

type stateKey struct {
	pos   geom.Pos
	index int
}

// queue is a min-heap of arena indices ordered by distance, then by insertion.
type queue struct {
	arena *[]node
	items []int
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	a, b := (*q.arena)[q.items[i]], (*q.arena)[q.items[j]]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return q.items[i] < q.items[j]
}

func (q *queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *queue) Push(x any) { q.items = append(q.items, x.(int)) }

func (q *queue) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}

// Resolve turns abstract actions into concrete steps by Dijkstra over (position, action
// index). Every concrete position the agent may stop at after a plant is explored, and the
// plan keeps the furthest action reachable within the distance budget. Collects after the
// last reachable plant are dropped along with their distance.
func Resolve(p *plan.Problem, actions []plan.Action) Resolution {
	bound, err := p.Bind(actions)
	if err != nil || !p.CheckCapacity(bound) {
		return Resolution{}
	}

	arena := []node{{pos: p.Start(), parent: -1}}
	q := &queue{arena: &arena, items: []int{0}}
	done := make(map[stateKey]struct{})
	best := -1

	for q.Len() > 0 {
		id := heap.Pop(q).(int)
		n := arena[id]
		k := stateKey{pos: n.pos, index: n.index}
		if _, ok := done[k]; ok {
			continue
		}
		done[k] = struct{}{}

		// Pops come in distance order, so the first node at an index is its cheapest.
		if best < 0 || n.index > arena[best].index {
			best = id
		}
		if n.index == len(bound) {
			break
		}

		a := bound[n.index]
		for _, next := range successors(p, n.pos, a) {
			dist := n.dist + geom.Manhattan(n.pos, next)
			if dist > p.MaxDistance {
				continue
			}
			arena = append(arena, node{pos: next, index: n.index + 1, dist: dist, parent: id})
			heap.Push(q, len(arena)-1)
		}
	}

	return rebuild(arena, best, bound)
}

func successors(p *plan.Problem, from geom.Pos, a plan.Action) []geom.Pos {
	if a.Kind == plan.Collect {
		return []geom.Pos{a.Target}
	}
	d := geom.Manhattan(from, a.Target)
	if d <= p.Range {
		return []geom.Pos{from}
	}
	var out []geom.Pos
	for _, q := range ring(a.Target, p.Range) {
		if geom.Manhattan(from, q) == d-p.Range {
			out = append(out, q)
		}
	}
	return out
}

// ring lists the lattice points at exactly radius r from c.
func ring(c geom.Pos, r int) []geom.Pos {
	if r == 0 {
		return []geom.Pos{c}
	}
	out := make([]geom.Pos, 0, 4*r)
	for i := 0; i < r; i++ {
		j := r - i
		out = append(out,
			geom.Pos{X: c.X + i, Y: c.Y + j},
			geom.Pos{X: c.X + j, Y: c.Y - i},
			geom.Pos{X: c.X - i, Y: c.Y - j},
			geom.Pos{X: c.X - j, Y: c.Y + i},
		)
	}
	return out
}

func rebuild(arena []node, end int, actions []plan.Action) Resolution {
	res := Resolution{Feasible: true}

	var chain []int
	for id := end; id > 0; id = arena[id].parent {
		chain = append(chain, id)
	}
	// chain is newest first; drop trailing collects.
	for len(chain) > 0 && actions[arena[chain[0]].index-1].Kind == plan.Collect {
		chain = chain[1:]
	}

	prev := arena[0].pos
	for i := len(chain) - 1; i >= 0; i-- {
		n := arena[chain[i]]
		a := actions[n.index-1]
		if n.pos != prev {
			res.Steps = append(res.Steps, Step{Kind: Move, Pos: n.pos})
		}
		if a.Kind == plan.Plant {
			res.Steps = append(res.Steps, Step{Kind: Plant, Pos: a.Target})
			res.Planted++
		} else {
			res.Steps = append(res.Steps, Step{Kind: Collect, Pos: n.pos})
		}
		res.Distance = n.dist
		res.Reached = n.index
		prev = n.pos
	}
	return res
}

// Unresolve recovers abstract actions from concrete steps. A Collect takes the position of
// the preceding Move.
func Unresolve(steps []Step) []plan.Action {
	var out []plan.Action
	pos := geom.Pos{}
	for _, s := range steps {
		switch s.Kind {
		case Move:
			pos = s.Pos
		case Plant:
			out = append(out, plan.Action{Kind: plan.Plant, Target: s.Pos})
		case Collect:
			out = append(out, plan.Action{Kind: plan.Collect, Target: pos})
		}
	}
	return out
}
