package search

import (
	"context"
	"errors"
	"sort"
	"time"

	"gardenbot.ai/internal/sim/bound"
	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

// ErrIncomplete is returned when the deadline passes mid-search. The world is restored and
// nothing from the aborted subtree is cached.
var ErrIncomplete = errors.New("search: deadline reached")

type Stats struct {
	Nodes  int64
	Pruned int64
}

// Engine finds the best next action with a depth-bounded branch and bound search. It owns
// its scratch buffers and table and is not safe for concurrent use.
type Engine struct {
	// Now is the clock polled at every branch point. Nil means time.Now.
	Now func() time.Time

	problem *plan.Problem
	table   *Table
	est     *bound.Estimator

	ctx      context.Context
	deadline time.Time
	force    bool

	scratch []geom.Pos
	keyBuf  []byte
	stats   Stats
}

// NewEngine builds an engine over p. A nil table disables caching.
func NewEngine(p *plan.Problem, table *Table) *Engine {
	return &Engine{
		problem: p,
		table:   table,
		est:     bound.New(p.Range),
	}
}

func (e *Engine) Table() *Table { return e.table }

func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) expired() bool {
	if e.force {
		return false
	}
	if e.ctx != nil && e.ctx.Err() != nil {
		return true
	}
	return !e.deadline.IsZero() && !e.now().Before(e.deadline)
}

// FindBestAction returns the cheapest next action whose total, including lookahead over
// depth plant actions and the lower bound beyond, stays strictly under ceiling. w is
// mutated during the call and restored before it returns.
func (e *Engine) FindBestAction(w *World, ceiling, depth int) (Result, error) {
	return e.search(w, ceiling, depth)
}

// Estimate is the spanning-tree lower bound for planting everything left in w.
func (e *Engine) Estimate(w *World) int {
	return e.estimate(w.Pos, w.Plants, -1)
}

// estimate bounds the plants in idx, leaving out slot skip.
func (e *Engine) estimate(from geom.PositionState, idx []int, skip int) int {
	e.scratch = e.scratch[:0]
	for slot, i := range idx {
		if slot == skip {
			continue
		}
		e.scratch = append(e.scratch, e.problem.Plants[i])
	}
	return e.est.Estimate(from, e.scratch)
}

type candidate struct {
	slot  int
	index int
	next  geom.PositionState
	cost  int
	bound int
}

func (e *Engine) search(w *World, ceiling, depth int) (Result, error) {
	if len(w.Plants) == 0 {
		return Result{Kind: Solved}, nil
	}
	if depth == 0 {
		return Result{Kind: Solved, Cost: e.estimate(w.Pos, w.Plants, -1)}, nil
	}

	var key tableKey
	key, e.keyBuf = w.key(depth, e.keyBuf)
	if res, ok := e.table.lookup(key, ceiling); ok {
		return res, nil
	}
	e.stats.Nodes++

	pos := w.Pos
	best := ceiling
	var action plan.Action
	found := false

	if w.Storage > 0 {
		cands, err := e.rankPlants(w, best)
		if err != nil {
			return Result{}, err
		}
		w.Storage--
		for _, c := range cands {
			if e.expired() {
				w.Storage++
				return Result{}, ErrIncomplete
			}
			if c.bound >= best {
				// Sorted by bound: nothing after this can win either.
				e.stats.Pruned++
				break
			}
			w.Pos = c.next
			w.Plants = removeAt(w.Plants, c.slot)
			res, err := e.search(w, best-c.cost, depth-1)
			w.Plants = insertAt(w.Plants, c.slot, c.index)
			w.Pos = pos
			if err != nil {
				w.Storage++
				return Result{}, err
			}
			if res.Kind == NoSolution {
				continue
			}
			if total := c.cost + res.Cost; total < best {
				best = total
				action = plan.PlantAt(c.index, e.problem.Plants[c.index])
				found = true
			}
		}
		w.Storage++
	}

	if w.Storage < e.problem.SeedCapacity {
		cands, err := e.rankSeeds(w, best)
		if err != nil {
			return Result{}, err
		}
		storage := w.Storage
		for _, c := range cands {
			if e.expired() {
				return Result{}, ErrIncomplete
			}
			if c.bound >= best {
				e.stats.Pruned++
				break
			}
			w.Pos = c.next
			w.Storage = e.problem.SeedCapacity
			w.Seeds = removeAt(w.Seeds, c.slot)
			// Collecting is a detour, not a decision: it does not consume lookahead depth.
			res, err := e.search(w, best-c.cost, depth)
			w.Seeds = insertAt(w.Seeds, c.slot, c.index)
			w.Storage = storage
			w.Pos = pos
			if err != nil {
				return Result{}, err
			}
			if res.Kind == NoSolution {
				continue
			}
			if total := c.cost + res.Cost; total < best {
				best = total
				action = plan.CollectAt(c.index, e.problem.Seeds[c.index])
				found = true
			}
		}
	}

	res := Result{Kind: NoSolution}
	if found {
		res = Result{Kind: SolutionFound, Cost: best, Action: action}
	}
	e.table.store(key, ceiling, res)
	return res, nil
}

func (e *Engine) rankPlants(w *World, best int) ([]candidate, error) {
	cands := make([]candidate, 0, len(w.Plants))
	for slot, idx := range w.Plants {
		if e.expired() {
			return nil, ErrIncomplete
		}
		next, cost := w.Pos.ApplyPlant(e.problem.Plants[idx], e.problem.Range)
		if cost >= best {
			e.stats.Pruned++
			continue
		}
		lb := cost + e.estimate(next, w.Plants, slot)
		if lb >= best {
			e.stats.Pruned++
			continue
		}
		cands = append(cands, candidate{slot: slot, index: idx, next: next, cost: cost, bound: lb})
	}
	sortCandidates(cands)
	return cands, nil
}

func (e *Engine) rankSeeds(w *World, best int) ([]candidate, error) {
	cands := make([]candidate, 0, len(w.Seeds))
	for slot, idx := range w.Seeds {
		if e.expired() {
			return nil, ErrIncomplete
		}
		next, cost := w.Pos.ApplySeed(e.problem.Seeds[idx])
		if cost >= best {
			e.stats.Pruned++
			continue
		}
		lb := cost + e.estimate(next, w.Plants, -1)
		if lb >= best {
			e.stats.Pruned++
			continue
		}
		cands = append(cands, candidate{slot: slot, index: idx, next: next, cost: cost, bound: lb})
	}
	sortCandidates(cands)
	return cands, nil
}

// sortCandidates orders by bound; equal bounds keep slot order so runs are reproducible.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].bound < cands[j].bound })
}
