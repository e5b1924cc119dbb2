package search

import "gardenbot.ai/internal/sim/plan"

type Kind uint8

const (
	// NoSolution: no action keeps the cumulative cost under the ceiling.
	NoSolution Kind = iota
	// SolutionFound: Action is the best next action and Cost its total under the ceiling.
	SolutionFound
	// Solved: nothing left to decide, either no plants remain (Cost 0) or the lookahead
	// horizon was reached (Cost is the lower bound for the rest).
	Solved
)

func (k Kind) String() string {
	switch k {
	case NoSolution:
		return "no_solution"
	case SolutionFound:
		return "solution_found"
	case Solved:
		return "solved"
	}
	return "unknown"
}

type Result struct {
	Kind   Kind
	Cost   int
	Action plan.Action
}

type entry struct {
	ceiling int
	res     Result
}

// Table is the transposition table keyed by (world, depth). It remembers the ceiling each
// result was computed under so a lookup under a different ceiling can decide whether the
// result still holds.
type Table struct {
	MaxEntries int

	entries map[tableKey]entry

	Hits   int64
	Misses int64
	Resets int64
}

func NewTable(maxEntries int) *Table {
	return &Table{MaxEntries: maxEntries, entries: make(map[tableKey]entry)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *Table) lookup(k tableKey, ceiling int) (Result, bool) {
	if t == nil {
		return Result{}, false
	}
	e, ok := t.entries[k]
	if !ok {
		t.Misses++
		return Result{}, false
	}
	if reusable(e, ceiling) {
		t.Hits++
		return e.res, true
	}
	t.Misses++
	return Result{}, false
}

func reusable(e entry, ceiling int) bool {
	switch {
	case e.ceiling == ceiling:
		return true
	case e.ceiling > ceiling:
		// Computed under a looser ceiling.
		if e.res.Kind == NoSolution {
			return true
		}
		return e.res.Kind == SolutionFound && e.res.Cost < ceiling
	default:
		// Computed under a tighter ceiling: a solution still fits, a failure proves nothing.
		return e.res.Kind == SolutionFound
	}
}

func (t *Table) store(k tableKey, ceiling int, res Result) {
	if t == nil {
		return
	}
	if t.MaxEntries > 0 && len(t.entries) >= t.MaxEntries {
		clear(t.entries)
		t.Resets++
	}
	t.entries[k] = entry{ceiling: ceiling, res: res}
}
