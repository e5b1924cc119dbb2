package search

import (
	"context"
	"errors"
	"time"
)

// Driver runs the engine with iterative deepening under a wall-clock budget.
type Driver struct {
	Engine *Engine
	// MaxDepth caps the lookahead; 0 means the number of remaining plants.
	MaxDepth int
}

type Decision struct {
	Result Result
	// Depth is the deepest lookahead that completed.
	Depth   int
	Elapsed time.Duration
}

// PlanNextAction searches depth 1, 2, ... against the shared table until budget runs out
// and returns the result of the deepest depth that finished. Depth 1 always finishes, even
// past the deadline. A budget <= 0 runs every depth to completion.
func (d *Driver) PlanNextAction(ctx context.Context, w *World, ceiling int, budget time.Duration) (Decision, error) {
	e := d.Engine
	start := e.now()

	e.ctx = ctx
	e.deadline = time.Time{}
	if budget > 0 {
		e.deadline = start.Add(budget)
	}
	defer func() {
		e.ctx = nil
		e.deadline = time.Time{}
		e.force = false
	}()

	maxDepth := len(w.Plants)
	if d.MaxDepth > 0 && d.MaxDepth < maxDepth {
		maxDepth = d.MaxDepth
	}
	maxDepth = max(maxDepth, 1)

	var dec Decision
	for depth := 1; depth <= maxDepth; depth++ {
		e.force = depth == 1
		res, err := e.search(w, ceiling, depth)
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			return dec, err
		}
		dec.Result = res
		dec.Depth = depth
	}
	dec.Elapsed = e.now().Sub(start)
	return dec, nil
}
