package solve

import (
	"context"
	"log"
	"time"

	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/planner"
	"gardenbot.ai/internal/sim/refine"
	"gardenbot.ai/internal/sim/resolve"
	"gardenbot.ai/internal/sim/tuning"
)

type Options struct {
	Tuning tuning.Tuning
	// TimeLimit overrides Tuning.TimeLimitMs when positive.
	TimeLimit time.Duration
	Logger    *log.Logger
	OnStep    func(planner.Step)
	Clock     func() time.Time
}

type Outcome struct {
	Run planner.Result
	// Source is "search" or "greedy", whichever scored better before splicing.
	Source     string
	Baseline   resolve.Score
	Splice     refine.SpliceStats
	Actions    []plan.Action
	Resolution resolve.Resolution
}

// Solve runs the planner, keeps the greedy order instead when it scores better, splices
// the result when enabled and resolves it into concrete steps. On context cancellation the
// outcome holds whatever was planned so far alongside the error.
func Solve(ctx context.Context, p *plan.Problem, opts Options) (Outcome, error) {
	cfg := planner.ConfigFromTuning(opts.Tuning)
	if opts.TimeLimit > 0 {
		cfg.TimeLimit = opts.TimeLimit
	}
	cfg.Clock = opts.Clock

	pl := planner.New(p, cfg, opts.Logger)
	pl.OnStep = opts.OnStep
	run, runErr := pl.Run(ctx)

	out := Outcome{Run: run, Source: "search", Actions: run.Actions}
	score := resolve.Evaluate(p, run.Actions)

	greedy := refine.Greedy(p)
	out.Baseline = resolve.Evaluate(p, greedy)
	if out.Baseline.Better(score) {
		out.Source = "greedy"
		out.Actions = greedy
		score = out.Baseline
	}

	if runErr == nil && opts.Tuning.Refine.Splice {
		actions, s, stats := refine.Splice(ctx, p, out.Actions, refine.SpliceOptions{
			MaxSpan:   opts.Tuning.Refine.MaxSpan,
			TimeLimit: time.Duration(opts.Tuning.Refine.TimeLimitMs) * time.Millisecond,
			Now:       opts.Clock,
		})
		out.Splice = stats
		if s.Better(score) {
			out.Actions = actions
		}
	}

	out.Resolution = resolve.Resolve(p, out.Actions)
	return out, runErr
}
