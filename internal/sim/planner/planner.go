package planner

import (
	"context"
	"io"
	"log"
	"math"
	"time"

	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/search"
	"gardenbot.ai/internal/sim/tuning"
)

type Config struct {
	// TimeLimit is split evenly over the plants when StepBudget is zero.
	TimeLimit  time.Duration
	StepBudget time.Duration
	MaxDepth   int
	// RelaxBudget retries without a ceiling once nothing fits the remaining budget.
	RelaxBudget     bool
	MaxTableEntries int
	LogEvery        int

	Clock func() time.Time
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		TimeLimit:       time.Duration(t.TimeLimitMs) * time.Millisecond,
		StepBudget:      time.Duration(t.StepBudgetMs) * time.Millisecond,
		MaxDepth:        t.MaxDepth,
		RelaxBudget:     t.RelaxBudget,
		MaxTableEntries: t.MaxTableEntries,
		LogEvery:        t.LogEvery,
	}
}

// Step describes one committed action.
type Step struct {
	Seq       int           `json:"seq"`
	Action    plan.Action   `json:"action"`
	Cost      int           `json:"cost"`
	Traveled  int           `json:"traveled"`
	Depth     int           `json:"depth"`
	Remaining int           `json:"remaining"`
	TableSize int           `json:"table_size"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

type Result struct {
	Actions  []plan.Action
	Steps    []Step
	Planted  int
	Distance int
	// Stuck is set when plants remain: nothing fits the budget or no seeds are left.
	Stuck   bool
	Elapsed time.Duration
}

type Planner struct {
	problem *plan.Problem
	cfg     Config
	log     *log.Logger

	// OnStep is called after every committed action.
	OnStep func(Step)
}

func New(p *plan.Problem, cfg Config, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Planner{problem: p, cfg: cfg, log: logger}
}

func (pl *Planner) now() time.Time {
	if pl.cfg.Clock != nil {
		return pl.cfg.Clock()
	}
	return time.Now()
}

func (pl *Planner) stepBudget() time.Duration {
	if pl.cfg.StepBudget > 0 {
		return pl.cfg.StepBudget
	}
	if pl.cfg.TimeLimit > 0 && len(pl.problem.Plants) > 0 {
		return pl.cfg.TimeLimit / time.Duration(len(pl.problem.Plants))
	}
	return 0
}

// Run plans until every plant is planted, nothing improves, or the budget is spent. A
// cancelled context returns the partial plan together with the context error.
func (pl *Planner) Run(ctx context.Context) (Result, error) {
	p := pl.problem
	start := pl.now()

	w := search.NewWorld(p)
	engine := search.NewEngine(p, search.NewTable(pl.cfg.MaxTableEntries))
	engine.Now = pl.cfg.Clock
	driver := &search.Driver{Engine: engine, MaxDepth: pl.cfg.MaxDepth}
	budget := pl.stepBudget()

	var res Result
	limited := true
	for len(w.Plants) > 0 {
		if err := ctx.Err(); err != nil {
			pl.finish(&res, w, start)
			return res, err
		}

		ceiling := math.MaxInt / 2
		if limited {
			ceiling = p.MaxDistance - res.Distance + 1
		}
		dec, err := driver.PlanNextAction(ctx, w, ceiling, budget)
		if err != nil {
			pl.finish(&res, w, start)
			return res, err
		}
		if dec.Result.Kind != search.SolutionFound {
			if limited && pl.cfg.RelaxBudget {
				pl.log.Printf("nothing fits ceiling=%d with %d plants left; planning without ceiling", ceiling, len(w.Plants))
				limited = false
				continue
			}
			break
		}

		a := dec.Result.Action
		if _, cost := p.Apply(w.Pos, a); res.Distance+cost > p.MaxDistance {
			pl.log.Printf("budget exhausted: %s costs %d with %d left", a, cost, p.MaxDistance-res.Distance)
			break
		}
		cost := w.Commit(p, a)
		res.Distance += cost
		res.Actions = append(res.Actions, a)
		if a.Kind == plan.Plant {
			res.Planted++
		}

		st := Step{
			Seq:       len(res.Steps),
			Action:    a,
			Cost:      cost,
			Traveled:  res.Distance,
			Depth:     dec.Depth,
			Remaining: len(w.Plants),
			TableSize: engine.Table().Len(),
			Elapsed:   dec.Elapsed,
		}
		res.Steps = append(res.Steps, st)
		if pl.OnStep != nil {
			pl.OnStep(st)
		}
		if pl.cfg.LogEvery > 0 && a.Kind == plan.Plant && len(w.Plants)%pl.cfg.LogEvery == 0 {
			stats := engine.Stats()
			pl.log.Printf("remaining=%d ceiling=%d cost=%d depth=%d table=%d nodes=%d",
				len(w.Plants), ceiling, dec.Result.Cost, dec.Depth, st.TableSize, stats.Nodes)
		}
	}

	pl.finish(&res, w, start)
	return res, nil
}

func (pl *Planner) finish(res *Result, w *search.World, start time.Time) {
	res.Stuck = len(w.Plants) > 0
	if res.Stuck {
		// A collect after the last plant only costs distance.
		for len(res.Actions) > 0 && res.Actions[len(res.Actions)-1].Kind == plan.Collect {
			last := res.Steps[len(res.Steps)-1]
			res.Distance -= last.Cost
			res.Actions = res.Actions[:len(res.Actions)-1]
			res.Steps = res.Steps[:len(res.Steps)-1]
		}
	}
	res.Elapsed = pl.now().Sub(start)
}
