package solve

import (
	"context"
	"math/rand"
	"testing"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/planner"
	"gardenbot.ai/internal/sim/resolve"
	"gardenbot.ai/internal/sim/tuning"
)

func TestSolve_TwoPlants(t *testing.T) {
	p := &plan.Problem{
		MaxDistance:  10,
		SeedCapacity: 2,
		Plants:       []geom.Pos{{X: 1}, {X: 2}},
		Seeds:        []geom.Pos{{}},
	}
	var steps int
	out, err := Solve(context.Background(), p, Options{
		Tuning: tuning.Defaults(),
		OnStep: func(planner.Step) { steps++ },
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if out.Source != "search" || steps != 2 {
		t.Fatalf("source=%s steps=%d", out.Source, steps)
	}
	r := out.Resolution
	if !r.Feasible || r.Planted != 2 || r.Distance != 2 || len(r.Steps) != 4 {
		t.Fatalf("resolution=%+v", r)
	}
}

func TestSolve_NeverWorseThanGreedy(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	tu := tuning.Defaults()
	tu.TimeLimitMs = 0
	tu.Refine.TimeLimitMs = 0
	tu.Refine.MaxSpan = 3
	for trial := 0; trial < 30; trial++ {
		p := &plan.Problem{MaxDistance: 15 + r.Intn(40), SeedCapacity: 1 + r.Intn(2), Range: r.Intn(2)}
		seen := map[geom.Pos]bool{}
		for len(p.Plants)+len(p.Seeds) < 8 {
			q := geom.Pos{X: r.Intn(15) - 7, Y: r.Intn(15) - 7}
			if seen[q] {
				continue
			}
			seen[q] = true
			if len(p.Plants) < 5 {
				p.Plants = append(p.Plants, q)
			} else {
				p.Seeds = append(p.Seeds, q)
			}
		}
		out, err := Solve(context.Background(), p, Options{Tuning: tu})
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		got := resolve.Of(out.Resolution)
		if out.Baseline.Better(got) {
			t.Fatalf("trial %d: greedy %+v beats result %+v", trial, out.Baseline, got)
		}
		if got != resolve.Evaluate(p, out.Actions) {
			t.Fatalf("trial %d: resolution %+v disagrees with evaluation", trial, got)
		}
	}
}

func TestSolve_CancelledKeepsPartial(t *testing.T) {
	p := &plan.Problem{MaxDistance: 10, SeedCapacity: 1, Plants: []geom.Pos{{X: 1}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := Solve(ctx, p, Options{Tuning: tuning.Defaults()})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if out.Run.Planted != 0 || !out.Resolution.Feasible {
		t.Fatalf("outcome=%+v", out)
	}
}
