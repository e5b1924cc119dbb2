package search

import (
	"context"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

const unbounded = 1 << 30

func TestFindBestAction_TwoPlantsScenario(t *testing.T) {
	p := &plan.Problem{
		MaxDistance:  10,
		SeedCapacity: 2,
		Range:        0,
		Plants:       []geom.Pos{{X: 1}, {X: 2}},
		Seeds:        []geom.Pos{{}},
	}
	w := NewWorld(p)
	e := NewEngine(p, NewTable(0))

	res, err := e.FindBestAction(w, p.MaxDistance+1, len(w.Plants))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Kind != SolutionFound || res.Cost != 2 {
		t.Fatalf("result=%+v", res)
	}
	if res.Action != plan.PlantAt(0, geom.Pos{X: 1}) {
		t.Fatalf("action=%v", res.Action)
	}
	if cost := w.Commit(p, res.Action); cost != 1 {
		t.Fatalf("first step cost=%d", cost)
	}

	res, err = e.FindBestAction(w, p.MaxDistance-1+1, len(w.Plants))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Kind != SolutionFound || res.Action != plan.PlantAt(1, geom.Pos{X: 2}) || res.Cost != 1 {
		t.Fatalf("second result=%+v", res)
	}
	w.Commit(p, res.Action)

	res, err = e.FindBestAction(w, 9, 1)
	if err != nil || res.Kind != Solved {
		t.Fatalf("expected solved, got %+v err=%v", res, err)
	}
}

func TestFindBestAction_DepthZeroReturnsBound(t *testing.T) {
	p := &plan.Problem{SeedCapacity: 1, Plants: []geom.Pos{{X: 3}, {X: 5}}}
	w := NewWorld(p)
	e := NewEngine(p, nil)
	res, err := e.FindBestAction(w, unbounded, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Kind != Solved || res.Cost != 5 {
		t.Fatalf("depth 0 result=%+v", res)
	}
}

func TestFindBestAction_CeilingIsStrict(t *testing.T) {
	p := &plan.Problem{SeedCapacity: 1, Plants: []geom.Pos{{X: 4}}}
	e := NewEngine(p, NewTable(0))
	res, err := e.FindBestAction(NewWorld(p), 4, 1)
	if err != nil || res.Kind != NoSolution {
		t.Fatalf("cost equal to ceiling must not fit: %+v err=%v", res, err)
	}
	res, err = e.FindBestAction(NewWorld(p), 5, 1)
	if err != nil || res.Kind != SolutionFound || res.Cost != 4 {
		t.Fatalf("expected solution under looser ceiling: %+v err=%v", res, err)
	}
}

func TestFindBestAction_StuckWithoutSeeds(t *testing.T) {
	p := &plan.Problem{SeedCapacity: 1, Plants: []geom.Pos{{X: 1}, {X: 2}}}
	res, err := NewEngine(p, nil).FindBestAction(NewWorld(p), unbounded, 2)
	if err != nil || res.Kind != NoSolution {
		t.Fatalf("expected no solution: %+v err=%v", res, err)
	}
}

// randomProblem builds a small world with an interaction range in [0, maxRange].
func randomProblem(r *rand.Rand, maxRange int) *plan.Problem {
	p := &plan.Problem{SeedCapacity: 1 + r.Intn(2), Range: r.Intn(maxRange + 1)}
	seen := map[geom.Pos]bool{}
	pick := func() geom.Pos {
		for {
			q := geom.Pos{X: r.Intn(13) - 6, Y: r.Intn(13) - 6}
			if !seen[q] {
				seen[q] = true
				return q
			}
		}
	}
	for i, n := 0, 1+r.Intn(4); i < n; i++ {
		p.Plants = append(p.Plants, pick())
	}
	for i, n := 0, r.Intn(3); i < n; i++ {
		p.Seeds = append(p.Seeds, pick())
	}
	return p
}

// bruteOptimum tries every order of plant and collect actions. -1 means impossible.
func bruteOptimum(p *plan.Problem, pos geom.PositionState, storage int, plants, seeds []int) int {
	if len(plants) == 0 {
		return 0
	}
	best := -1
	try := func(c, sub int) {
		if sub >= 0 && (best < 0 || c+sub < best) {
			best = c + sub
		}
	}
	if storage > 0 {
		for i, idx := range plants {
			next, c := pos.ApplyPlant(p.Plants[idx], p.Range)
			rest := append(append([]int(nil), plants[:i]...), plants[i+1:]...)
			try(c, bruteOptimum(p, next, storage-1, rest, seeds))
		}
	}
	if storage < p.SeedCapacity {
		for i, idx := range seeds {
			next, c := pos.ApplySeed(p.Seeds[idx])
			rest := append(append([]int(nil), seeds[:i]...), seeds[i+1:]...)
			try(c, bruteOptimum(p, next, p.SeedCapacity, plants, rest))
		}
	}
	return best
}

func TestFindBestAction_FullDepthIsOptimal(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	for trial := 0; trial < 150; trial++ {
		p := randomProblem(r, 0)
		w := NewWorld(p)
		want := bruteOptimum(p, w.Pos, w.Storage, w.Plants, w.Seeds)

		before := w.Clone()
		res, err := NewEngine(p, NewTable(0)).FindBestAction(w, unbounded, len(w.Plants))
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if !reflect.DeepEqual(before, w) {
			t.Fatalf("trial %d: world not restored: %+v vs %+v", trial, before, w)
		}
		if want < 0 {
			if res.Kind != NoSolution {
				t.Fatalf("trial %d: expected no solution, got %+v", trial, res)
			}
			continue
		}
		if res.Kind != SolutionFound || res.Cost != want {
			t.Fatalf("trial %d: got %+v want cost %d (problem %+v)", trial, res, want, p)
		}
	}
}

// With a positive range the spanning-tree bound may overestimate, so a full-depth search
// can miss the optimum; it must still never report a cost below it.
func TestFindBestAction_FullDepthWithRange(t *testing.T) {
	r := rand.New(rand.NewSource(29))
	const trials = 300
	suboptimal := 0
	for trial := 0; trial < trials; trial++ {
		p := randomProblem(r, 2)
		w := NewWorld(p)
		want := bruteOptimum(p, w.Pos, w.Storage, w.Plants, w.Seeds)

		before := w.Clone()
		res, err := NewEngine(p, NewTable(0)).FindBestAction(w, unbounded, len(w.Plants))
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if !reflect.DeepEqual(before, w) {
			t.Fatalf("trial %d: world not restored", trial)
		}
		if want < 0 {
			if res.Kind != NoSolution {
				t.Fatalf("trial %d: expected no solution, got %+v", trial, res)
			}
			continue
		}
		if res.Kind != SolutionFound || res.Cost < want {
			t.Fatalf("trial %d: got %+v, optimum %d (problem %+v)", trial, res, want, p)
		}
		if res.Cost > want {
			suboptimal++
		}
	}
	if suboptimal > trials/20 {
		t.Fatalf("%d of %d ranged worlds missed the optimum", suboptimal, trials)
	}
}

func TestTable_ReuseMatchesRecompute(t *testing.T) {
	r := rand.New(rand.NewSource(23))
	for trial := 0; trial < 400; trial++ {
		p := randomProblem(r, 2)
		w := NewWorld(p)
		opt := bruteOptimum(p, w.Pos, w.Storage, w.Plants, w.Seeds)
		if opt < 0 {
			continue
		}
		ceilings := []int{opt + 6, opt, opt + 1, unbounded, max(opt-1, 0), opt + 2, opt}

		cached := NewEngine(p, NewTable(0))
		for _, c := range ceilings {
			got, err := cached.FindBestAction(w, c, len(w.Plants))
			if err != nil {
				t.Fatalf("cached: %v", err)
			}
			want, err := NewEngine(p, nil).FindBestAction(w, c, len(w.Plants))
			if err != nil {
				t.Fatalf("uncached: %v", err)
			}
			if got.Kind != want.Kind || got.Cost != want.Cost {
				t.Fatalf("trial %d ceiling %d: cached %+v, recomputed %+v", trial, c, got, want)
			}
		}
	}
}

func TestTable_ReuseRules(t *testing.T) {
	found := Result{Kind: SolutionFound, Cost: 5}
	none := Result{Kind: NoSolution}
	cases := []struct {
		stored  entry
		ceiling int
		want    bool
	}{
		{entry{10, found}, 10, true},
		{entry{10, none}, 10, true},
		{entry{10, found}, 6, true},
		{entry{10, found}, 5, false},
		{entry{10, none}, 6, true},
		{entry{6, found}, 10, true},
		{entry{6, none}, 10, false},
	}
	for i, c := range cases {
		if got := reusable(c.stored, c.ceiling); got != c.want {
			t.Fatalf("case %d: reusable=%v want %v", i, got, c.want)
		}
	}
}

func TestTable_MaxEntriesResets(t *testing.T) {
	tb := NewTable(2)
	for i := 0; i < 3; i++ {
		tb.store(tableKey{depth: i}, 1, Result{})
	}
	if tb.Len() != 1 || tb.Resets != 1 {
		t.Fatalf("len=%d resets=%d", tb.Len(), tb.Resets)
	}
}

// tickingClock advances by step on every read.
type tickingClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func lineProblem() *plan.Problem {
	return &plan.Problem{
		MaxDistance:  100,
		SeedCapacity: 3,
		Plants:       []geom.Pos{{X: 1}, {X: -2}, {X: 3}},
	}
}

func TestDriver_DeadlineKeepsFirstDepth(t *testing.T) {
	p := lineProblem()
	w := NewWorld(p)
	e := NewEngine(p, NewTable(0))
	clk := &tickingClock{t: time.Unix(0, 0), step: time.Second}
	e.Now = clk.Now
	d := &Driver{Engine: e}

	before := w.Clone()
	dec, err := d.PlanNextAction(context.Background(), w, unbounded, time.Millisecond)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if dec.Depth != 1 {
		t.Fatalf("depth=%d want 1", dec.Depth)
	}
	// One step of lookahead prefers the nearest plant.
	if dec.Result.Kind != SolutionFound || dec.Result.Action.Target != (geom.Pos{X: 1}) || dec.Result.Cost != 6 {
		t.Fatalf("decision=%+v", dec.Result)
	}
	if !reflect.DeepEqual(before, w) {
		t.Fatalf("world not restored after abort")
	}
}

func TestDriver_MoreTimeLooksDeeper(t *testing.T) {
	p := lineProblem()
	w := NewWorld(p)
	d := &Driver{Engine: NewEngine(p, NewTable(0))}
	dec, err := d.PlanNextAction(context.Background(), w, unbounded, 0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if dec.Depth != 3 {
		t.Fatalf("depth=%d want 3", dec.Depth)
	}
	if dec.Result.Action.Target != (geom.Pos{X: -2}) || dec.Result.Cost != 7 {
		t.Fatalf("decision=%+v", dec.Result)
	}
}

func TestDriver_CancelledContextStillAnswers(t *testing.T) {
	p := lineProblem()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Driver{Engine: NewEngine(p, NewTable(0))}
	dec, err := d.PlanNextAction(ctx, NewWorld(p), unbounded, time.Hour)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if dec.Depth != 1 || dec.Result.Kind != SolutionFound {
		t.Fatalf("decision=%+v depth=%d", dec.Result, dec.Depth)
	}
}

func TestDriver_MaxDepthCapsLookahead(t *testing.T) {
	p := lineProblem()
	d := &Driver{Engine: NewEngine(p, NewTable(0)), MaxDepth: 2}
	dec, err := d.PlanNextAction(context.Background(), NewWorld(p), unbounded, 0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if dec.Depth != 2 {
		t.Fatalf("depth=%d want 2", dec.Depth)
	}
}
