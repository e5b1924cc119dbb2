package main

import (
	"fmt"

	persistlog "gardenbot.ai/internal/persistence/log"
	"gardenbot.ai/internal/persistence/snapshot"
	"gardenbot.ai/internal/protocol"
	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/resolve"
)

// verifyPlan re-resolves the stored actions and checks them against the header.
func verifyPlan(snap snapshot.PlanV1) (resolve.Resolution, error) {
	p := snap.Problem()
	if err := p.Validate(); err != nil {
		return resolve.Resolution{}, err
	}
	if d := p.Digest(); d != snap.Header.Digest {
		return resolve.Resolution{}, fmt.Errorf("digest %s, header says %s", d, snap.Header.Digest)
	}
	stored := snap.PlanActions()
	actions, err := p.Bind(stored)
	if err != nil {
		return resolve.Resolution{}, err
	}
	for i := range actions {
		if actions[i].Index != stored[i].Index {
			return resolve.Resolution{}, fmt.Errorf("action %d: index %d, target is %d", i, stored[i].Index, actions[i].Index)
		}
	}

	res := resolve.Resolve(p, actions)
	if !res.Feasible {
		return res, fmt.Errorf("infeasible: storage runs dry")
	}
	if res.Planted != snap.Header.Planted || res.Distance != snap.Header.Distance {
		return res, fmt.Errorf("resolved planted=%d distance=%d, header says %d %d",
			res.Planted, res.Distance, snap.Header.Planted, snap.Header.Distance)
	}
	if got := resolve.Evaluate(p, actions); got != resolve.Of(res) {
		return res, fmt.Errorf("evaluation %+v disagrees with resolution %+v", got, resolve.Of(res))
	}
	return res, nil
}

// verifyTrace checks that the recorded search steps are consistent with each other and with
// the plan's problem. The stored plan may differ from the trace after refinement.
func verifyTrace(snap snapshot.PlanV1, entries []persistlog.TraceEntry) error {
	p := snap.Problem()
	actions := make([]plan.Action, 0, len(entries))
	traveled := 0
	for i, e := range entries {
		if e.RunID != snap.Header.RunID {
			return fmt.Errorf("entry %d: run %s, plan is %s", i, e.RunID, snap.Header.RunID)
		}
		if e.Seq != i {
			return fmt.Errorf("entry %d: seq %d", i, e.Seq)
		}
		if e.Traveled != traveled+e.Cost {
			return fmt.Errorf("entry %d: traveled %d after %d + %d", i, e.Traveled, traveled, e.Cost)
		}
		traveled = e.Traveled
		switch e.Kind {
		case plan.Plant.String():
			actions = append(actions, plan.Action{Kind: plan.Plant, Target: geom.FromArray(e.Pos)})
		case plan.Collect.String():
			actions = append(actions, plan.Action{Kind: plan.Collect, Target: geom.FromArray(e.Pos)})
		default:
			return fmt.Errorf("entry %d: unknown kind %q", i, e.Kind)
		}
	}
	if traveled > p.MaxDistance {
		return fmt.Errorf("traveled %d over budget %d", traveled, p.MaxDistance)
	}
	bound, err := p.Bind(actions)
	if err != nil {
		return err
	}
	if !p.CheckCapacity(bound) {
		return fmt.Errorf("storage runs dry")
	}
	return nil
}

// walkSteps follows the concrete output against p and returns what it plants and travels.
func walkSteps(p *plan.Problem, lines []string) (planted, distance int, err error) {
	steps, err := protocol.ParseSteps(lines)
	if err != nil {
		return 0, 0, err
	}
	plants := map[geom.Pos]bool{}
	for _, q := range p.Plants {
		plants[q] = true
	}
	seeds := map[geom.Pos]bool{}
	for _, q := range p.Seeds {
		seeds[q] = true
	}
	pos := p.Start()
	storage := p.SeedCapacity
	for i, s := range steps {
		switch s.Kind {
		case resolve.Move:
			distance += geom.Manhattan(pos, s.Pos)
			pos = s.Pos
		case resolve.Plant:
			if !plants[s.Pos] {
				return 0, 0, fmt.Errorf("step %d: no plant at %v", i, s.Pos)
			}
			if geom.Manhattan(pos, s.Pos) > p.Range {
				return 0, 0, fmt.Errorf("step %d: plant %v out of range from %v", i, s.Pos, pos)
			}
			if storage == 0 {
				return 0, 0, fmt.Errorf("step %d: storage empty", i)
			}
			delete(plants, s.Pos)
			storage--
			planted++
		case resolve.Collect:
			if !seeds[pos] {
				return 0, 0, fmt.Errorf("step %d: no seed at %v", i, pos)
			}
			delete(seeds, pos)
			storage = p.SeedCapacity
		}
	}
	if distance > p.MaxDistance {
		return 0, 0, fmt.Errorf("distance %d over budget %d", distance, p.MaxDistance)
	}
	return planted, distance, nil
}
