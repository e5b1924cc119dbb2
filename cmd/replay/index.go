package main

import (
	"context"
	"fmt"

	"gardenbot.ai/internal/persistence/indexdb"
	persistlog "gardenbot.ai/internal/persistence/log"
	"gardenbot.ai/internal/persistence/snapshot"
)

// loadPlan reads a plan file and checks its JSON header line against the copy in the body.
func loadPlan(path string) (snapshot.PlanV1, error) {
	h, err := snapshot.ReadHeader(path)
	if err != nil {
		return snapshot.PlanV1{}, err
	}
	snap, err := snapshot.ReadPlan(path)
	if err != nil {
		return snap, err
	}
	if snap.Header != h {
		return snap, fmt.Errorf("header line %+v, body says %+v", h, snap.Header)
	}
	return snap, nil
}

type indexReport struct {
	Steps   int
	Best    indexdb.RunRow
	HasBest bool
	// IsBest is set when no indexed run for the problem beats this plan.
	IsBest bool
}

// checkIndex replays the steps the run index holds for the plan's run and looks up the best
// indexed run for the same problem.
func checkIndex(ctx context.Context, idx *indexdb.SQLiteIndex, snap snapshot.PlanV1) (indexReport, error) {
	var rep indexReport
	rows, err := idx.RunSteps(ctx, snap.Header.RunID)
	if err != nil {
		return rep, err
	}
	rep.Steps = len(rows)
	if len(rows) > 0 {
		entries := make([]persistlog.TraceEntry, len(rows))
		for i, r := range rows {
			entries[i] = persistlog.TraceEntry{
				RunID:     r.RunID,
				Seq:       r.Seq,
				Kind:      r.Kind,
				Pos:       [2]int{r.X, r.Y},
				Cost:      r.Cost,
				Traveled:  r.Traveled,
				Depth:     r.Depth,
				TableSize: r.TableSize,
			}
		}
		if err := verifyTrace(snap, entries); err != nil {
			return rep, fmt.Errorf("indexed steps: %w", err)
		}
	}

	rep.Best, rep.HasBest, err = idx.BestRun(ctx, snap.Header.Problem)
	if err != nil {
		return rep, err
	}
	rep.IsBest = !rep.HasBest || rep.Best.RunID == snap.Header.RunID ||
		snap.Header.Planted > rep.Best.Planted ||
		(snap.Header.Planted == rep.Best.Planted && snap.Header.Distance <= rep.Best.Distance)
	if rep.HasBest && rep.Best.Digest != snap.Header.Digest {
		return rep, fmt.Errorf("best run %s was planned for digest %s, plan has %s", rep.Best.RunID, rep.Best.Digest, snap.Header.Digest)
	}
	return rep, nil
}
