package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gardenbot.ai/internal/persistence/archive"
	"gardenbot.ai/internal/persistence/indexdb"
	persistlog "gardenbot.ai/internal/persistence/log"
	"gardenbot.ai/internal/persistence/snapshot"
	"gardenbot.ai/internal/protocol"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/planner"
	"gardenbot.ai/internal/sim/refine"
	"gardenbot.ai/internal/sim/resolve"
	"gardenbot.ai/internal/sim/solve"
	"gardenbot.ai/internal/sim/tuning"
)

type jobConfig struct {
	Tuning     tuning.Tuning
	TimeLimit  time.Duration
	OutDir     string
	TraceDir   string
	ArchiveDir string
	Index      *indexdb.SQLiteIndex
	Logger     *log.Logger
}

type report struct {
	Name     string
	RunID    string
	Plants   int
	Planted  int
	Distance int
	Source   string
	Elapsed  time.Duration
	OutPath  string
	Archived bool
	// Partial is set when the run was interrupted and the written plan is what it had so far.
	Partial  bool
	Err      error
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// solveFile plans one problem file and writes every artefact the job asks for. An
// interrupted run still writes the partial plan before reporting the interruption.
func solveFile(ctx context.Context, job jobConfig, path string) report {
	rep := report{Name: problemName(path), RunID: uuid.NewString()}
	p, err := readProblem(rep.Name, path)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Plants = len(p.Plants)

	var trace *persistlog.TraceLogger
	if job.TraceDir != "" {
		trace = persistlog.NewTraceLogger(job.TraceDir, rep.RunID)
		defer trace.Close()
	}
	onStep := func(st planner.Step) {
		if trace != nil {
			_ = trace.WriteStep(persistlog.TraceEntry{
				RunID:     rep.RunID,
				Seq:       st.Seq,
				Kind:      st.Action.Kind.String(),
				Pos:       st.Action.Target.ToArray(),
				Cost:      st.Cost,
				Traveled:  st.Traveled,
				Depth:     st.Depth,
				Remaining: st.Remaining,
				TableSize: st.TableSize,
				ElapsedUs: st.Elapsed.Microseconds(),
			})
		}
		if job.Index != nil {
			job.Index.RecordStep(indexdb.StepRow{
				RunID:     rep.RunID,
				Seq:       st.Seq,
				Kind:      st.Action.Kind.String(),
				X:         st.Action.Target.X,
				Y:         st.Action.Target.Y,
				Cost:      st.Cost,
				Traveled:  st.Traveled,
				Depth:     st.Depth,
				TableSize: st.TableSize,
			})
		}
	}

	start := time.Now()
	out, runErr := solve.Solve(ctx, p, solve.Options{
		Tuning:    job.Tuning,
		TimeLimit: job.TimeLimit,
		Logger:    job.Logger,
		OnStep:    onStep,
	})
	rep.Elapsed = time.Since(start)
	if runErr != nil && !isInterrupt(runErr) {
		rep.Err = runErr
		return rep
	}
	rep.Source = out.Source

	writeOutputs(job, &rep, p, out.Actions, out.Resolution)
	if rep.Err == nil && runErr != nil {
		rep.Partial, rep.Err = true, runErr
	}
	return rep
}

// refineFile splices an existing plan for the problem: the archived best when the job has
// an archive holding one, else the <name>.json output written by an earlier run.
func refineFile(ctx context.Context, job jobConfig, path string) report {
	rep := report{Name: problemName(path), RunID: uuid.NewString(), Source: "refine"}
	p, err := readProblem(rep.Name, path)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Plants = len(p.Plants)

	src, err := existingSteps(job, rep.Name)
	if err != nil {
		rep.Err = err
		return rep
	}
	lines, err := readSteps(src)
	if err != nil {
		rep.Err = fmt.Errorf("%s: %w", src, err)
		return rep
	}
	steps, err := protocol.ParseSteps(lines)
	if err != nil {
		rep.Err = fmt.Errorf("%s: %w", src, err)
		return rep
	}
	actions, err := p.Bind(resolve.Unresolve(steps))
	if err != nil {
		rep.Err = fmt.Errorf("%s: %w", src, err)
		return rep
	}

	limit := time.Duration(job.Tuning.Refine.TimeLimitMs) * time.Millisecond
	if job.TimeLimit > 0 {
		limit = job.TimeLimit
	}
	start := time.Now()
	before := resolve.Evaluate(p, actions)
	actions, score, stats := refine.Splice(ctx, p, actions, refine.SpliceOptions{
		MaxSpan:   job.Tuning.Refine.MaxSpan,
		TimeLimit: limit,
	})
	rep.Elapsed = time.Since(start)
	if job.Logger != nil {
		job.Logger.Printf("refine %s from %s: passes=%d tried=%d accepted=%d planted %d->%d distance %d->%d",
			rep.Name, src, stats.Passes, stats.Tried, stats.Accepted, before.Planted, score.Planted, before.Distance, score.Distance)
	}

	writeOutputs(job, &rep, p, actions, resolve.Resolve(p, actions))
	if rep.Err == nil && ctx.Err() != nil {
		rep.Partial, rep.Err = true, ctx.Err()
	}
	return rep
}

func existingSteps(job jobConfig, name string) (string, error) {
	if job.ArchiveDir != "" {
		if _, ok, err := archive.Best(job.ArchiveDir, name); err != nil {
			return "", err
		} else if ok {
			return filepath.Join(job.ArchiveDir, name+".json"), nil
		}
	}
	path := filepath.Join(job.OutDir, name+".json")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no plan to refine for %s: %w", name, err)
	}
	return path, nil
}

func readProblem(name, path string) (*plan.Problem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeProblem(name, raw)
}

func readSteps(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := protocol.Validate(protocol.SchemaSteps, raw); err != nil {
		return nil, err
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// writeOutputs writes <name>.json, <name>.meta and <name>.plan.zst for a resolved plan,
// records the run and offers it to the archive. Failures land in rep.Err.
func writeOutputs(job jobConfig, rep *report, p *plan.Problem, actions []plan.Action, res resolve.Resolution) {
	rep.Planted, rep.Distance = res.Planted, res.Distance
	kept := actions[:res.Reached]

	steps := protocol.FormatSteps(res.Steps)
	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		rep.Err = err
		return
	}
	rep.OutPath = filepath.Join(job.OutDir, rep.Name+".json")
	if err := writeSteps(rep.OutPath, steps); err != nil {
		rep.Err = err
		return
	}
	meta := protocol.Meta{Planted: res.Planted, Distance: res.Distance, Actions: kept}
	if err := writeMeta(filepath.Join(job.OutDir, rep.Name+".meta"), meta); err != nil {
		rep.Err = err
		return
	}

	tj, _ := json.Marshal(job.Tuning)
	snap := snapshot.Build(rep.RunID, p, kept, res.Planted, res.Distance)
	snap.TuningJSON = string(tj)
	snap.ElapsedMs = rep.Elapsed.Milliseconds()
	snap.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	planPath := filepath.Join(job.OutDir, rep.Name+".plan.zst")
	if err := snapshot.WritePlan(planPath, snap); err != nil {
		rep.Err = fmt.Errorf("write plan: %w", err)
		return
	}

	if job.Index != nil {
		job.Index.RecordRun(indexdb.RunRow{
			RunID:      rep.RunID,
			Problem:    p.Name,
			Digest:     p.Digest(),
			Plants:     len(p.Plants),
			Seeds:      len(p.Seeds),
			Budget:     p.MaxDistance,
			Planted:    res.Planted,
			Distance:   res.Distance,
			ElapsedMs:  rep.Elapsed.Milliseconds(),
			TuningJSON: string(tj),
		})
	}

	if job.ArchiveDir != "" {
		archived, err := archive.ArchiveIfBetter(job.ArchiveDir, rep.Name, archive.Output{
			Planted:  res.Planted,
			Distance: res.Distance,
			Steps:    steps,
			Actions:  kept,
			PlanPath: planPath,
		})
		if err != nil {
			rep.Err = fmt.Errorf("archive: %w", err)
			return
		}
		rep.Archived = archived
	}
}

func writeSteps(path string, steps []string) error {
	if steps == nil {
		steps = []string{}
	}
	b, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return err
	}
	if err := protocol.Validate(protocol.SchemaSteps, b); err != nil {
		return fmt.Errorf("steps: %w", err)
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func writeMeta(path string, m protocol.Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := protocol.WriteMeta(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
