package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"gardenbot.ai/internal/persistence/indexdb"
	persistlog "gardenbot.ai/internal/persistence/log"
)

func main() {
	var (
		planPath  = flag.String("plan", "", "path to .plan.zst")
		tracePath = flag.String("trace", "", "trace-<run>.jsonl.zst written for the same run (optional)")
		stepsPath = flag.String("steps", "", "output steps json to walk against the plan's problem (optional)")
		dbPath    = flag.String("db", "", "sqlite run index to check the run's recorded steps against (optional)")
	)
	flag.Parse()

	if *planPath == "" {
		fmt.Fprintln(os.Stderr, "missing -plan")
		os.Exit(2)
	}

	snap, err := loadPlan(*planPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read plan:", err)
		os.Exit(1)
	}
	fmt.Printf("plan v%d run=%s problem=%s plants=%d seeds=%d budget=%d capacity=%d range=%d actions=%d planted=%d distance=%d\n",
		snap.Header.Version, snap.Header.RunID, snap.Header.Problem, len(snap.Plants), len(snap.Seeds),
		snap.MaxDistance, snap.SeedCapacity, snap.Range, len(snap.Actions), snap.Header.Planted, snap.Header.Distance)

	res, err := verifyPlan(snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify plan:", err)
		os.Exit(1)
	}
	fmt.Printf("plan ok: %d concrete steps\n", len(res.Steps))

	if *tracePath != "" {
		entries, err := persistlog.ReadTrace(*tracePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read trace:", err)
			os.Exit(1)
		}
		if err := verifyTrace(snap, entries); err != nil {
			fmt.Fprintln(os.Stderr, "verify trace:", err)
			os.Exit(1)
		}
		fmt.Printf("trace ok: %d steps\n", len(entries))
	}

	if *stepsPath != "" {
		raw, err := os.ReadFile(*stepsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read steps:", err)
			os.Exit(1)
		}
		var lines []string
		if err := json.Unmarshal(raw, &lines); err != nil {
			fmt.Fprintln(os.Stderr, "steps json:", err)
			os.Exit(1)
		}
		planted, distance, err := walkSteps(snap.Problem(), lines)
		if err != nil {
			fmt.Fprintln(os.Stderr, "walk steps:", err)
			os.Exit(1)
		}
		if planted != snap.Header.Planted || distance != snap.Header.Distance {
			fmt.Fprintf(os.Stderr, "steps planted=%d distance=%d, plan says %d %d\n", planted, distance, snap.Header.Planted, snap.Header.Distance)
			os.Exit(1)
		}
		fmt.Printf("steps ok: planted=%d distance=%d\n", planted, distance)
	}

	if *dbPath != "" {
		idx, err := indexdb.OpenSQLite(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "index db:", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		rep, err := checkIndex(ctx, idx, snap)
		cancel()
		_ = idx.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify index:", err)
			os.Exit(1)
		}
		switch {
		case !rep.HasBest:
			fmt.Printf("index ok: %d steps, no runs recorded for %s\n", rep.Steps, snap.Header.Problem)
		case rep.IsBest:
			fmt.Printf("index ok: %d steps, best for %s\n", rep.Steps, snap.Header.Problem)
		default:
			fmt.Printf("index ok: %d steps, run %s does better: planted=%d distance=%d\n",
				rep.Steps, rep.Best.RunID, rep.Best.Planted, rep.Best.Distance)
		}
	}
}
