package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"gardenbot.ai/internal/persistence/indexdb"
	"gardenbot.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: built-in defaults)")
		outDir     = flag.String("out", "./out", "directory for <name>.json, <name>.meta and <name>.plan.zst")
		traceDir   = flag.String("trace", "", "directory for trace-<run>.jsonl.zst step traces (optional)")
		dbPath     = flag.String("db", "", "sqlite run index path (optional)")
		archiveDir = flag.String("archive", "", "best-known plan archive directory (optional)")
		timeLimit  = flag.Duration("time_limit", 0, "planning time per problem (overrides time_limit_ms)")
		jobs       = flag.Int("j", runtime.NumCPU(), "problems solved in parallel")
		verbose    = flag.Bool("v", false, "log planner progress")
		refineOnly = flag.Bool("refine", false, "splice the archived best (or <out>/<name>.json) instead of planning from scratch")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: planner [flags] problem.json...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[planner] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if *tuningPath != "" {
		t, err := tuning.Load(*tuningPath)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	}

	var idx *indexdb.SQLiteIndex
	if *dbPath != "" {
		var err error
		idx, err = indexdb.OpenSQLite(*dbPath)
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		defer idx.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := jobConfig{
		Tuning:     tune,
		TimeLimit:  *timeLimit,
		OutDir:     *outDir,
		TraceDir:   *traceDir,
		ArchiveDir: *archiveDir,
		Index:      idx,
	}
	if *verbose {
		job.Logger = logger
	}

	files := flag.Args()
	reports := make([]report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if *jobs > 0 {
		g.SetLimit(*jobs)
	}
	run := solveFile
	if *refineOnly {
		run = refineFile
	}
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			reports[i] = run(gctx, job, path)
			// A failed problem does not stop the batch; only interruption does.
			if errors.Is(reports[i].Err, context.Canceled) {
				return reports[i].Err
			}
			return nil
		})
	}
	interrupted := g.Wait() != nil

	failed := printSummary(os.Stdout, reports)
	if idx != nil {
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Flush(ctx2); err != nil {
			logger.Printf("index flush: %v", err)
		}
		cancel()
	}
	if interrupted {
		logger.Printf("interrupted")
		os.Exit(130)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func printSummary(w io.Writer, reports []report) (failed int) {
	bold := color.New(color.Bold)
	good := color.New(color.FgGreen)
	partial := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	bold.Fprintf(w, "%-24s %9s %9s %8s %-7s %s\n", "problem", "planted", "distance", "elapsed", "source", "output")
	for _, r := range reports {
		if r.Err != nil && !r.Partial {
			failed++
			bad.Fprintf(w, "%-24s error: %v\n", r.Name, r.Err)
			continue
		}
		c := good
		if r.Planted < r.Plants {
			c = partial
		}
		note := r.OutPath
		if r.Archived {
			note += " (archived)"
		}
		if r.Partial {
			c = partial
			note += " (interrupted)"
		}
		c.Fprintf(w, "%-24s %4d/%-4d %9d %8s %-7s %s\n",
			r.Name, r.Planted, r.Plants, r.Distance, r.Elapsed.Round(time.Millisecond), r.Source, note)
	}
	return failed
}

func problemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
