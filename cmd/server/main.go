package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gardenbot.ai/internal/persistence/indexdb"
	"gardenbot.ai/internal/sim/tuning"
	"gardenbot.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning file not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB && envBool("GB_INDEX_ENABLED", true) {
		dbPath := filepath.Join(*dataDir, "index", "runs.sqlite")
		idx, err = indexdb.OpenSQLite(dbPath)
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		defer idx.Close()
		logger.Printf("run index at %s", dbPath)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeIndexMetrics(rw, idx)
	})
	if envBool("GB_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (GB_ENABLE_PPROF_HTTP=false)")
	}

	var rec ws.Recorder
	if idx != nil {
		rec = idx
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(tune, logger, rec).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (time_limit_ms=%d max_concurrent_plans=%d)", *addr, tune.TimeLimitMs, tune.Server.MaxConcurrentPlans)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeIndexMetrics(rw http.ResponseWriter, idx *indexdb.SQLiteIndex) {
	st := idx.Stats()
	fmt.Fprintf(rw, "# HELP gardenbot_index_queue_depth Pending index writes.\n")
	fmt.Fprintf(rw, "# TYPE gardenbot_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "gardenbot_index_queue_depth %d\n", st.QueueDepth)
	fmt.Fprintf(rw, "gardenbot_index_queue_capacity %d\n", st.QueueCapacity)

	fmt.Fprintf(rw, "# HELP gardenbot_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE gardenbot_index_dropped_total counter\n")
	fmt.Fprintf(rw, "gardenbot_index_dropped_total{kind=%q} %d\n", "run", st.DropRunTotal)
	fmt.Fprintf(rw, "gardenbot_index_dropped_total{kind=%q} %d\n", "step", st.DropStepTotal)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
