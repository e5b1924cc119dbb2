package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable index of planner runs. Writes are queued to a single writer
// goroutine and batched into transactions; trace files remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards sends on ch against Close closing it.
	mu     sync.RWMutex
	closed atomic.Bool

	dropRun  atomic.Uint64
	dropStep atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqStep
	reqFlush
)

type req struct {
	kind reqKind

	run  RunRow
	step StepRow
	done chan struct{}
}

type RunRow struct {
	RunID      string
	Problem    string
	Digest     string
	Plants     int
	Seeds      int
	Budget     int
	Planted    int
	Distance   int
	ElapsedMs  int64
	RecordedAt string
	TuningJSON string
}

type StepRow struct {
	RunID     string
	Seq       int
	Kind      string
	X         int
	Y         int
	Cost      int
	Traveled  int
	Depth     int
	TableSize int
}

type Stats struct {
	DropRunTotal  uint64
	DropStepTotal uint64
	QueueDepth    int
	QueueCapacity int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			problem TEXT NOT NULL,
			digest TEXT NOT NULL,
			plants INTEGER NOT NULL,
			seeds INTEGER NOT NULL,
			budget INTEGER NOT NULL,
			planted INTEGER NOT NULL,
			distance INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_problem ON runs(problem, planted DESC, distance ASC);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			traveled INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			table_size INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropRunTotal:  s.dropRun.Load(),
		DropStepTotal: s.dropStep.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil {
		return
	}
	if r.RecordedAt == "" {
		r.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) RecordStep(r StepRow) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqStep, step: r}:
	default:
		// Drop if the indexer falls behind.
		s.dropStep.Add(1)
	}
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	if err := s.enqueueFlush(ctx, done); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) enqueueFlush(ctx context.Context, done chan struct{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		close(done)
		return nil
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BestRun returns the run for problem with the most plants, then the least distance.
func (s *SQLiteIndex) BestRun(ctx context.Context, problem string) (RunRow, bool, error) {
	var r RunRow
	if err := s.Flush(ctx); err != nil {
		return r, false, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT run_id,problem,digest,plants,seeds,budget,planted,distance,elapsed_ms,recorded_at,tuning_json
		FROM runs WHERE problem=? ORDER BY planted DESC, distance ASC, recorded_at ASC LIMIT 1`, problem)
	err := row.Scan(&r.RunID, &r.Problem, &r.Digest, &r.Plants, &r.Seeds, &r.Budget, &r.Planted, &r.Distance, &r.ElapsedMs, &r.RecordedAt, &r.TuningJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, err
	}
	return r, true, nil
}

func (s *SQLiteIndex) RunSteps(ctx context.Context, runID string) ([]StepRow, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,seq,kind,x,y,cost,traveled,depth,table_size
		FROM steps WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var r StepRow
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Kind, &r.X, &r.Y, &r.Cost, &r.Traveled, &r.Depth, &r.TableSize); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,problem,digest,plants,seeds,budget,planted,distance,elapsed_ms,recorded_at,tuning_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,seq,kind,x,y,cost,traveled,depth,table_size) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertStep != nil {
			_ = insertStep.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 2000
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			ru := r.run
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					ru.RunID,
					ru.Problem,
					ru.Digest,
					ru.Plants,
					ru.Seeds,
					ru.Budget,
					ru.Planted,
					ru.Distance,
					ru.ElapsedMs,
					ru.RecordedAt,
					ru.TuningJSON,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqStep:
			st := r.step
			if insertStep != nil {
				if _, err := tx.Stmt(insertStep).Exec(
					st.RunID,
					st.Seq,
					st.Kind,
					st.X,
					st.Y,
					st.Cost,
					st.Traveled,
					st.Depth,
					st.TableSize,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		// Batch while a backlog exists and commit once the queue drains.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
