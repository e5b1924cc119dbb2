package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"gardenbot.ai/internal/persistence/indexdb"
	"gardenbot.ai/internal/protocol"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/planner"
	"gardenbot.ai/internal/sim/solve"
	"gardenbot.ai/internal/sim/tuning"
)

// Recorder receives finished runs and their steps. *indexdb.SQLiteIndex satisfies it.
type Recorder interface {
	RecordRun(indexdb.RunRow)
	RecordStep(indexdb.StepRow)
}

type Server struct {
	tune  tuning.Tuning
	log   *log.Logger
	index Recorder
	sem   *semaphore.Weighted

	upgrader websocket.Upgrader

	// NewRunID names runs; tests may replace it.
	NewRunID func() string
}

func NewServer(tune tuning.Tuning, logger *log.Logger, index Recorder) *Server {
	n := int64(tune.Server.MaxConcurrentPlans)
	if n <= 0 {
		n = 1
	}
	s := &Server{
		tune:  tune,
		log:   logger,
		index: index,
		sem:   semaphore.NewWeighted(n),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		NewRunID: uuid.NewString,
	}
	return s
}

func (s *Server) limiter() *rate.Limiter {
	per := s.tune.Server.PlansPerMinute
	if per <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(per)/60), 1)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 64)
		var plans sync.WaitGroup
		defer plans.Wait()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		lim := s.limiter()
		send := func(v any) bool {
			b, err := json.Marshal(v)
			if err != nil {
				return false
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(runID, code, msg string) {
			send(protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, RunID: runID, Code: code, Message: msg})
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypePlan {
				fail("", protocol.ErrProtoBadRequest, "expected PLAN")
				continue
			}
			if err := protocol.Validate(protocol.SchemaPlan, msg); err != nil {
				fail("", protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			var req protocol.PlanMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				fail("", protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			if req.ProtocolVersion != protocol.Version {
				fail("", protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			if !lim.Allow() {
				fail("", protocol.ErrRateLimit, "too many plans")
				continue
			}
			p := req.Problem.Problem(req.Name)
			if err := p.Validate(); err != nil {
				fail("", protocol.ErrBadRequest, err.Error())
				continue
			}
			if n := s.tune.Server.MaxPlants; n > 0 && len(p.Plants) > n {
				fail("", protocol.ErrTooLarge, fmt.Sprintf("%d plants, limit %d", len(p.Plants), n))
				continue
			}
			if !s.sem.TryAcquire(1) {
				fail("", protocol.ErrBusy, "planner busy")
				continue
			}

			runID := s.NewRunID()
			limit := s.timeLimit(req.TimeLimitMs)
			plans.Add(1)
			go func() {
				defer plans.Done()
				defer s.sem.Release(1)
				s.runPlan(ctx, runID, p, limit, send, fail)
			}()
		}
	}
}

// timeLimit lets a request shorten the configured limit but never extend it.
func (s *Server) timeLimit(requestMs int) time.Duration {
	limit := time.Duration(s.tune.TimeLimitMs) * time.Millisecond
	if req := time.Duration(requestMs) * time.Millisecond; req > 0 && (limit <= 0 || req < limit) {
		limit = req
	}
	return limit
}

func (s *Server) runPlan(ctx context.Context, runID string, p *plan.Problem, limit time.Duration, send func(any) bool, fail func(runID, code, msg string)) {
	start := time.Now()
	onStep := func(st planner.Step) {
		send(protocol.StepMsg{
			Type:            protocol.TypeStep,
			ProtocolVersion: protocol.Version,
			RunID:           runID,
			Seq:             st.Seq,
			Kind:            st.Action.Kind.String(),
			Pos:             st.Action.Target.ToArray(),
			Cost:            st.Cost,
			Traveled:        st.Traveled,
			Depth:           st.Depth,
			Remaining:       st.Remaining,
		})
		if s.index != nil {
			s.index.RecordStep(indexdb.StepRow{
				RunID:     runID,
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

	outcome, err := solve.Solve(ctx, p, solve.Options{
		Tuning:    s.tune,
		TimeLimit: limit,
		Logger:    s.log,
		OnStep:    onStep,
	})
	if err != nil {
		if ctx.Err() == nil {
			fail(runID, protocol.ErrInternal, err.Error())
		}
		if s.log != nil {
			s.log.Printf("run %s: %v", runID, err)
		}
		return
	}

	res := outcome.Resolution
	elapsed := time.Since(start)
	if s.index != nil {
		tj, _ := json.Marshal(s.tune)
		s.index.RecordRun(indexdb.RunRow{
			RunID:      runID,
			Problem:    p.Name,
			Digest:     p.Digest(),
			Plants:     len(p.Plants),
			Seeds:      len(p.Seeds),
			Budget:     p.MaxDistance,
			Planted:    res.Planted,
			Distance:   res.Distance,
			ElapsedMs:  elapsed.Milliseconds(),
			TuningJSON: string(tj),
		})
	}
	send(protocol.DoneMsg{
		Type:            protocol.TypeDone,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Planted:         res.Planted,
		Distance:        res.Distance,
		Stuck:           outcome.Run.Stuck,
		ElapsedMs:       elapsed.Milliseconds(),
		Steps:           protocol.FormatSteps(res.Steps),
	})
	if s.log != nil {
		s.log.Printf("run %s problem=%q planted=%d/%d distance=%d source=%s elapsed=%s",
			runID, p.Name, res.Planted, len(p.Plants), res.Distance, outcome.Source, elapsed)
	}
}
