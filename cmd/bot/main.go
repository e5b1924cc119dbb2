package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"gardenbot.ai/internal/protocol"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		probPath  = flag.String("problem", "", "problem json file")
		timeLimit = flag.Int("time_limit_ms", 0, "requested planning time (server caps it)")
		outPath   = flag.String("out", "", "write the returned steps to this file (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *probPath == "" {
		logger.Fatalf("missing -problem")
	}
	raw, err := os.ReadFile(*probPath)
	if err != nil {
		logger.Fatalf("read problem: %v", err)
	}
	name := strings.TrimSuffix(filepath.Base(*probPath), filepath.Ext(*probPath))
	p, err := protocol.DecodeProblem(name, raw)
	if err != nil {
		logger.Fatalf("problem: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := protocol.PlanMsg{
		Type:            protocol.TypePlan,
		ProtocolVersion: protocol.Version,
		Name:            name,
		TimeLimitMs:     *timeLimit,
		Problem:         protocol.ProblemDocOf(p),
	}
	if err := conn.WriteJSON(req); err != nil {
		logger.Fatalf("send PLAN: %v", err)
	}
	logger.Printf("PLAN %s plants=%d seeds=%d budget=%d", name, len(p.Plants), len(p.Seeds), p.MaxDistance)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeStep:
			var st protocol.StepMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			logger.Printf("STEP #%d %s %v cost=%d traveled=%d depth=%d remaining=%d",
				st.Seq, st.Kind, st.Pos, st.Cost, st.Traveled, st.Depth, st.Remaining)

		case protocol.TypeDone:
			var d protocol.DoneMsg
			if err := json.Unmarshal(msg, &d); err != nil {
				logger.Fatalf("DONE: %v", err)
			}
			logger.Printf("DONE run=%s planted=%d/%d distance=%d stuck=%v elapsed=%dms",
				d.RunID, d.Planted, len(p.Plants), d.Distance, d.Stuck, d.ElapsedMs)
			if *outPath != "" {
				if err := writeSteps(*outPath, d.Steps); err != nil {
					logger.Fatalf("write steps: %v", err)
				}
			}
			return

		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			logger.Fatalf("ERROR %s: %s", e.Code, e.Message)
		}
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
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
