package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

const Version = 1

// Header is written as a plain JSON line ahead of the gob body so tools can list plan
// files without decoding them.
type Header struct {
	Version  int    `json:"version"`
	RunID    string `json:"run_id"`
	Problem  string `json:"problem"`
	Digest   string `json:"digest"`
	Planted  int    `json:"planted"`
	Distance int    `json:"distance"`
}

type PlanV1 struct {
	Header Header `json:"header"`

	MaxDistance  int      `json:"max_distance"`
	SeedCapacity int      `json:"seed_capacity"`
	Range        int      `json:"range"`
	Plants       [][2]int `json:"plants"`
	Seeds        [][2]int `json:"seeds"`

	Actions []ActionV1 `json:"actions"`

	// Operational parameters captured for replay.
	TuningJSON string `json:"tuning_json,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	CreatedAt  string `json:"created_at"`
}

type ActionV1 struct {
	Kind  uint8 `json:"kind"`
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Index int   `json:"index"`
}

// Build captures a plan for p. Planted and Distance are taken as reported by the caller.
func Build(runID string, p *plan.Problem, actions []plan.Action, planted, distance int) PlanV1 {
	snap := PlanV1{
		Header: Header{
			Version:  Version,
			RunID:    runID,
			Problem:  p.Name,
			Digest:   p.Digest(),
			Planted:  planted,
			Distance: distance,
		},
		MaxDistance:  p.MaxDistance,
		SeedCapacity: p.SeedCapacity,
		Range:        p.Range,
		Plants:       arrays(p.Plants),
		Seeds:        arrays(p.Seeds),
		Actions:      make([]ActionV1, len(actions)),
	}
	for i, a := range actions {
		snap.Actions[i] = ActionV1{Kind: uint8(a.Kind), X: a.Target.X, Y: a.Target.Y, Index: a.Index}
	}
	return snap
}

func (s PlanV1) Problem() *plan.Problem {
	p := &plan.Problem{
		Name:         s.Header.Problem,
		MaxDistance:  s.MaxDistance,
		SeedCapacity: s.SeedCapacity,
		Range:        s.Range,
		Plants:       make([]geom.Pos, len(s.Plants)),
		Seeds:        make([]geom.Pos, len(s.Seeds)),
	}
	for i, a := range s.Plants {
		p.Plants[i] = geom.FromArray(a)
	}
	for i, a := range s.Seeds {
		p.Seeds[i] = geom.FromArray(a)
	}
	return p
}

func (s PlanV1) PlanActions() []plan.Action {
	out := make([]plan.Action, len(s.Actions))
	for i, a := range s.Actions {
		out[i] = plan.Action{Kind: plan.ActionKind(a.Kind), Target: geom.Pos{X: a.X, Y: a.Y}, Index: a.Index}
	}
	return out
}

func arrays(ps []geom.Pos) [][2]int {
	out := make([][2]int, len(ps))
	for i, q := range ps {
		out[i] = q.ToArray()
	}
	return out
}

func WritePlan(path string, snap PlanV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadPlan(path string) (PlanV1, error) {
	var snap PlanV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported plan version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
