package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

func TestArchiveIfBetter_KeepsBest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "best")
	first := Output{
		Planted:  1,
		Distance: 5,
		Steps:    []string{"MOVE 5 0", "PLANT 5 0"},
		Actions:  []plan.Action{{Kind: plan.Plant, Target: geom.Pos{X: 5}}},
	}

	ok, err := ArchiveIfBetter(dir, "p1", first)
	if err != nil || !ok {
		t.Fatalf("first archive ok=%v err=%v", ok, err)
	}

	cases := []struct {
		out  Output
		want bool
	}{
		{Output{Planted: 1, Distance: 5}, false},
		{Output{Planted: 0, Distance: 0}, false},
		{Output{Planted: 1, Distance: 4, Steps: []string{"MOVE 4 0", "PLANT 4 0"}}, true},
		{Output{Planted: 2, Distance: 40, Steps: []string{"COLLECT"}}, true},
		{Output{Planted: 2, Distance: 41}, false},
	}
	for i, c := range cases {
		ok, err := ArchiveIfBetter(dir, "p1", c.out)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if ok != c.want {
			t.Fatalf("case %d: archived=%v want %v", i, ok, c.want)
		}
	}

	best, ok, err := Best(dir, "p1")
	if err != nil || !ok || best.Planted != 2 || best.Distance != 40 {
		t.Fatalf("best=%+v ok=%v err=%v", best, ok, err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "p1.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var steps []string
	if err := json.Unmarshal(raw, &steps); err != nil || len(steps) != 1 || steps[0] != "COLLECT" {
		t.Fatalf("steps=%v err=%v", steps, err)
	}
}

func TestArchiveIfBetter_CopiesPlanFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "run.plan.zst")
	if err := os.WriteFile(src, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	archived := filepath.Join(dir, "archive")
	if ok, err := ArchiveIfBetter(archived, "p2", Output{Planted: 1, PlanPath: src}); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	got, err := os.ReadFile(filepath.Join(archived, "p2.plan.zst"))
	if err != nil || string(got) != "dummy" {
		t.Fatalf("copied=%q err=%v", got, err)
	}
}

func TestBest_Missing(t *testing.T) {
	if _, ok, err := Best(t.TempDir(), "nothing"); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}
