package main

import (
	"encoding/json"
	"reflect"
	"testing"

	"gardenbot.ai/internal/protocol"
)

func TestGenerate_Deterministic(t *testing.T) {
	cfg := genConfig{Seed: 7, Plants: 30, Seeds: 6, Extent: 10, Capacity: 3, Range: 1}
	a, err := generate(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _ := generate(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed gave different problems")
	}
	cfg.Seed = 8
	c, _ := generate(cfg)
	if reflect.DeepEqual(a.Plants, c.Plants) {
		t.Fatalf("different seeds gave the same plants")
	}

	if len(a.Plants) != 30 || len(a.Seeds) != 6 || a.MaxDistance != 300 {
		t.Fatalf("plants=%d seeds=%d budget=%d", len(a.Plants), len(a.Seeds), a.MaxDistance)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p, err := protocol.DecodeProblem("gen", raw)
	if err != nil {
		t.Fatalf("DecodeProblem: %v", err)
	}
	for _, q := range append(p.Plants, p.Seeds...) {
		if q.X < -10 || q.X > 10 || q.Y < -10 || q.Y > 10 {
			t.Fatalf("point %v outside extent", q)
		}
	}
}

func TestGenerate_Dense(t *testing.T) {
	// Every point of a 3x3 square.
	doc, err := generate(genConfig{Seed: 1, Plants: 5, Seeds: 4, Extent: 1, Capacity: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	seen := map[[2]int]bool{}
	for _, q := range append(doc.Plants, doc.Seeds...) {
		if seen[q] {
			t.Fatalf("duplicate point %v", q)
		}
		seen[q] = true
	}
	if len(seen) != 9 {
		t.Fatalf("points=%d", len(seen))
	}

	if _, err := generate(genConfig{Plants: 10, Extent: 1, Capacity: 1}); err == nil {
		t.Fatalf("expected error for too many points")
	}
	if _, err := generate(genConfig{Plants: 1, Extent: 1}); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
}
