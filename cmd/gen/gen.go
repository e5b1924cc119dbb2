package main

import (
	"fmt"

	"gardenbot.ai/internal/protocol"
	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/logic/mathx"
)

type genConfig struct {
	Seed     int64
	Plants   int
	Seeds    int
	Extent   int
	Budget   int
	Capacity int
	Range    int
}

const (
	saltPlant = 1
	saltSeed  = 2
)

// generate builds a problem whose points depend only on cfg. Plants and seeds are distinct
// points in [-Extent, Extent]^2; a zero Budget becomes Plants*Extent.
func generate(cfg genConfig) (protocol.ProblemDoc, error) {
	side := 2*cfg.Extent + 1
	if cfg.Extent < 0 || cfg.Plants+cfg.Seeds > side*side {
		return protocol.ProblemDoc{}, fmt.Errorf("cannot place %d points within extent %d", cfg.Plants+cfg.Seeds, cfg.Extent)
	}
	if cfg.Capacity <= 0 {
		return protocol.ProblemDoc{}, fmt.Errorf("capacity must be positive")
	}
	budget := cfg.Budget
	if budget == 0 {
		budget = cfg.Plants * cfg.Extent
	}
	doc := protocol.ProblemDoc{
		MaxDistance:  budget,
		SeedCapacity: cfg.Capacity,
		Range:        cfg.Range,
		Plants:       [][2]int{},
		Seeds:        [][2]int{},
	}
	used := map[geom.Pos]bool{}
	pick := func(salt, n int) [][2]int {
		out := make([][2]int, 0, n)
		for i := 0; len(out) < n; i++ {
			h := mathx.Hash2(cfg.Seed, i, salt)
			q := geom.Pos{
				X: int(h%uint64(side)) - cfg.Extent,
				Y: int((h>>32)%uint64(side)) - cfg.Extent,
			}
			if used[q] {
				continue
			}
			used[q] = true
			out = append(out, q.ToArray())
		}
		return out
	}
	doc.Plants = pick(saltPlant, cfg.Plants)
	doc.Seeds = pick(saltSeed, cfg.Seeds)
	return doc, nil
}
