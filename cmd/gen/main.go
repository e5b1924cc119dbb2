package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gardenbot.ai/internal/protocol"
)

func main() {
	var cfg genConfig
	flag.Int64Var(&cfg.Seed, "seed", 1337, "generator seed")
	flag.IntVar(&cfg.Plants, "plants", 100, "number of plants")
	flag.IntVar(&cfg.Seeds, "seeds", 20, "number of seed points")
	flag.IntVar(&cfg.Extent, "extent", 50, "coordinates fall in [-extent, extent]")
	flag.IntVar(&cfg.Budget, "budget", 0, "maxDistance (0: plants*extent)")
	flag.IntVar(&cfg.Capacity, "capacity", 5, "seedCapacity")
	flag.IntVar(&cfg.Range, "range", 0, "interaction range")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	doc, err := generate(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(2)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(1)
	}
	if err := protocol.Validate(protocol.SchemaProblem, b); err != nil {
		fmt.Fprintln(os.Stderr, "schema:", err)
		os.Exit(1)
	}
	b = append(b, '\n')
	if *out == "" {
		_, _ = os.Stdout.Write(b)
		return
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
}
