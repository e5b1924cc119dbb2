package search

import (
	"encoding/binary"
	"slices"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
)

// World is the mutable search state. Plants and Seeds hold ascending indices into the
// problem's lists. The engine removes and restores entries in place while exploring, so
// the slices keep their order between calls.
type World struct {
	Pos     geom.PositionState
	Storage int
	Plants  []int
	Seeds   []int
}

func NewWorld(p *plan.Problem) *World {
	w := &World{
		Pos:     geom.Exact(p.Start()),
		Storage: p.SeedCapacity,
		Plants:  make([]int, len(p.Plants)),
		Seeds:   make([]int, len(p.Seeds)),
	}
	for i := range w.Plants {
		w.Plants[i] = i
	}
	for i := range w.Seeds {
		w.Seeds[i] = i
	}
	return w
}

func (w *World) Clone() *World {
	return &World{
		Pos:     w.Pos,
		Storage: w.Storage,
		Plants:  slices.Clone(w.Plants),
		Seeds:   slices.Clone(w.Seeds),
	}
}

// Commit applies a chosen action for good and returns its travel cost.
func (w *World) Commit(p *plan.Problem, a plan.Action) int {
	next, cost := p.Apply(w.Pos, a)
	w.Pos = next
	switch a.Kind {
	case plan.Plant:
		w.Storage--
		w.Plants = removeValue(w.Plants, a.Index)
	case plan.Collect:
		w.Storage = p.SeedCapacity
		w.Seeds = removeValue(w.Seeds, a.Index)
	}
	return cost
}

func removeValue(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return removeAt(s, i)
		}
	}
	return s
}

func removeAt(s []int, i int) []int {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}

// insertAt undoes removeAt on the same backing array.
func insertAt(s []int, i, v int) []int {
	s = s[:len(s)+1]
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

type tableKey struct {
	pos     geom.PositionState
	storage int
	depth   int
	sets    string
}

func (w *World) key(depth int, buf []byte) (tableKey, []byte) {
	buf = buf[:0]
	buf = binary.AppendUvarint(buf, uint64(len(w.Plants)))
	for _, i := range w.Plants {
		buf = binary.AppendUvarint(buf, uint64(i))
	}
	for _, i := range w.Seeds {
		buf = binary.AppendUvarint(buf, uint64(i))
	}
	return tableKey{pos: w.Pos, storage: w.Storage, depth: depth, sets: string(buf)}, buf
}
