package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gardenbot.ai/internal/protocol"
	"gardenbot.ai/internal/sim/plan"
)

// Output is a resolved plan ready to be kept.
type Output struct {
	Planted  int
	Distance int
	Steps    []string
	Actions  []plan.Action
	// PlanPath, when set, is copied next to the output as <name>.plan.zst.
	PlanPath string
}

func better(planted, distance int, than protocol.Meta) bool {
	if planted != than.Planted {
		return planted > than.Planted
	}
	return distance < than.Distance
}

// Best reads the archived summary for name. ok is false when nothing is archived yet.
func Best(dir, name string) (m protocol.Meta, ok bool, err error) {
	f, err := os.Open(filepath.Join(dir, name+".meta"))
	if errors.Is(err, os.ErrNotExist) {
		return m, false, nil
	}
	if err != nil {
		return m, false, err
	}
	defer f.Close()
	m, err = protocol.ReadMeta(f)
	if err != nil {
		return m, false, fmt.Errorf("%s.meta: %w", name, err)
	}
	return m, true, nil
}

// ArchiveIfBetter writes <name>.json and <name>.meta under dir when out plants more than the
// archived plan, or the same number for less distance.
func ArchiveIfBetter(dir, name string, out Output) (bool, error) {
	prev, ok, err := Best(dir, name)
	if err != nil {
		return false, err
	}
	if ok && !better(out.Planted, out.Distance, prev) {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	steps := out.Steps
	if steps == nil {
		steps = []string{}
	}
	b, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return false, err
	}
	if err := writeAtomic(filepath.Join(dir, name+".json"), func(w io.Writer) error {
		_, err := w.Write(append(b, '\n'))
		return err
	}); err != nil {
		return false, err
	}
	if out.PlanPath != "" {
		if err := copyFile(out.PlanPath, filepath.Join(dir, name+".plan.zst")); err != nil {
			return false, err
		}
	}
	// The summary goes last: it is what Best compares against.
	meta := protocol.Meta{Planted: out.Planted, Distance: out.Distance, Actions: out.Actions}
	if err := writeAtomic(filepath.Join(dir, name+".meta"), func(w io.Writer) error {
		return protocol.WriteMeta(w, meta)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
