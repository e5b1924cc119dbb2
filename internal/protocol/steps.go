package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gardenbot.ai/internal/sim/geom"
	"gardenbot.ai/internal/sim/plan"
	"gardenbot.ai/internal/sim/resolve"
)

func FormatStep(s resolve.Step) string {
	switch s.Kind {
	case resolve.Move, resolve.Plant:
		return fmt.Sprintf("%s %d %d", s.Kind, s.Pos.X, s.Pos.Y)
	}
	return s.Kind.String()
}

func FormatSteps(steps []resolve.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = FormatStep(s)
	}
	return out
}

// ParseSteps reads the output strings back. Collect positions are filled from the
// preceding Move.
func ParseSteps(lines []string) ([]resolve.Step, error) {
	out := make([]resolve.Step, 0, len(lines))
	pos := geom.Pos{}
	for i, line := range lines {
		s, err := parseStep(line)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		switch s.Kind {
		case resolve.Move:
			pos = s.Pos
		case resolve.Collect:
			s.Pos = pos
		}
		out = append(out, s)
	}
	return out, nil
}

func parseStep(line string) (resolve.Step, error) {
	if line == "COLLECT" {
		return resolve.Step{Kind: resolve.Collect}, nil
	}
	f := strings.Fields(line)
	if len(f) != 3 {
		return resolve.Step{}, fmt.Errorf("bad step %q", line)
	}
	var kind resolve.StepKind
	switch f[0] {
	case "MOVE":
		kind = resolve.Move
	case "PLANT":
		kind = resolve.Plant
	default:
		return resolve.Step{}, fmt.Errorf("bad step %q", line)
	}
	x, err := strconv.Atoi(f[1])
	if err != nil {
		return resolve.Step{}, fmt.Errorf("bad step %q: %w", line, err)
	}
	y, err := strconv.Atoi(f[2])
	if err != nil {
		return resolve.Step{}, fmt.Errorf("bad step %q: %w", line, err)
	}
	return resolve.Step{Kind: kind, Pos: geom.Pos{X: x, Y: y}}, nil
}

// ActionDoc is the abstract action form kept in .meta files.
type ActionDoc struct {
	Pos  [2]int `json:"pos"`
	Kind string `json:"kind"`
}

func ActionDocs(actions []plan.Action) []ActionDoc {
	out := make([]ActionDoc, len(actions))
	for i, a := range actions {
		kind := "Plant"
		if a.Kind == plan.Collect {
			kind = "Collect"
		}
		out[i] = ActionDoc{Pos: a.Target.ToArray(), Kind: kind}
	}
	return out
}

func (d ActionDoc) Action() (plan.Action, error) {
	a := plan.Action{Target: geom.FromArray(d.Pos)}
	switch d.Kind {
	case "Plant":
		a.Kind = plan.Plant
	case "Collect":
		a.Kind = plan.Collect
	default:
		return a, fmt.Errorf("unknown action kind %q", d.Kind)
	}
	return a, nil
}

// Meta is the plan summary written next to an output file.
type Meta struct {
	Planted  int
	Distance int
	Actions  []plan.Action
}

// WriteMeta writes "<planted> <distance>" on the first line and the actions as JSON after.
func WriteMeta(w io.Writer, m Meta) error {
	if _, err := fmt.Fprintf(w, "%d %d\n", m.Planted, m.Distance); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ActionDocs(m.Actions))
}

func ReadMeta(r io.Reader) (Meta, error) {
	var m Meta
	br := bufio.NewReader(r)
	head, err := br.ReadString('\n')
	if err != nil {
		return m, fmt.Errorf("meta header: %w", err)
	}
	if _, err := fmt.Sscanf(head, "%d %d", &m.Planted, &m.Distance); err != nil {
		return m, fmt.Errorf("meta header %q: %w", strings.TrimSpace(head), err)
	}
	var docs []ActionDoc
	if err := json.NewDecoder(br).Decode(&docs); err != nil && err != io.EOF {
		return m, fmt.Errorf("meta actions: %w", err)
	}
	for _, d := range docs {
		a, err := d.Action()
		if err != nil {
			return m, err
		}
		m.Actions = append(m.Actions, a)
	}
	return m, nil
}
