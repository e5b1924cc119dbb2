package protocol

// PLAN (client -> server)
type PlanMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Name            string     `json:"name,omitempty"`
	TimeLimitMs     int        `json:"time_limit_ms,omitempty"`
	Problem         ProblemDoc `json:"problem"`
}

// STEP (server -> client): one committed action.
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id"`
	Seq             int    `json:"seq"`
	Kind            string `json:"kind"`
	Pos             [2]int `json:"pos"`
	Cost            int    `json:"cost"`
	Traveled        int    `json:"traveled"`
	Depth           int    `json:"depth"`
	Remaining       int    `json:"remaining"`
}

// DONE (server -> client): the resolved plan.
type DoneMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Planted         int      `json:"planted"`
	Distance        int      `json:"distance"`
	Stuck           bool     `json:"stuck,omitempty"`
	ElapsedMs       int64    `json:"elapsed_ms"`
	Steps           []string `json:"steps"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
