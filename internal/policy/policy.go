// Package policy decides whether a classified page warrants an
// intervention, given the current session state.
package policy

import "context"

// Actions an intervention policy can produce.
const (
	ActionAllow    = "allow"
	ActionRedirect = "redirect"
)

// Input carries the facts an intervention decision is made from.
type Input struct {
	SessionState    string  `json:"session_state"`
	AnalysisEnabled bool    `json:"analysis_enabled"`
	Class           string  `json:"class"`
	Confidence      float64 `json:"confidence"`
	URL             string  `json:"url"`
}

// Outcome is the policy decision.
type Outcome struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Engine evaluates intervention policy.
type Engine interface {
	Evaluate(ctx context.Context, input Input) (*Outcome, error)
	Reload() error
}
