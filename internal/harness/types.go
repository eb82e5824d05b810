package harness

import "github.com/roach88/feedstore/internal/social"

// TraceEvent is one committed action.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Flow string `json:"flow"`
	// Data is the action encoded as JSON and decoded into plain values.
	Data any `json:"data,omitempty"`
}

// StepResult records how one step ended.
type StepResult struct {
	Do    string `json:"do"`
	Phase string `json:"phase"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Steps  []StepResult `json:"steps"`
	Errors []string     `json:"errors,omitempty"`

	// Fingerprint identifies the final state.
	Fingerprint string `json:"fingerprint"`

	// State is the final client state.
	State social.RootState `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Types returns the action types of the trace in order.
func (r *Result) Types() []string {
	out := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		out[i] = ev.Type
	}
	return out
}
