package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNotificationDelay keeps notification listeners short in scenarios.
const DefaultNotificationDelay = time.Millisecond

// Scenario is one client session against canned server responses.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// NotificationDelay overrides how long notifications stay visible.
	NotificationDelay time.Duration `yaml:"notification_delay,omitempty"`

	// Responses are the canned server replies, replayed per route in order.
	Responses []CannedResponse `yaml:"responses,omitempty"`

	// Steps are the client operations, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the trace and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CannedResponse is one server reply. Exactly one of Body and Error applies;
// a response with neither succeeds with no body.
type CannedResponse struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Body   any    `yaml:"body,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

// Step invokes one client operation.
type Step struct {
	// Do names the operation, e.g. "addNewPost".
	Do string `yaml:"do"`

	// Args are decoded into the operation's argument type.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect, if set, checks how the step ended.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step outcome.
type Expect struct {
	// Phase is fulfilled, rejected, or skipped for async operations and
	// ok or error for plain dispatches.
	Phase string `yaml:"phase"`

	// Error must be a substring of the step's error message.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, select.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Fields are matched against the action's JSON form (trace_contains).
	// Keys are dotted paths such as "meta.arg.title".
	Fields map[string]any `yaml:"fields,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected relative order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Selector names a read model (select).
	Selector string `yaml:"selector,omitempty"`

	// Param is the selector argument, e.g. a post or user id.
	Param string `yaml:"param,omitempty"`

	// Expect is compared with the selector result after JSON encoding.
	Expect any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertSelect        = "select"
)

// Step phases beyond the async lifecycle phases.
const (
	PhaseOK      = "ok"
	PhaseError   = "error"
	PhaseSkipped = "skipped"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.NotificationDelay < 0 {
		return errors.New("notification_delay must not be negative")
	}

	for i, r := range s.Responses {
		if r.Method == "" || r.Path == "" {
			return fmt.Errorf("responses[%d]: method and path are required", i)
		}
		if r.Body != nil && r.Error != "" {
			return fmt.Errorf("responses[%d]: body and error are mutually exclusive", i)
		}
	}

	for i, step := range s.Steps {
		if _, ok := operations[step.Do]; !ok {
			return fmt.Errorf("steps[%d]: unknown operation %q", i, step.Do)
		}
		if step.Expect != nil && !validPhase(step.Expect.Phase) {
			return fmt.Errorf("steps[%d]: unknown phase %q", i, step.Expect.Phase)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validPhase(p string) bool {
	switch p {
	case "fulfilled", "rejected", PhaseSkipped, PhaseOK, PhaseError:
		return true
	}
	return false
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return errors.New("trace_contains requires action")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return errors.New("trace_order requires at least two actions")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return errors.New("trace_count requires action")
		}
		if a.Count < 0 {
			return errors.New("trace_count requires a non-negative count")
		}
	case AssertSelect:
		if _, ok := selectors[a.Selector]; !ok {
			return fmt.Errorf("unknown selector %q", a.Selector)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
