package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/feedstore/internal/social"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s (%s)\n", event.Seq, event.Type, event.Flow)
		}
	}
	return buf.String()
}

// selectFunc reads one value from the final state.
type selectFunc func(app *social.App, state social.RootState, param string) any

var selectors = map[string]selectFunc{
	"allPosts": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.AllPosts(s)
	},
	"postIds": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.PostIDs(s)
	},
	"postById": func(app *social.App, s social.RootState, id string) any {
		return optional(app.Select.PostByID(s, id))
	},
	"postsByUser": func(app *social.App, s social.RootState, userID string) any {
		return app.Select.PostsByUser(s, userID)
	},
	"postsStatus": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.PostsStatus(s)
	},
	"postsError": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.PostsError(s)
	},
	"allUsers": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.AllUsers(s)
	},
	"userById": func(app *social.App, s social.RootState, id string) any {
		return optional(app.Select.UserByID(s, id))
	},
	"usersStatus": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.UsersStatus(s)
	},
	"currentUsername": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.CurrentUsername(s)
	},
	"currentUser": func(app *social.App, s social.RootState, _ string) any {
		return optional(app.Select.CurrentUser(s))
	},
	"notification": func(app *social.App, s social.RootState, _ string) any {
		return app.Select.Notification(s)
	},
}

// optional maps a missing lookup to nil.
func optional[T any](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == assertion.Action && matchFields(event.Data, assertion.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with fields %v", assertion.Action, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the actions appear in
// the given order. Other actions may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertSelect(actx *AssertionContext, assertion Assertion) error {
	fn, ok := selectors[assertion.Selector]
	if !ok {
		return fmt.Errorf("unknown selector %q", assertion.Selector)
	}

	actual, err := normalize(fn(actx.App, actx.State, assertion.Param))
	if err != nil {
		return fmt.Errorf("select %s: %w", assertion.Selector, err)
	}
	expected, err := normalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("select %s: expected value: %w", assertion.Selector, err)
	}

	if !valuesEqual(actual, expected) {
		return &AssertionError{
			Type:     AssertSelect,
			Expected: fmt.Sprintf("%s(%s) = %s", assertion.Selector, assertion.Param, compact(expected)),
			Actual:   compact(actual),
		}
	}
	return nil
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// matchFields checks that every dotted path in expected resolves in actual
// to an equal value. Extra fields in actual are ignored.
func matchFields(actual any, expected map[string]any) bool {
	for path, want := range expected {
		got, ok := lookupPath(actual, path)
		if !ok {
			return false
		}
		norm, err := normalize(want)
		if err != nil {
			return false
		}
		if !valuesEqual(got, norm) {
			return false
		}
	}
	return true
}

func lookupPath(v any, path string) (any, bool) {
	cur := v
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext gives select assertions access to the app's selectors and
// the final state.
type AssertionContext struct {
	App   *social.App
	State social.RootState
}

// EvaluateAssertions evaluates all assertions against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertSelect:
			if actx == nil || actx.App == nil {
				err = fmt.Errorf("assertion[%d]: select requires an app", i)
			} else {
				err = assertSelect(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
