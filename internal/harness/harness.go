package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/feedstore/internal/snapshot"
	"github.com/roach88/feedstore/internal/social"
	"github.com/roach88/feedstore/internal/store"
	"github.com/roach88/feedstore/internal/testutil"
)

// StepTimeout bounds a single step, including its listener effects.
const StepTimeout = 10 * time.Second

// operation executes one step against the app.
type operation func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error)

var operations = map[string]operation{
	"login": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.LoginRequest
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.Login(ctx, in.Username))
	},
	"logout": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		if err := decodeArgs(args, &struct{}{}); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.Logout(ctx))
	},
	"fetchPosts": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		if err := decodeArgs(args, &struct{}{}); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.FetchPosts(ctx))
	},
	"fetchUsers": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		if err := decodeArgs(args, &struct{}{}); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.FetchUsers(ctx))
	},
	"addNewPost": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.NewPost
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.AddNewPost(ctx, in))
	},
	"editPost": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.PostUpdate
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromOutcome(app.EditPost(ctx, in))
	},
	"updatePost": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.PostUpdate
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromDispatch(app.UpdatePost(ctx, in)), nil
	},
	"addReaction": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.ReactionAdded
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromDispatch(app.AddReaction(ctx, in.PostID, in.Reaction)), nil
	},
	"removePost": func(ctx context.Context, app *social.App, args map[string]any) (StepResult, error) {
		var in social.PostRemoved
		if err := decodeArgs(args, &in); err != nil {
			return StepResult{}, err
		}
		return fromDispatch(app.RemovePost(ctx, in.ID)), nil
	},
}

// decodeArgs converts YAML args into the operation's argument type. Unknown
// keys are rejected.
func decodeArgs(args map[string]any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func fromOutcome[R any](o store.Outcome[R], err error) (StepResult, error) {
	if err != nil {
		return StepResult{Phase: PhaseError, Error: err.Error()}, nil
	}
	if o.Skipped() {
		return StepResult{Phase: PhaseSkipped}, nil
	}
	return StepResult{Phase: string(o.Phase), Error: o.Error}, nil
}

func fromDispatch(err error) StepResult {
	if err != nil {
		return StepResult{Phase: PhaseError, Error: err.Error()}
	}
	return StepResult{Phase: PhaseOK}
}

// traceRecorder collects commits from the loop goroutine.
type traceRecorder struct {
	mu     sync.Mutex
	events []TraceEvent
	err    error
}

func (r *traceRecorder) record(c store.Commit[social.RootState]) {
	data, err := normalize(c.Action)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("encode %s: %w", c.Action.Type(), err)
	}
	r.events = append(r.events, TraceEvent{
		Seq:  c.Seq,
		Type: string(c.Action.Type()),
		Flow: c.Flow,
		Data: data,
	})
}

func (r *traceRecorder) snapshot() ([]TraceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.events...), r.err
}

// normalize encodes v as JSON and decodes it into maps, slices, strings,
// float64, bool, and nil.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Run executes a scenario and returns its result.
//
// Each run builds a fresh app over a stub transport with sequential request
// ids and flow tokens, so identical scenarios produce identical traces.
// Step failures and assertion failures are reported in the result; the
// returned error is for scenarios that could not be run at all.
func Run(scenario *Scenario) (*Result, error) {
	stub := testutil.NewStubTransport()
	for _, r := range scenario.Responses {
		resp := testutil.Response{Body: r.Body}
		if r.Error != "" {
			resp = testutil.Response{Err: errors.New(r.Error)}
		}
		stub.On(r.Method, r.Path, resp)
	}

	delay := scenario.NotificationDelay
	if delay == 0 {
		delay = DefaultNotificationDelay
	}

	app, err := social.New(stub,
		social.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		social.WithNotificationDelay(delay),
		social.WithStoreOptions(
			store.WithRequestIDs(store.NewSequenceGenerator("req")),
			store.WithFlowTokens(store.NewSequenceGenerator("flow")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}

	rec := &traceRecorder{}
	unsubscribe := app.Store.Subscribe(rec.record)
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(runCtx) }()

	result := NewResult()
	for i, step := range scenario.Steps {
		sr, err := executeStep(app, step)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Do, err))
			break
		}
		result.Steps = append(result.Steps, sr)
		if msg := checkExpect(step.Expect, sr); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Do, msg))
		}
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), StepTimeout)
	defer closeCancel()
	if err := app.Close(closeCtx); err != nil {
		return nil, fmt.Errorf("failed to close app: %w", err)
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("store loop: %w", err)
	}

	trace, err := rec.snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}
	result.Trace = trace
	result.State = app.State()

	fp, err := snapshot.Fingerprint(result.State)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint state: %w", err)
	}
	result.Fingerprint = fp

	actx := &AssertionContext{App: app, State: result.State}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one step and waits for the listener effects it started.
func executeStep(app *social.App, step Step) (StepResult, error) {
	op, ok := operations[step.Do]
	if !ok {
		return StepResult{}, fmt.Errorf("unknown operation %q", step.Do)
	}

	ctx, cancel := context.WithTimeout(context.Background(), StepTimeout)
	defer cancel()

	sr, err := op(ctx, app, step.Args)
	if err != nil {
		return StepResult{}, err
	}
	sr.Do = step.Do
	app.Listeners.Wait()
	return sr, nil
}

func checkExpect(want *Expect, got StepResult) string {
	if want == nil {
		return ""
	}
	if want.Phase != got.Phase {
		if got.Error != "" {
			return fmt.Sprintf("expected phase %s, got %s (%s)", want.Phase, got.Phase, got.Error)
		}
		return fmt.Sprintf("expected phase %s, got %s", want.Phase, got.Phase)
	}
	if want.Error != "" && !strings.Contains(got.Error, want.Error) {
		return fmt.Sprintf("expected error containing %q, got %q", want.Error, got.Error)
	}
	return ""
}
