package store

import (
	"context"
	"errors"
	"fmt"
)

// UnknownError is the rejection message used when a failure carries none.
const UnknownError = "Unknown Error"

// ErrorMessage normalizes err into a rejection message.
func ErrorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return UnknownError
	}
	return err.Error()
}

// Meta identifies one thunk invocation.
type Meta[A any] struct {
	RequestID string `json:"requestId"`
	Arg       A      `json:"arg"`
}

// Pending is committed before a thunk's payload starts.
type Pending[A any] struct {
	Base ActionType `json:"base"`
	Meta Meta[A]    `json:"meta"`
}

// Type implements Action.
func (a Pending[A]) Type() ActionType { return a.Base.Phase(PhasePending) }

// Fulfilled is committed when a thunk's payload succeeds.
type Fulfilled[A, R any] struct {
	Base    ActionType `json:"base"`
	Meta    Meta[A]    `json:"meta"`
	Payload R          `json:"payload"`
}

// Type implements Action.
func (a Fulfilled[A, R]) Type() ActionType { return a.Base.Phase(PhaseFulfilled) }

// Rejected is committed when a thunk's payload fails.
type Rejected[A any] struct {
	Base  ActionType `json:"base"`
	Meta  Meta[A]    `json:"meta"`
	Error string     `json:"error"`
}

// Type implements Action.
func (a Rejected[A]) Type() ActionType { return a.Base.Phase(PhaseRejected) }

// ThunkAPI is handed to a thunk payload.
type ThunkAPI[S any] struct {
	RequestID string
	store     *Store[S]
}

// GetState returns the store's current state.
func (api ThunkAPI[S]) GetState() S {
	return api.store.GetState()
}

// Dispatch dispatches an action to the store running the thunk.
func (api ThunkAPI[S]) Dispatch(ctx context.Context, action Action) error {
	return api.store.Dispatch(ctx, action)
}

// RejectedError is returned by Outcome.Unwrap for a rejected invocation.
type RejectedError struct {
	Type      ActionType
	RequestID string
	Message   string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Type, e.Message)
}

// Outcome reports how one invocation ended.
type Outcome[R any] struct {
	Type      ActionType
	RequestID string
	// Phase is PhaseFulfilled or PhaseRejected, or empty when skipped.
	Phase   Phase
	Payload R
	Error   string
}

// Skipped reports whether the condition declined the invocation.
func (o Outcome[R]) Skipped() bool {
	return o.Phase == ""
}

// Unwrap returns the payload, a *RejectedError, or ErrSkipped.
func (o Outcome[R]) Unwrap() (R, error) {
	var zero R
	switch o.Phase {
	case PhaseFulfilled:
		return o.Payload, nil
	case PhaseRejected:
		return zero, &RejectedError{Type: o.Type, RequestID: o.RequestID, Message: o.Error}
	default:
		return zero, ErrSkipped
	}
}

// AsyncThunk describes an external operation wrapped in lifecycle actions.
//
// S is the root state, A the argument, R the payload.
type AsyncThunk[S, A, R any] struct {
	// Type is the base action type; lifecycle actions append
	// "/pending", "/fulfilled", "/rejected".
	Type ActionType

	// Payload performs the external call. It runs on the dispatching
	// goroutine, outside the store loop, and is never retried.
	Payload func(ctx context.Context, arg A, api ThunkAPI[S]) (R, error)

	// Condition, when set, is evaluated against the current state in the
	// same loop step that commits the pending action. Returning false skips
	// the invocation: no actions, no external call.
	Condition func(state S, arg A) bool
}

// Dispatch runs one invocation against st and waits for it to resolve.
//
// A returned error means the store refused an action (closed, quota, reducer
// failure). A failed payload is not an error here: it is reported by the
// rejected action and the Outcome. A payload the fulfilled reducers cannot
// apply is rejected with the reducer's message. Once pending is committed, the resolution
// is committed even if ctx is cancelled; the payload sees the cancellation
// and the invocation rejects.
func (t *AsyncThunk[S, A, R]) Dispatch(ctx context.Context, st *Store[S], arg A) (Outcome[R], error) {
	if err := ctx.Err(); err != nil {
		return Outcome[R]{Type: t.Type}, err
	}
	if _, ok := FlowFrom(ctx); !ok {
		ctx = WithFlow(ctx, st.newFlow())
	}

	meta := Meta[A]{RequestID: st.newRequestID(), Arg: arg}
	out := Outcome[R]{Type: t.Type, RequestID: meta.RequestID}

	var guard func(S) bool
	if t.Condition != nil {
		guard = func(state S) bool { return t.Condition(state, arg) }
	}

	detached := context.WithoutCancel(ctx)
	if err := st.dispatch(detached, Pending[A]{Base: t.Type, Meta: meta}, guard); err != nil {
		if errors.Is(err, ErrSkipped) {
			st.logger.Debug("thunk skipped by condition",
				"type", t.Type,
				"request_id", meta.RequestID,
			)
			return out, nil
		}
		return out, fmt.Errorf("dispatch %s: %w", t.Type.Phase(PhasePending), err)
	}

	var payload R
	callErr := recoverPanic(string(t.Type), func() error {
		var err error
		payload, err = t.Payload(ctx, arg, ThunkAPI[S]{RequestID: meta.RequestID, store: st})
		return err
	})

	var resolution Action
	if callErr != nil {
		out.Phase = PhaseRejected
		out.Error = ErrorMessage(callErr)
		resolution = Rejected[A]{Base: t.Type, Meta: meta, Error: out.Error}
	} else {
		out.Phase = PhaseFulfilled
		out.Payload = payload
		resolution = Fulfilled[A, R]{Base: t.Type, Meta: meta, Payload: payload}
	}

	err := st.Dispatch(detached, resolution)
	if err != nil && out.Phase == PhaseFulfilled && IsReducerError(err) {
		// The payload arrived but cannot be applied; reject so the status
		// still reaches a terminal value.
		var re *RuntimeError
		errors.As(err, &re)
		out = Outcome[R]{Type: t.Type, RequestID: meta.RequestID, Phase: PhaseRejected, Error: ErrorMessage(re.Err)}
		resolution = Rejected[A]{Base: t.Type, Meta: meta, Error: out.Error}
		err = st.Dispatch(detached, resolution)
	}
	if err != nil {
		return out, fmt.Errorf("dispatch %s: %w", resolution.Type(), err)
	}
	return out, nil
}

// OnPending builds a slice case for t's pending action.
func OnPending[P, S, A, R any](t *AsyncThunk[S, A, R], fn func(P, Pending[A]) (P, error)) Case[P] {
	return lifecycleCase(t.Type.Phase(PhasePending), fn)
}

// OnFulfilled builds a slice case for t's fulfilled action.
func OnFulfilled[P, S, A, R any](t *AsyncThunk[S, A, R], fn func(P, Fulfilled[A, R]) (P, error)) Case[P] {
	return lifecycleCase(t.Type.Phase(PhaseFulfilled), fn)
}

// OnRejected builds a slice case for t's rejected action.
func OnRejected[P, S, A, R any](t *AsyncThunk[S, A, R], fn func(P, Rejected[A]) (P, error)) Case[P] {
	return lifecycleCase(t.Type.Phase(PhaseRejected), fn)
}

func lifecycleCase[P any, T Action](typ ActionType, fn func(P, T) (P, error)) Case[P] {
	return Case[P]{
		Type: typ,
		Reduce: func(state P, action Action) (P, error) {
			act, ok := action.(T)
			if !ok {
				return state, fmt.Errorf("%w: %s got %T", ErrActionMismatch, typ, action)
			}
			return fn(state, act)
		},
	}
}
