package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count  int
	Status Status
	Error  *string
}

type incremented struct{ By int }

func (incremented) Type() ActionType { return "counter/incremented" }

type broken struct{}

func (broken) Type() ActionType { return "counter/broken" }

type exploded struct{}

func (exploded) Type() ActionType { return "counter/exploded" }

var errBroken = errors.New("broken action")

func reduceCounter(s counterState, a Action) (counterState, error) {
	switch a := a.(type) {
	case incremented:
		s.Count += a.By
	case broken:
		return s, errBroken
	case exploded:
		panic("boom")
	}
	return s, nil
}

func newCounterStore(t *testing.T, mw []Middleware[counterState], opts ...Option) *Store[counterState] {
	t.Helper()
	st := New(counterState{Status: StatusIdle}, reduceCounter, mw, opts...)
	startStore(t, st)
	return st
}

// startStore runs the loop until the test ends.
func startStore[S any](t *testing.T, st *Store[S]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- st.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
}

func TestStore_DispatchCommits(t *testing.T) {
	st := newCounterStore(t, nil)
	ctx := context.Background()

	require.NoError(t, st.Dispatch(ctx, incremented{By: 2}))
	require.NoError(t, st.Dispatch(ctx, incremented{By: 3}))

	assert.Equal(t, 5, st.GetState().Count)
	assert.Equal(t, int64(2), st.Seq())
}

func TestStore_NilAction(t *testing.T) {
	st := newCounterStore(t, nil)
	assert.ErrorIs(t, st.Dispatch(context.Background(), nil), ErrNilAction)
}

func TestStore_ConcurrentDispatchSerializes(t *testing.T) {
	st := newCounterStore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, st.Dispatch(ctx, incremented{By: 1}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, st.GetState().Count)
	assert.Equal(t, int64(100), st.Seq())
}

func TestStore_ReducerErrorLeavesStateUnchanged(t *testing.T) {
	st := newCounterStore(t, nil)
	ctx := context.Background()
	require.NoError(t, st.Dispatch(ctx, incremented{By: 1}))

	err := st.Dispatch(ctx, broken{})
	require.Error(t, err)
	assert.True(t, IsReducerError(err))
	assert.ErrorIs(t, err, errBroken)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ActionType("counter/broken"), re.Action)
	assert.NotEmpty(t, re.FlowToken)

	assert.Equal(t, 1, st.GetState().Count)
	assert.Equal(t, int64(1), st.Seq(), "failed action is not stamped")
}

func TestStore_ReducerPanicIsContained(t *testing.T) {
	st := newCounterStore(t, nil)
	ctx := context.Background()

	err := st.Dispatch(ctx, exploded{})
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodePanic, re.Code)

	require.NoError(t, st.Dispatch(ctx, incremented{By: 1}), "loop survives a panic")
	assert.Equal(t, 1, st.GetState().Count)
}

func TestStore_SubscribeSeesCommitsInOrder(t *testing.T) {
	st := New(counterState{}, reduceCounter, nil)

	var mu sync.Mutex
	var seqs []int64
	var counts []int
	unsubscribe := st.Subscribe(func(c Commit[counterState]) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, c.Seq)
		counts = append(counts, c.State.Count)
	})
	startStore(t, st)

	ctx := context.Background()
	require.NoError(t, st.Dispatch(ctx, incremented{By: 1}))
	require.NoError(t, st.Dispatch(ctx, incremented{By: 1}))
	unsubscribe()
	require.NoError(t, st.Dispatch(ctx, incremented{By: 1}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2}, seqs)
	assert.Equal(t, []int{1, 2}, counts)
}

func TestStore_SubscriberPanicDoesNotBreakCommit(t *testing.T) {
	st := New(counterState{}, reduceCounter, nil)
	st.Subscribe(func(Commit[counterState]) { panic("subscriber") })
	startStore(t, st)

	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))
	assert.Equal(t, 1, st.GetState().Count)
}

func TestStore_MiddlewareOrder(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(name string) Middleware[counterState] {
		return func(_ MiddlewareAPI[counterState], next Next) Next {
			return func(ctx context.Context, a Action) error {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
				return next(ctx, a)
			}
		}
	}

	st := newCounterStore(t, []Middleware[counterState]{record("first"), record("second")})
	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestStore_NestedDispatchRunsInline(t *testing.T) {
	bonus := func(api MiddlewareAPI[counterState], next Next) Next {
		return func(ctx context.Context, a Action) error {
			if err := next(ctx, a); err != nil {
				return err
			}
			if inc, ok := a.(incremented); ok && inc.By == 1 {
				return api.Dispatch(ctx, incremented{By: 10})
			}
			return nil
		}
	}

	st := newCounterStore(t, []Middleware[counterState]{bonus})
	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))

	assert.Equal(t, 11, st.GetState().Count, "nested dispatch committed before the outer dispatch returned")
	assert.Equal(t, int64(2), st.Seq())
}

func TestStore_QuotaStopsRunawayFlow(t *testing.T) {
	loop := func(api MiddlewareAPI[counterState], next Next) Next {
		return func(ctx context.Context, a Action) error {
			if err := next(ctx, a); err != nil {
				return err
			}
			return api.Dispatch(ctx, incremented{By: 1})
		}
	}

	st := newCounterStore(t, []Middleware[counterState]{loop}, WithMaxSteps(5))
	err := st.Dispatch(context.Background(), incremented{By: 1})

	require.Error(t, err)
	assert.True(t, IsQuotaError(err))
	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.Equal(t, 5, st.GetState().Count)
}

func TestStore_QuotaIsPerFlow(t *testing.T) {
	st := newCounterStore(t, nil, WithMaxSteps(2))

	for i := 0; i < 5; i++ {
		require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}),
			"each external dispatch starts its own flow")
	}

	flowCtx := WithFlow(context.Background(), "shared")
	require.NoError(t, st.Dispatch(flowCtx, incremented{By: 1}))
	require.NoError(t, st.Dispatch(flowCtx, incremented{By: 1}))
	err := st.Dispatch(flowCtx, incremented{By: 1})
	assert.True(t, IsQuotaError(err))
}

func TestStore_FlowTokensFromGenerator(t *testing.T) {
	var flows []string
	st := New(counterState{}, reduceCounter, nil, WithFlowTokens(NewSequenceGenerator("flow")))
	st.Subscribe(func(c Commit[counterState]) { flows = append(flows, c.Flow) })
	startStore(t, st)

	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))
	require.NoError(t, st.Dispatch(WithFlow(context.Background(), "explicit"), incremented{By: 1}))
	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))

	assert.Equal(t, []string{"flow-1", "explicit", "flow-2"}, flows)
}

func TestStore_DispatchBeforeRunHonorsContext(t *testing.T) {
	st := New(counterState{}, reduceCounter, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := st.Dispatch(ctx, incremented{By: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, st.GetState().Count)
}

func TestStore_StopDrainsThenCloses(t *testing.T) {
	st := New(counterState{}, reduceCounter, nil)
	errCh := make(chan error, 1)
	go func() { errCh <- st.Run(context.Background()) }()

	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))
	st.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.ErrorIs(t, st.Dispatch(context.Background(), incremented{By: 1}), ErrStoreClosed)
	assert.Equal(t, 1, st.GetState().Count)
}

func TestStore_RunTwice(t *testing.T) {
	st := newCounterStore(t, nil)
	// Wait for the first Run to claim the store.
	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 1}))

	assert.ErrorIs(t, st.Run(context.Background()), ErrAlreadyRunning)
}

func TestStore_CancelledRunFailsQueued(t *testing.T) {
	st := New(counterState{}, reduceCounter, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- st.Run(ctx) }()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	assert.ErrorIs(t, st.Dispatch(context.Background(), incremented{By: 1}), ErrStoreClosed)
}
