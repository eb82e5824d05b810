package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSteps is the default maximum number of commits per flow.
const DefaultMaxSteps = 1000

// quotaTableSize bounds the number of flows tracked at once. Flows evicted
// from the table start counting again from zero if they resume.
const quotaTableSize = 4096

// Reducer computes the next state for an action. It must not mutate state.
// Returning an error aborts the commit.
type Reducer[S any] func(state S, action Action) (S, error)

// Commit describes one committed action, delivered to subscribers.
type Commit[S any] struct {
	Seq    int64
	Action Action
	State  S
	Flow   string
}

// Store is the single-writer state container.
//
// Thread-safety model:
//   - Dispatch, GetState, Subscribe: safe from any goroutine
//   - Run: called from exactly one goroutine
//   - reducers, middleware, and subscribers run on the Run goroutine
type Store[S any] struct {
	reducer Reducer[S]
	chain   Next
	queue   *commitQueue[S]
	clock   *Clock
	state   atomic.Pointer[S]

	requestIDs IDGenerator
	flows      IDGenerator
	logger     *slog.Logger

	// Loop-only.
	maxSteps int
	quotas   *lru.Cache[string, *QuotaEnforcer]

	subMu   sync.Mutex
	subs    map[int]func(Commit[S])
	nextSub int

	started atomic.Bool
	done    chan struct{}
}

type options struct {
	logger     *slog.Logger
	requestIDs IDGenerator
	flows      IDGenerator
	clock      *Clock
	maxSteps   int
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRequestIDs sets the generator for thunk request ids.
func WithRequestIDs(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.requestIDs = gen
		}
	}
}

// WithFlowTokens sets the generator for flow tokens.
func WithFlowTokens(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.flows = gen
		}
	}
}

// WithClock sets the logical clock.
func WithClock(clock *Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMaxSteps sets the commit quota per flow.
//
// Default: 1000 (DefaultMaxSteps).
func WithMaxSteps(maxSteps int) Option {
	return func(o *options) {
		if maxSteps > 0 {
			o.maxSteps = maxSteps
		}
	}
}

// New creates a store holding initial, transitioned by reducer.
//
// middleware is applied in order: the first entry sees each action first.
// The store does not process dispatches until Run is called.
func New[S any](initial S, reducer Reducer[S], middleware []Middleware[S], opts ...Option) *Store[S] {
	cfg := options{
		logger:     slog.Default(),
		requestIDs: UUIDv7Generator{},
		flows:      UUIDv7Generator{},
		clock:      NewClock(),
		maxSteps:   DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	quotas, err := lru.New[string, *QuotaEnforcer](quotaTableSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(fmt.Sprintf("store: quota table: %v", err))
	}

	s := &Store[S]{
		reducer:    reducer,
		queue:      newCommitQueue[S](),
		clock:      cfg.clock,
		requestIDs: cfg.requestIDs,
		flows:      cfg.flows,
		logger:     cfg.logger,
		maxSteps:   cfg.maxSteps,
		quotas:     quotas,
		subs:       make(map[int]func(Commit[S])),
		done:       make(chan struct{}),
	}
	s.state.Store(&initial)

	s.chain = s.commit
	for i := len(middleware) - 1; i >= 0; i-- {
		s.chain = middleware[i](s, s.chain)
	}

	return s
}

// GetState returns the last committed state.
func (s *Store[S]) GetState() S {
	return *s.state.Load()
}

// Seq returns the sequence number of the last commit.
func (s *Store[S]) Seq() int64 {
	return s.clock.Current()
}

// Done is closed when Run returns.
func (s *Store[S]) Done() <-chan struct{} {
	return s.done
}

// Subscribe registers fn to be called after every commit. fn runs on the
// loop goroutine and must not block or call Dispatch.
func (s *Store[S]) Subscribe(fn func(Commit[S])) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Dispatch submits an action and blocks until it is committed or rejected.
//
// Called with a context handed out by the loop (from middleware), the action
// runs inline. Otherwise it is queued behind earlier dispatches. If ctx ends
// while the action is queued, Dispatch returns ctx.Err(); the action may
// still be committed later.
func (s *Store[S]) Dispatch(ctx context.Context, action Action) error {
	return s.dispatch(ctx, action, nil)
}

func (s *Store[S]) dispatch(ctx context.Context, action Action, guard func(S) bool) error {
	if action == nil {
		return ErrNilAction
	}

	if ctx.Value(loopKey{}) == any(s) {
		if guard != nil && !guard(s.GetState()) {
			return ErrSkipped
		}
		return s.chain(ctx, action)
	}

	if _, ok := FlowFrom(ctx); !ok {
		ctx = WithFlow(ctx, s.flows.Generate())
	}

	env := envelope[S]{
		ctx:    ctx,
		action: action,
		guard:  guard,
		reply:  make(chan error, 1),
	}
	if !s.queue.Enqueue(env) {
		return ErrStoreClosed
	}

	select {
	case err := <-env.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		// The loop may have replied just before exiting.
		select {
		case err := <-env.reply:
			return err
		default:
			return ErrStoreClosed
		}
	}
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Stop is called. Envelopes still queued when ctx is cancelled fail with
// ErrStoreClosed; after Stop, queued envelopes are drained first.
func (s *Store[S]) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	s.logger.Info("store starting")

	for {
		if env, ok := s.queue.TryDequeue(); ok {
			s.process(env)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("store stopping: context cancelled")
			s.queue.Close()
			s.failPending()
			return ctx.Err()

		case <-s.queue.Wait():
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("store stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once the queued envelopes are processed.
func (s *Store[S]) Stop() {
	s.queue.Close()
}

type loopKey struct{}

// process commits one envelope.
// CRITICAL: called only from the Run goroutine.
func (s *Store[S]) process(env envelope[S]) {
	if err := env.ctx.Err(); err != nil {
		env.reply <- err
		return
	}
	if env.guard != nil && !env.guard(s.GetState()) {
		env.reply <- ErrSkipped
		return
	}

	ctx := context.WithValue(env.ctx, loopKey{}, any(s))
	env.reply <- s.runChain(ctx, env.action)
}

// runChain runs the middleware chain, converting a panic into a RuntimeError.
// The state is untouched when a reducer panics because the commit never
// reaches the store.
func (s *Store[S]) runChain(ctx context.Context, action Action) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		flow, _ := FlowFrom(ctx)
		s.logger.Error("panic while committing action",
			"type", action.Type(),
			"flow", flow,
			"panic", recovered,
		)
		err = &RuntimeError{
			Code:      ErrCodePanic,
			Message:   fmt.Sprintf("panic recovered: %v", recovered),
			Action:    action.Type(),
			FlowToken: flow,
		}
	}()

	return s.chain(ctx, action)
}

// commit is the innermost link of the middleware chain.
func (s *Store[S]) commit(ctx context.Context, action Action) error {
	flow, _ := FlowFrom(ctx)

	if flow != "" {
		quota, ok := s.quotas.Get(flow)
		if !ok {
			quota = NewQuotaEnforcer(s.maxSteps)
			s.quotas.Add(flow, quota)
		}
		if err := quota.Check(flow); err != nil {
			s.logger.Error("max steps quota exceeded",
				"flow", flow,
				"type", action.Type(),
				"steps", quota.Current(),
				"limit", quota.MaxSteps(),
			)
			var stepsErr *StepsExceededError
			if errors.As(err, &stepsErr) {
				return NewQuotaError(action.Type(), stepsErr)
			}
			return err
		}
	}

	next, err := s.reducer(s.GetState(), action)
	if err != nil {
		s.logger.Error("reducer failed",
			"type", action.Type(),
			"flow", flow,
			"error", err,
		)
		return NewReducerError(action.Type(), flow, err)
	}

	s.state.Store(&next)
	seq := s.clock.Next()

	s.logger.Debug("action committed",
		"type", action.Type(),
		"seq", seq,
		"flow", flow,
	)

	s.notify(Commit[S]{Seq: seq, Action: action, State: next, Flow: flow})
	return nil
}

func (s *Store[S]) notify(c Commit[S]) {
	s.subMu.Lock()
	fns := make([]func(Commit[S]), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		err := recoverPanic("subscriber", func() error {
			fn(c)
			return nil
		})
		if err != nil {
			s.logger.Error("subscriber failed", "type", c.Action.Type(), "error", err)
		}
	}
}

// failPending replies ErrStoreClosed to everything left in the queue.
func (s *Store[S]) failPending() {
	for {
		env, ok := s.queue.TryDequeue()
		if !ok {
			return
		}
		env.reply <- ErrStoreClosed
	}
}

func (s *Store[S]) newRequestID() string {
	return s.requestIDs.Generate()
}

func (s *Store[S]) newFlow() string {
	return s.flows.Generate()
}
