// Package listener runs side effects in response to committed actions.
//
// A Middleware sits in the store's dispatch chain. After the rest of the
// chain commits an action, every registered listener whose predicate matches
// is started on its own goroutine. Effects can read state, dispatch further
// actions, and wait with Delay; all of these stop once the effect's context
// is cancelled.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/feedstore/internal/store"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("listener middleware closed")

// ErrNoPredicate is returned by Start for a listener with neither Type nor Match.
var ErrNoPredicate = errors.New("listener has no predicate")

// Effect is the body of a listener.
type Effect[S any] func(ctx context.Context, action store.Action, api API[S]) error

// Listener declares when an effect runs.
type Listener[S any] struct {
	// Name identifies the listener in logs.
	Name string

	// Type matches one exact action type.
	Type store.ActionType

	// Match, when set, is used instead of Type.
	Match func(store.Action) bool

	Effect Effect[S]

	// Latest cancels the listener's in-flight runs when it matches again.
	Latest bool
}

func (l Listener[S]) matches(action store.Action) bool {
	if l.Match != nil {
		return l.Match(action)
	}
	return action.Type() == l.Type
}

// ErrorHandler receives effect failures.
type ErrorHandler func(listener string, action store.Action, err error)

type options struct {
	logger  *slog.Logger
	onError ErrorHandler
}

// Option configures a Middleware.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler sets the sink for effect errors and panics. The default
// logs them.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

type registration[S any] struct {
	id       int
	listener Listener[S]
	// Runs in flight, by run id.
	running map[int]context.CancelFunc
}

// Middleware dispatches committed actions to listeners.
type Middleware[S any] struct {
	logger  *slog.Logger
	onError ErrorHandler

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	regs    []*registration[S]
	nextID  int
	nextRun int
}

// New creates a listener middleware.
func New[S any](opts ...Option) *Middleware[S] {
	cfg := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.onError == nil {
		logger := cfg.logger
		cfg.onError = func(name string, action store.Action, err error) {
			logger.Error("listener effect failed",
				"listener", name,
				"type", action.Type(),
				"error", err,
			)
		}
	}

	root, cancel := context.WithCancel(context.Background())
	return &Middleware[S]{
		logger:  cfg.logger,
		onError: cfg.onError,
		root:    root,
		cancel:  cancel,
	}
}

// Start registers a listener. The returned stop function unregisters it and
// cancels its in-flight runs.
func (m *Middleware[S]) Start(l Listener[S]) (stop func(), err error) {
	if l.Match == nil && l.Type == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoPredicate, l.Name)
	}
	if l.Effect == nil {
		return nil, fmt.Errorf("listener %q has no effect", l.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	reg := &registration[S]{id: m.nextID, listener: l, running: make(map[int]context.CancelFunc)}
	m.nextID++
	m.regs = append(m.regs, reg)

	return func() { m.remove(reg.id) }, nil
}

func (m *Middleware[S]) remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, reg := range m.regs {
		if reg.id != id {
			continue
		}
		for _, cancel := range reg.running {
			cancel()
		}
		m.regs = append(m.regs[:i], m.regs[i+1:]...)
		return
	}
}

// Middleware returns the store middleware. Pass it to store.New.
func (m *Middleware[S]) Middleware() store.Middleware[S] {
	return func(api store.MiddlewareAPI[S], next store.Next) store.Next {
		return func(ctx context.Context, action store.Action) error {
			if err := next(ctx, action); err != nil {
				return err
			}
			m.notify(ctx, action, api)
			return nil
		}
	}
}

// notify starts matching listeners for a committed action.
func (m *Middleware[S]) notify(ctx context.Context, action store.Action, api store.MiddlewareAPI[S]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	for _, reg := range m.regs {
		if !reg.listener.matches(action) {
			continue
		}
		if reg.listener.Latest {
			for _, cancel := range reg.running {
				cancel()
			}
		}
		m.spawn(ctx, reg, action, api)
	}
}

// spawn starts one run. Caller holds m.mu.
//
// The effect's context derives from the middleware's root, not from the
// dispatch context: it must outlive the dispatch and must not carry the
// store's inline-dispatch marker. Only the flow token is carried over.
func (m *Middleware[S]) spawn(dispatchCtx context.Context, reg *registration[S], action store.Action, api store.MiddlewareAPI[S]) {
	runCtx := m.root
	if flow, ok := store.FlowFrom(dispatchCtx); ok {
		runCtx = store.WithFlow(runCtx, flow)
	}
	runCtx, cancel := context.WithCancel(runCtx)

	runID := m.nextRun
	m.nextRun++
	reg.running[runID] = cancel

	eff := &effectAPI[S]{
		store: api,
		ctx:   runCtx,
		others: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for id, c := range reg.running {
				if id != runID {
					c()
				}
			}
		},
	}

	name := reg.listener.Name
	effect := reg.listener.Effect

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(reg.running, runID)
			m.mu.Unlock()
			cancel()
		}()

		err := runSafely(name, func() error {
			return effect(runCtx, action, eff)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			m.onError(name, action, err)
		}
	}()
}

// Close cancels every in-flight run and waits for them to finish, or for
// ctx to end.
func (m *Middleware[S]) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for listener effects: %w", ctx.Err())
	}
}

// Wait blocks until no runs are in flight.
func (m *Middleware[S]) Wait() {
	m.wg.Wait()
}

// API is what an effect can do.
type API[S any] interface {
	// GetState returns the store's current state.
	GetState() S

	// Dispatch queues an action on the store. It fails with the context's
	// error once the run has been cancelled.
	Dispatch(ctx context.Context, action store.Action) error

	// Delay waits for d or until ctx ends.
	Delay(ctx context.Context, d time.Duration) error

	// CancelOthers cancels the listener's other in-flight runs.
	CancelOthers()
}

type effectAPI[S any] struct {
	store  store.MiddlewareAPI[S]
	ctx    context.Context
	others func()
}

func (a *effectAPI[S]) GetState() S {
	return a.store.GetState()
}

func (a *effectAPI[S]) Dispatch(ctx context.Context, action store.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.ctx.Err(); err != nil {
		return err
	}
	if flow, ok := store.FlowFrom(a.ctx); ok {
		if _, has := store.FlowFrom(ctx); !has {
			ctx = store.WithFlow(ctx, flow)
		}
	}
	return a.store.Dispatch(ctx, action)
}

func (a *effectAPI[S]) Delay(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *effectAPI[S]) CancelOthers() {
	a.others()
}

func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
