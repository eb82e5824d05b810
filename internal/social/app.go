// Package social is the feed client: posts, users, auth, and notifications
// kept in one store and fed by a Transport.
package social

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/feedstore/internal/listener"
	"github.com/roach88/feedstore/internal/store"
)

// DefaultNotificationDelay is how long the "new post" notification stays up.
const DefaultNotificationDelay = 5 * time.Second

// RootState is the whole client state.
type RootState struct {
	Auth          AuthState          `json:"auth"`
	Posts         PostsState         `json:"posts"`
	Users         UsersState         `json:"users"`
	Notifications NotificationsState `json:"notifications"`
}

// InitialState returns the state of a fresh client.
func InitialState() RootState {
	return RootState{
		Posts: initialPostsState(),
		Users: initialUsersState(),
	}
}

type options struct {
	logger            *slog.Logger
	notificationDelay time.Duration
	storeOpts         []store.Option
	middleware        []store.Middleware[RootState]
}

// Option configures an App.
type Option func(*options)

// WithLogger sets the logger for the store and listeners.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotificationDelay sets how long notifications stay visible.
func WithNotificationDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.notificationDelay = d
		}
	}
}

// WithStoreOptions passes options through to store.New.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithMiddleware adds store middleware ahead of the listener middleware.
func WithMiddleware(mw ...store.Middleware[RootState]) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// App wires the feed store, its thunks, selectors, and listeners.
type App struct {
	Store     *store.Store[RootState]
	Listeners *listener.Middleware[RootState]
	Thunks    *Thunks
	Select    *Selectors

	logger *slog.Logger
}

// New builds an App talking to tr. Call Run to start processing.
func New(tr Transport, opts ...Option) (*App, error) {
	cfg := options{
		logger:            slog.Default(),
		notificationDelay: DefaultNotificationDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	th := newThunks(tr)
	reducer, err := rootReducer(th)
	if err != nil {
		return nil, err
	}

	listeners := listener.New[RootState](listener.WithLogger(cfg.logger))
	mw := append(append([]store.Middleware[RootState](nil), cfg.middleware...), listeners.Middleware())
	storeOpts := append([]store.Option{store.WithLogger(cfg.logger)}, cfg.storeOpts...)

	app := &App{
		Store:     store.New(InitialState(), reducer, mw, storeOpts...),
		Listeners: listeners,
		Thunks:    th,
		Select:    NewSelectors(),
		logger:    cfg.logger,
	}

	if err := registerListeners(listeners, cfg.notificationDelay); err != nil {
		return nil, err
	}
	return app, nil
}

func rootReducer(th *Thunks) (store.Reducer[RootState], error) {
	auth, err := newAuthSlice(th)
	if err != nil {
		return nil, fmt.Errorf("auth slice: %w", err)
	}
	posts, err := newPostsSlice(th)
	if err != nil {
		return nil, fmt.Errorf("posts slice: %w", err)
	}
	users, err := newUsersSlice(th)
	if err != nil {
		return nil, fmt.Errorf("users slice: %w", err)
	}
	notifications, err := newNotificationsSlice()
	if err != nil {
		return nil, fmt.Errorf("notifications slice: %w", err)
	}

	return store.Combine(
		store.Mount(auth,
			func(r RootState) AuthState { return r.Auth },
			func(r RootState, s AuthState) RootState { r.Auth = s; return r }),
		store.Mount(posts,
			func(r RootState) PostsState { return r.Posts },
			func(r RootState, s PostsState) RootState { r.Posts = s; return r }),
		store.Mount(users,
			func(r RootState) UsersState { return r.Users },
			func(r RootState, s UsersState) RootState { r.Users = s; return r }),
		store.Mount(notifications,
			func(r RootState) NotificationsState { return r.Notifications },
			func(r RootState, s NotificationsState) RootState { r.Notifications = s; return r }),
	), nil
}

// Run processes dispatches until ctx is cancelled or Close is called.
func (a *App) Run(ctx context.Context) error {
	return a.Store.Run(ctx)
}

// Close cancels pending listener effects, waits for them, and stops the store.
func (a *App) Close(ctx context.Context) error {
	err := a.Listeners.Close(ctx)
	a.Store.Stop()
	return err
}

// State returns the current state.
func (a *App) State() RootState {
	return a.Store.GetState()
}

// Login logs in as username.
func (a *App) Login(ctx context.Context, username string) (store.Outcome[string], error) {
	return a.Thunks.Login.Dispatch(ctx, a.Store, username)
}

// Logout logs out and wipes the cached posts.
func (a *App) Logout(ctx context.Context) (store.Outcome[struct{}], error) {
	return a.Thunks.Logout.Dispatch(ctx, a.Store, struct{}{})
}

// FetchPosts loads the feed unless it is loading or already loaded.
func (a *App) FetchPosts(ctx context.Context) (store.Outcome[[]Post], error) {
	return a.Thunks.FetchPosts.Dispatch(ctx, a.Store, struct{}{})
}

// FetchUsers loads the user list.
func (a *App) FetchUsers(ctx context.Context) (store.Outcome[[]User], error) {
	return a.Thunks.FetchUsers.Dispatch(ctx, a.Store, struct{}{})
}

// AddNewPost creates a post on the server and caches it.
func (a *App) AddNewPost(ctx context.Context, p NewPost) (store.Outcome[Post], error) {
	return a.Thunks.AddNewPost.Dispatch(ctx, a.Store, p)
}

// EditPost saves a post on the server and caches the result.
func (a *App) EditPost(ctx context.Context, u PostUpdate) (store.Outcome[Post], error) {
	return a.Thunks.EditPost.Dispatch(ctx, a.Store, u)
}

// UpdatePost edits a cached post without contacting the server.
func (a *App) UpdatePost(ctx context.Context, u PostUpdate) error {
	return a.Store.Dispatch(ctx, PostUpdated{PostUpdate: u})
}

// AddReaction increments a reaction on a cached post. Unknown posts are
// ignored.
func (a *App) AddReaction(ctx context.Context, postID string, kind ReactionKind) error {
	return a.Store.Dispatch(ctx, ReactionAdded{PostID: postID, Reaction: kind})
}

// RemovePost evicts a post from the cache.
func (a *App) RemovePost(ctx context.Context, id string) error {
	return a.Store.Dispatch(ctx, PostRemoved{ID: id})
}
