package store

import "context"

// Next passes an action to the rest of the middleware chain.
type Next func(ctx context.Context, action Action) error

// MiddlewareAPI is the view of the store handed to middleware.
//
// Dispatch called with the context the middleware received runs the action
// inline through the whole chain. Called with any other context it queues
// like an external dispatch, which is what goroutines started by middleware
// must do.
type MiddlewareAPI[S any] interface {
	GetState() S
	Dispatch(ctx context.Context, action Action) error
}

// Middleware wraps the dispatch chain. It is invoked once, when the store is
// built, and returns the Next that will see every action.
type Middleware[S any] func(api MiddlewareAPI[S], next Next) Next
