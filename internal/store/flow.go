package store

import "context"

type flowKey struct{}

// WithFlow returns a context carrying the flow token.
func WithFlow(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, flowKey{}, token)
}

// FlowFrom returns the flow token carried by ctx.
func FlowFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(flowKey{}).(string)
	return token, ok && token != ""
}
