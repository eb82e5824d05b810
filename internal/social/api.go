package social

import (
	"context"
	"net/url"
)

// Transport is the HTTP client the thunks call.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// Server endpoints.
const (
	PostsPath  = "/fakeApi/posts"
	UsersPath  = "/fakeApi/users"
	LoginPath  = "/fakeApi/login"
	LogoutPath = "/fakeApi/logout"
)

// PostPath returns the endpoint for a single post.
func PostPath(id string) string {
	return PostsPath + "/" + url.PathEscape(id)
}

// LoginRequest is the body of POST /fakeApi/login.
type LoginRequest struct {
	Username string `json:"username"`
}
