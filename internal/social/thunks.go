package social

import (
	"context"
	"errors"

	"github.com/roach88/feedstore/internal/store"
)

// Thunk action types.
const (
	LoginType      store.ActionType = "auth/login"
	LogoutType     store.ActionType = "auth/logout"
	FetchPostsType store.ActionType = "posts/fetchPosts"
	AddNewPostType store.ActionType = "posts/addNewPost"
	EditPostType   store.ActionType = "posts/editPost"
	FetchUsersType store.ActionType = "users/fetchUsers"
)

// Thunks are the async operations of the feed, bound to one transport.
type Thunks struct {
	Login      *store.AsyncThunk[RootState, string, string]
	Logout     *store.AsyncThunk[RootState, struct{}, struct{}]
	FetchPosts *store.AsyncThunk[RootState, struct{}, []Post]
	AddNewPost *store.AsyncThunk[RootState, NewPost, Post]
	EditPost   *store.AsyncThunk[RootState, PostUpdate, Post]
	FetchUsers *store.AsyncThunk[RootState, struct{}, []User]
}

func newThunks(tr Transport) *Thunks {
	return &Thunks{
		Login: &store.AsyncThunk[RootState, string, string]{
			Type: LoginType,
			Payload: func(ctx context.Context, username string, _ store.ThunkAPI[RootState]) (string, error) {
				if username == "" {
					return "", errors.New("username is required")
				}
				if err := tr.Post(ctx, LoginPath, LoginRequest{Username: username}, nil); err != nil {
					return "", err
				}
				return username, nil
			},
		},

		Logout: &store.AsyncThunk[RootState, struct{}, struct{}]{
			Type: LogoutType,
			Payload: func(ctx context.Context, _ struct{}, _ store.ThunkAPI[RootState]) (struct{}, error) {
				return struct{}{}, tr.Post(ctx, LogoutPath, struct{}{}, nil)
			},
		},

		// Posts are fetched once per session: the condition skips while a
		// fetch is in flight or after one succeeded, but allows a retry after
		// a rejection.
		FetchPosts: &store.AsyncThunk[RootState, struct{}, []Post]{
			Type: FetchPostsType,
			Payload: func(ctx context.Context, _ struct{}, _ store.ThunkAPI[RootState]) ([]Post, error) {
				var posts []Post
				if err := tr.Get(ctx, PostsPath, &posts); err != nil {
					return nil, err
				}
				return posts, nil
			},
			Condition: func(s RootState, _ struct{}) bool {
				return s.Posts.Status != store.StatusPending && s.Posts.Status != store.StatusSucceeded
			},
		},

		AddNewPost: &store.AsyncThunk[RootState, NewPost, Post]{
			Type: AddNewPostType,
			Payload: func(ctx context.Context, req NewPost, _ store.ThunkAPI[RootState]) (Post, error) {
				if err := req.Validate(); err != nil {
					return Post{}, err
				}
				var created Post
				if err := tr.Post(ctx, PostsPath, req, &created); err != nil {
					return Post{}, err
				}
				return created, nil
			},
		},

		EditPost: &store.AsyncThunk[RootState, PostUpdate, Post]{
			Type: EditPostType,
			Payload: func(ctx context.Context, req PostUpdate, _ store.ThunkAPI[RootState]) (Post, error) {
				if req.ID == "" {
					return Post{}, errors.New("post id is required")
				}
				var updated Post
				if err := tr.Post(ctx, PostPath(req.ID), req, &updated); err != nil {
					return Post{}, err
				}
				return updated, nil
			},
		},

		// Users refetch on demand; only concurrent duplicates are dropped.
		FetchUsers: &store.AsyncThunk[RootState, struct{}, []User]{
			Type: FetchUsersType,
			Payload: func(ctx context.Context, _ struct{}, _ store.ThunkAPI[RootState]) ([]User, error) {
				var users []User
				if err := tr.Get(ctx, UsersPath, &users); err != nil {
					return nil, err
				}
				return users, nil
			},
			Condition: func(s RootState, _ struct{}) bool {
				return s.Users.Status != store.StatusPending
			},
		},
	}
}
