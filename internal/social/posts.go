package social

import (
	"github.com/roach88/feedstore/internal/entity"
	"github.com/roach88/feedstore/internal/store"
)

// Synchronous post actions.
const (
	PostUpdatedType   store.ActionType = "posts/postUpdated"
	ReactionAddedType store.ActionType = "posts/reactionAdded"
	PostRemovedType   store.ActionType = "posts/postRemoved"
)

// PostUpdated edits a cached post locally.
type PostUpdated struct {
	PostUpdate
}

func (PostUpdated) Type() store.ActionType { return PostUpdatedType }

// ReactionAdded increments one reaction counter of a cached post.
type ReactionAdded struct {
	PostID   string       `json:"postId"`
	Reaction ReactionKind `json:"reaction"`
}

func (ReactionAdded) Type() store.ActionType { return ReactionAddedType }

// PostRemoved evicts a post from the cache.
type PostRemoved struct {
	ID string `json:"id"`
}

func (PostRemoved) Type() store.ActionType { return PostRemovedType }

// postsAdapter orders posts newest first.
var postsAdapter = entity.NewAdapter(
	func(p Post) string { return p.ID },
	func(a, b Post) int { return b.CreatedAt.Compare(a.CreatedAt) },
)

// PostsState is the posts cache plus the status of the feed fetch.
type PostsState struct {
	Items  *entity.State[Post] `json:"items"`
	Status store.Status        `json:"status"`
	Error  *string             `json:"error"`
}

func initialPostsState() PostsState {
	return PostsState{Items: postsAdapter.Initial(), Status: store.StatusIdle}
}

func reducePosts(s PostsState, action store.Action) (PostsState, error) {
	var (
		next *entity.State[Post]
		err  error
	)

	switch a := action.(type) {
	case PostUpdated:
		next, err = postsAdapter.UpdateOne(s.Items, a.ID, func(p *Post) {
			p.Title = a.Title
			p.Content = a.Content
		})
	case ReactionAdded:
		if !a.Reaction.Valid() {
			return s, ErrUnknownReaction
		}
		next, err = postsAdapter.UpdateOne(s.Items, a.PostID, func(p *Post) {
			p.Reactions, _ = p.Reactions.Add(a.Reaction)
		})
	case PostRemoved:
		next = postsAdapter.RemoveOne(s.Items, a.ID)
	default:
		return s, nil
	}

	if err != nil {
		return s, err
	}
	s.Items = next
	return s, nil
}

func newPostsSlice(th *Thunks) (*store.Slice[PostsState], error) {
	initial := initialPostsState()

	return store.NewSlice(store.SliceConfig[PostsState]{
		Name:    "posts",
		Initial: initial,
		Reduce:  reducePosts,
		Async: []store.Case[PostsState]{
			store.OnPending(th.FetchPosts, func(s PostsState, _ store.Pending[struct{}]) (PostsState, error) {
				s.Status = store.StatusPending
				s.Error = nil
				return s, nil
			}),
			store.OnFulfilled(th.FetchPosts, func(s PostsState, a store.Fulfilled[struct{}, []Post]) (PostsState, error) {
				items, err := postsAdapter.SetAll(s.Items, a.Payload)
				if err != nil {
					return s, err
				}
				s.Items = items
				s.Status = store.StatusSucceeded
				return s, nil
			}),
			store.OnRejected(th.FetchPosts, func(s PostsState, a store.Rejected[struct{}]) (PostsState, error) {
				msg := a.Error
				s.Status = store.StatusRejected
				s.Error = &msg
				return s, nil
			}),
			// A concurrent fetch may already have cached the new post.
			store.OnFulfilled(th.AddNewPost, func(s PostsState, a store.Fulfilled[NewPost, Post]) (PostsState, error) {
				if s.Items.Has(a.Payload.ID) {
					return s, nil
				}
				items, err := postsAdapter.AddOne(s.Items, a.Payload)
				if err != nil {
					return s, err
				}
				s.Items = items
				return s, nil
			}),
			store.OnFulfilled(th.EditPost, func(s PostsState, a store.Fulfilled[PostUpdate, Post]) (PostsState, error) {
				items, err := postsAdapter.UpsertOne(s.Items, a.Payload)
				if err != nil {
					return s, err
				}
				s.Items = items
				return s, nil
			}),
		},
		// Cached posts belong to the session: logging out wipes them.
		Extra: []store.Case[PostsState]{
			store.Reset(LogoutType.Phase(store.PhaseFulfilled), initial),
		},
	})
}
