package social

import (
	"github.com/roach88/feedstore/internal/entity"
	"github.com/roach88/feedstore/internal/selector"
	"github.com/roach88/feedstore/internal/store"
)

// Selectors derive read models from RootState. Each App owns one set so
// memo caches are never shared between stores.
type Selectors struct {
	allPosts    *selector.Selector[RootState, []Post]
	postIDs     *selector.Selector[RootState, []string]
	allUsers    *selector.Selector[RootState, []User]
	postsByUser *selector.Keyed[RootState, string, *entity.State[Post], []Post]
}

func postItems(s RootState) *entity.State[Post] { return s.Posts.Items }
func userItems(s RootState) *entity.State[User] { return s.Users.Items }

// NewSelectors creates a fresh set of memoized selectors.
func NewSelectors() *Selectors {
	s := &Selectors{
		allPosts: selector.Create1(postItems, func(items *entity.State[Post]) []Post {
			return items.All()
		}),
		postIDs: selector.Create1(postItems, func(items *entity.State[Post]) []string {
			return items.IDs()
		}),
		allUsers: selector.Create1(userItems, func(items *entity.State[User]) []User {
			return items.All()
		}),
	}
	// Filtered views start from the memoized feed. allPosts reads nothing
	// but Posts.Items, so a root holding only items selects the same list.
	s.postsByUser = selector.CreateKeyed(postItems, func(items *entity.State[Post], userID string) []Post {
		all := s.allPosts.Select(RootState{Posts: PostsState{Items: items}})
		out := []Post{}
		for _, p := range all {
			if p.AuthorID == userID {
				out = append(out, p)
			}
		}
		return out
	})
	return s
}

// AllPosts returns the cached posts, newest first. The slice is shared
// between calls until the posts change and must not be modified.
func (s *Selectors) AllPosts(state RootState) []Post {
	return s.allPosts.Select(state)
}

// PostIDs returns the post ids, newest first.
func (s *Selectors) PostIDs(state RootState) []string {
	return s.postIDs.Select(state)
}

// PostByID returns one post.
func (s *Selectors) PostByID(state RootState, id string) (Post, bool) {
	return state.Posts.Items.Get(id)
}

// PostsByUser returns the posts written by userID, newest first.
func (s *Selectors) PostsByUser(state RootState, userID string) []Post {
	return s.postsByUser.Select(state, userID)
}

// PostsStatus returns the status of the feed fetch.
func (s *Selectors) PostsStatus(state RootState) store.Status {
	return state.Posts.Status
}

// PostsError returns the last feed fetch error, or nil.
func (s *Selectors) PostsError(state RootState) *string {
	return state.Posts.Error
}

// AllUsers returns the cached users, by name.
func (s *Selectors) AllUsers(state RootState) []User {
	return s.allUsers.Select(state)
}

// UserByID returns one user.
func (s *Selectors) UserByID(state RootState, id string) (User, bool) {
	return state.Users.Items.Get(id)
}

// UsersStatus returns the status of the users fetch.
func (s *Selectors) UsersStatus(state RootState) store.Status {
	return state.Users.Status
}

// CurrentUsername returns the logged-in username, or nil.
func (s *Selectors) CurrentUsername(state RootState) *string {
	return state.Auth.CurrentUsername
}

// CurrentUser returns the user record of the logged-in account. Usernames
// double as user ids.
func (s *Selectors) CurrentUser(state RootState) (User, bool) {
	name := state.Auth.CurrentUsername
	if name == nil {
		return User{}, false
	}
	return s.UserByID(state, *name)
}

// Notification returns the visible notification, or nil.
func (s *Selectors) Notification(state RootState) *Notification {
	return state.Notifications.Current
}
