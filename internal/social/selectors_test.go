package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWithPosts(t *testing.T, posts []Post) RootState {
	t.Helper()
	s := InitialState()
	items, err := postsAdapter.SetAll(s.Posts.Items, posts)
	require.NoError(t, err)
	s.Posts.Items = items
	return s
}

func TestSelectors_AllPostsMemoized(t *testing.T) {
	sel := NewSelectors()
	s := stateWithPosts(t, samplePosts())

	first := sel.AllPosts(s)
	require.Len(t, first, 3)

	// Unrelated slices change; the posts entity state does not.
	name := "ann"
	s.Auth.CurrentUsername = &name
	second := sel.AllPosts(s)
	assert.Same(t, &first[0], &second[0])

	next, err := reducePosts(s.Posts, ReactionAdded{PostID: "p1", Reaction: Eyes})
	require.NoError(t, err)
	s.Posts = next
	third := sel.AllPosts(s)
	assert.NotSame(t, &first[0], &third[0])
	assert.Equal(t, 1, third[2].Reactions.Eyes)
}

func TestSelectors_PostsByUser(t *testing.T) {
	sel := NewSelectors()
	s := stateWithPosts(t, samplePosts())

	ann := sel.PostsByUser(s, "ann")
	require.Len(t, ann, 2)
	assert.Equal(t, "p3", ann[0].ID)
	assert.Equal(t, "p1", ann[1].ID)

	again := sel.PostsByUser(s, "ann")
	assert.Same(t, &ann[0], &again[0])

	assert.Empty(t, sel.PostsByUser(s, "nobody"))
	assert.NotNil(t, sel.PostsByUser(s, "nobody"))
}

func TestSelectors_PostsByUserComposesAllPosts(t *testing.T) {
	sel := NewSelectors()
	s := stateWithPosts(t, samplePosts())

	all := sel.AllPosts(s)
	ann := sel.PostsByUser(s, "ann")
	bob := sel.PostsByUser(s, "bob")
	require.Len(t, ann, 2)
	require.Len(t, bob, 1)
	assert.Equal(t, int64(1), sel.allPosts.Recomputations(), "filters reuse the ordered feed")
	assert.Equal(t, int64(2), sel.postsByUser.Recomputations())
	assert.Equal(t, all[0], bob[0])

	next, err := reducePosts(s.Posts, PostRemoved{ID: "p3"})
	require.NoError(t, err)
	s.Posts = next
	ann = sel.PostsByUser(s, "ann")
	require.Len(t, ann, 1)
	assert.Equal(t, "p1", ann[0].ID)
	assert.Equal(t, int64(2), sel.allPosts.Recomputations())
}

func TestSelectors_CurrentUser(t *testing.T) {
	sel := NewSelectors()
	s := InitialState()

	_, ok := sel.CurrentUser(s)
	assert.False(t, ok, "logged out")

	users, err := usersAdapter.SetAll(s.Users.Items, []User{{ID: "ann", Name: "Ann"}})
	require.NoError(t, err)
	s.Users.Items = users

	name := "bob"
	s.Auth.CurrentUsername = &name
	_, ok = sel.CurrentUser(s)
	assert.False(t, ok, "unknown user")

	name = "ann"
	u, ok := sel.CurrentUser(s)
	require.True(t, ok)
	assert.Equal(t, "Ann", u.Name)
}

func TestReduceNotifications_DismissMatchesID(t *testing.T) {
	s, err := reduceNotifications(NotificationsState{}, NotificationShown{Notification{ID: "a", Message: "hi"}})
	require.NoError(t, err)

	s, err = reduceNotifications(s, NotificationDismissed{ID: "b"})
	require.NoError(t, err)
	require.NotNil(t, s.Current, "stale dismiss ignored")

	s, err = reduceNotifications(s, NotificationDismissed{ID: "a"})
	require.NoError(t, err)
	assert.Nil(t, s.Current)
}

func TestReactions(t *testing.T) {
	var r Reactions
	r, err := r.Add(Rocket)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count(Rocket))

	_, err = r.Add("confused")
	assert.ErrorIs(t, err, ErrUnknownReaction)

	k, err := ParseReaction("tada")
	require.NoError(t, err)
	assert.Equal(t, Tada, k)
	_, err = ParseReaction("TADA")
	assert.ErrorIs(t, err, ErrUnknownReaction)
}

func TestPostPath_Escapes(t *testing.T) {
	assert.Equal(t, "/fakeApi/posts/a%2Fb", PostPath("a/b"))
}
