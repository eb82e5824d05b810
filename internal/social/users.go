package social

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/feedstore/internal/entity"
	"github.com/roach88/feedstore/internal/store"
)

// Collators keep scratch buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any { return collate.New(language.English, collate.IgnoreCase) },
}

func compareUserNames(a, b User) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a.Name, b.Name)
}

// usersAdapter orders users alphabetically by display name.
var usersAdapter = entity.NewAdapter(func(u User) string { return u.ID }, compareUserNames)

// UsersState is the users cache plus the status of the users fetch.
type UsersState struct {
	Items  *entity.State[User] `json:"items"`
	Status store.Status        `json:"status"`
	Error  *string             `json:"error"`
}

func initialUsersState() UsersState {
	return UsersState{Items: usersAdapter.Initial(), Status: store.StatusIdle}
}

func newUsersSlice(th *Thunks) (*store.Slice[UsersState], error) {
	return store.NewSlice(store.SliceConfig[UsersState]{
		Name:    "users",
		Initial: initialUsersState(),
		Async: []store.Case[UsersState]{
			store.OnPending(th.FetchUsers, func(s UsersState, _ store.Pending[struct{}]) (UsersState, error) {
				s.Status = store.StatusPending
				s.Error = nil
				return s, nil
			}),
			store.OnFulfilled(th.FetchUsers, func(s UsersState, a store.Fulfilled[struct{}, []User]) (UsersState, error) {
				items, err := usersAdapter.SetAll(s.Items, a.Payload)
				if err != nil {
					return s, err
				}
				s.Items = items
				s.Status = store.StatusSucceeded
				return s, nil
			}),
			store.OnRejected(th.FetchUsers, func(s UsersState, a store.Rejected[struct{}]) (UsersState, error) {
				msg := a.Error
				s.Status = store.StatusRejected
				s.Error = &msg
				return s, nil
			}),
		},
	})
}
