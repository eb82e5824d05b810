package social

import "github.com/roach88/feedstore/internal/store"

// AuthState holds the logged-in username, nil when logged out.
type AuthState struct {
	CurrentUsername *string `json:"currentUsername"`
}

func newAuthSlice(th *Thunks) (*store.Slice[AuthState], error) {
	return store.NewSlice(store.SliceConfig[AuthState]{
		Name:    "auth",
		Initial: AuthState{},
		Async: []store.Case[AuthState]{
			store.OnFulfilled(th.Login, func(s AuthState, a store.Fulfilled[string, string]) (AuthState, error) {
				name := a.Payload
				s.CurrentUsername = &name
				return s, nil
			}),
			store.OnFulfilled(th.Logout, func(s AuthState, _ store.Fulfilled[struct{}, struct{}]) (AuthState, error) {
				s.CurrentUsername = nil
				return s, nil
			}),
		},
	})
}
