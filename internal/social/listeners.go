package social

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/feedstore/internal/listener"
	"github.com/roach88/feedstore/internal/store"
)

// PostAddedMessage is shown after a post is created.
const PostAddedMessage = "New post added!"

func registerListeners(m *listener.Middleware[RootState], delay time.Duration) error {
	_, err := m.Start(listener.Listener[RootState]{
		Name:   "post-added-notification",
		Type:   AddNewPostType.Phase(store.PhaseFulfilled),
		Latest: true,
		Effect: func(ctx context.Context, action store.Action, api listener.API[RootState]) error {
			added, ok := action.(store.Fulfilled[NewPost, Post])
			if !ok {
				return fmt.Errorf("unexpected action %T", action)
			}

			n := Notification{
				ID:      added.Meta.RequestID,
				Message: PostAddedMessage,
				Variant: "success",
			}
			if err := api.Dispatch(ctx, NotificationShown{Notification: n}); err != nil {
				return err
			}
			if err := api.Delay(ctx, delay); err != nil {
				return err
			}
			return api.Dispatch(ctx, NotificationDismissed{ID: n.ID})
		},
	})
	return err
}
