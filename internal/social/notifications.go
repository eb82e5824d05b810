package social

import "github.com/roach88/feedstore/internal/store"

const (
	NotificationShownType     store.ActionType = "notifications/shown"
	NotificationDismissedType store.ActionType = "notifications/dismissed"
)

// NotificationShown replaces the current notification.
type NotificationShown struct {
	Notification
}

func (NotificationShown) Type() store.ActionType { return NotificationShownType }

// NotificationDismissed clears the current notification if its id matches.
type NotificationDismissed struct {
	ID string `json:"id"`
}

func (NotificationDismissed) Type() store.ActionType { return NotificationDismissedType }

// NotificationsState holds at most one visible notification.
type NotificationsState struct {
	Current *Notification `json:"current"`
}

func reduceNotifications(s NotificationsState, action store.Action) (NotificationsState, error) {
	switch a := action.(type) {
	case NotificationShown:
		n := a.Notification
		s.Current = &n
	case NotificationDismissed:
		if s.Current != nil && s.Current.ID == a.ID {
			s.Current = nil
		}
	}
	return s, nil
}

func newNotificationsSlice() (*store.Slice[NotificationsState], error) {
	return store.NewSlice(store.SliceConfig[NotificationsState]{
		Name:    "notifications",
		Initial: NotificationsState{},
		Reduce:  reduceNotifications,
	})
}
