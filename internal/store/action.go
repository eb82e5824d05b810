package store

import "strings"

// ActionType names an action, namespaced by the slice that owns it
// ("posts/reactionAdded", "auth/login/fulfilled").
type ActionType string

// Namespace returns the segment before the first slash.
func (t ActionType) Namespace() string {
	ns, _, _ := strings.Cut(string(t), "/")
	return ns
}

// Phase returns the lifecycle action type for t.
func (t ActionType) Phase(p Phase) ActionType {
	return t + "/" + ActionType(p)
}

// Action is a dispatched state transition request.
//
// Each slice defines its actions as small structs and handles them with a
// type switch; Type only routes the action to its owner.
type Action interface {
	Type() ActionType
}

// Phase is a stage of an async lifecycle.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Status is the request status a slice keeps for its async fetches.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
)
