package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned by Dispatch once the loop has stopped.
	ErrStoreClosed = errors.New("store closed")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("store already running")

	// ErrSkipped reports that a thunk's condition declined to run it.
	ErrSkipped = errors.New("skipped by condition")

	// ErrNilAction is returned when dispatching a nil action.
	ErrNilAction = errors.New("nil action")
)

// RuntimeError represents a failure detected while committing an action.
//
// The state is never modified by an action that fails with a RuntimeError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Action is the type of the action being committed.
	Action ActionType

	// FlowToken identifies the flow the action belonged to.
	FlowToken string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeReducerFailed indicates a reducer rejected the action.
	ErrCodeReducerFailed RuntimeErrorCode = "REDUCER_FAILED"

	// ErrCodeQuotaExceeded indicates the flow exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodePanic indicates middleware or a reducer panicked.
	ErrCodePanic RuntimeErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.FlowToken != "" {
		return fmt.Sprintf("%s: %s (action=%s, flow=%s)", e.Code, e.Message, e.Action, e.FlowToken)
	}
	return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsReducerError returns true if the error is a reducer failure.
func IsReducerError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReducerFailed
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewReducerError creates a RuntimeError for a failed reducer.
func NewReducerError(action ActionType, flowToken string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeReducerFailed,
		Message:   cause.Error(),
		Action:    action,
		FlowToken: flowToken,
		Err:       cause,
	}
}

// NewQuotaError creates a RuntimeError for a flow over its step quota.
func NewQuotaError(action ActionType, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeQuotaExceeded,
		Message:   fmt.Sprintf("flow exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		Action:    action,
		FlowToken: cause.FlowToken,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

// IsClosedError reports whether err means the store stopped accepting actions.
func IsClosedError(err error) bool {
	return errors.Is(err, ErrStoreClosed)
}
