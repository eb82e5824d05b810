package store

import "fmt"

// recoverPanic runs fn and converts a panic into an error. Errors returned by
// fn pass through unchanged.
func recoverPanic(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	return fn()
}
