// Package store implements the single-writer state container.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Store.Run drains a FIFO queue of dispatched actions on one goroutine. Each
// action flows through the middleware chain and then the root reducer; the
// resulting state is published atomically. Readers call GetState from any
// goroutine and always observe a fully committed state.
//
// Dispatch Flow:
//  1. Dispatch enqueues an envelope and blocks until its commit finishes
//  2. Run dequeues envelopes one at a time
//  3. An optional guard is evaluated against the current state (thunk conditions)
//  4. The middleware chain runs, ending in the reducer
//  5. The new state is stored, stamped with the logical clock, and subscribers
//     are notified
//
// Dispatches issued by middleware while the loop is processing an action run
// inline instead of re-entering the queue. The loop detects this through a
// marker carried in the context it hands to middleware, so middleware must
// pass that context along.
//
// Async Lifecycle:
// AsyncThunk wraps an external call in pending / fulfilled / rejected
// actions. The condition check and the pending commit happen in the same
// loop step, so two concurrent invocations cannot both pass a condition that
// looks at the status the pending action sets.
//
// Flow Quota:
// Every externally dispatched action carries a flow token in its context.
// Listener effects inherit the token of the action that triggered them, so a
// cascade of dispatches shares one flow. A flow may commit at most MaxSteps
// actions.
package store
