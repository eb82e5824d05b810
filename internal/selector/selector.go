// Package selector provides memoized derived-data selectors.
//
// A selector is built from input selectors and a combiner. The combiner
// runs only when an input result differs (by ==) from the previous call;
// otherwise the cached result is returned as is. Inputs are expected to be
// cheap projections of state (pointers, scalars) so identity comparison is
// meaningful.
package selector

import (
	"sync"
	"sync/atomic"
)

// Selector derives R from state S with single-entry memoization.
//
// Safe for concurrent use.
type Selector[S, R any] struct {
	mu      sync.Mutex
	compute func(S) (key any, result func() R)
	hasLast bool
	lastKey any
	last    R

	recomputations atomic.Int64
}

// Select returns the derived value for state.
func (s *Selector[S, R]) Select(state S) R {
	key, result := s.compute(state)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLast && s.lastKey == key {
		return s.last
	}
	s.last = result()
	s.lastKey = key
	s.hasLast = true
	s.recomputations.Add(1)
	return s.last
}

// Recomputations returns how many times the combiner has run.
func (s *Selector[S, R]) Recomputations() int64 {
	return s.recomputations.Load()
}

// Create1 builds a selector over one input.
func Create1[S any, A comparable, R any](in func(S) A, combine func(A) R) *Selector[S, R] {
	return &Selector[S, R]{
		compute: func(state S) (any, func() R) {
			a := in(state)
			return a, func() R { return combine(a) }
		},
	}
}

type pair[A, B comparable] struct {
	a A
	b B
}

type triple[A, B, C comparable] struct {
	a A
	b B
	c C
}

// Create2 builds a selector over two inputs.
func Create2[S any, A, B comparable, R any](inA func(S) A, inB func(S) B, combine func(A, B) R) *Selector[S, R] {
	return &Selector[S, R]{
		compute: func(state S) (any, func() R) {
			k := pair[A, B]{inA(state), inB(state)}
			return k, func() R { return combine(k.a, k.b) }
		},
	}
}

// Create3 builds a selector over three inputs.
func Create3[S any, A, B, C comparable, R any](inA func(S) A, inB func(S) B, inC func(S) C, combine func(A, B, C) R) *Selector[S, R] {
	return &Selector[S, R]{
		compute: func(state S) (any, func() R) {
			k := triple[A, B, C]{inA(state), inB(state), inC(state)}
			return k, func() R { return combine(k.a, k.b, k.c) }
		},
	}
}
