package selector

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultKeyedSize is the number of parameters a Keyed selector remembers.
const DefaultKeyedSize = 64

type keyedEntry[A, R any] struct {
	input  A
	result R
}

// Keyed derives R from state S and a parameter P, memoizing per parameter.
//
// Each distinct P keeps its own last input and result, so alternating
// between parameters does not evict each other. The table is an LRU: once
// more than its size parameters are in use, the least recently used one
// recomputes on its next call.
type Keyed[S any, P, A comparable, R any] struct {
	mu      sync.Mutex
	in      func(S) A
	combine func(A, P) R
	cache   *lru.Cache[P, keyedEntry[A, R]]

	recomputations atomic.Int64
}

// CreateKeyed builds a parameterized selector with DefaultKeyedSize entries.
func CreateKeyed[S any, P, A comparable, R any](in func(S) A, combine func(A, P) R) *Keyed[S, P, A, R] {
	return CreateKeyedSize(DefaultKeyedSize, in, combine)
}

// CreateKeyedSize builds a parameterized selector remembering size
// parameters. A non-positive size falls back to DefaultKeyedSize.
func CreateKeyedSize[S any, P, A comparable, R any](size int, in func(S) A, combine func(A, P) R) *Keyed[S, P, A, R] {
	if size <= 0 {
		size = DefaultKeyedSize
	}
	cache, _ := lru.New[P, keyedEntry[A, R]](size) // only fails for size <= 0
	return &Keyed[S, P, A, R]{in: in, combine: combine, cache: cache}
}

// Select returns the derived value for state and param.
func (k *Keyed[S, P, A, R]) Select(state S, param P) R {
	input := k.in(state)

	k.mu.Lock()
	defer k.mu.Unlock()

	if e, ok := k.cache.Get(param); ok && e.input == input {
		return e.result
	}
	result := k.combine(input, param)
	k.cache.Add(param, keyedEntry[A, R]{input: input, result: result})
	k.recomputations.Add(1)
	return result
}

// Recomputations returns how many times the combiner has run.
func (k *Keyed[S, P, A, R]) Recomputations() int64 {
	return k.recomputations.Load()
}

// Len returns the number of parameters currently remembered.
func (k *Keyed[S, P, A, R]) Len() int {
	return k.cache.Len()
}
