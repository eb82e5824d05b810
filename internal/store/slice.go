package store

import (
	"errors"
	"fmt"
)

// ErrInvalidSlice is returned by NewSlice for a malformed configuration.
var ErrInvalidSlice = errors.New("invalid slice")

// ErrActionMismatch is returned when a case receives an action of an
// unexpected Go type for its action type.
var ErrActionMismatch = errors.New("action does not match case")

// Case reduces one exact action type.
type Case[S any] struct {
	Type   ActionType
	Reduce func(state S, action Action) (S, error)
}

// Reset returns a case that restores initial when t is committed.
func Reset[S any](t ActionType, initial S) Case[S] {
	return Case[S]{
		Type: t,
		Reduce: func(S, Action) (S, error) {
			return initial, nil
		},
	}
}

// SliceConfig declares a slice of the root state.
type SliceConfig[S any] struct {
	// Name is the action namespace the slice owns.
	Name string

	// Initial is the slice state before any action.
	Initial S

	// Reduce handles the slice's own synchronous actions, usually with a type
	// switch. It only sees actions in the slice's namespace that no case
	// claimed, and returns the state unchanged for unknown variants.
	Reduce func(state S, action Action) (S, error)

	// Async holds lifecycle cases for thunks in the slice's namespace.
	Async []Case[S]

	// Extra holds reactions to actions owned by other slices.
	Extra []Case[S]
}

// Slice is a named piece of state with its own reducer.
type Slice[S any] struct {
	name    string
	initial S
	reduce  func(S, Action) (S, error)
	cases   map[ActionType]func(S, Action) (S, error)
}

// NewSlice validates cfg and builds the slice.
//
// Async cases must be in the slice's namespace and Extra cases must not be:
// a slice reacting to another slice's action has to declare it as Extra.
func NewSlice[S any](cfg SliceConfig[S]) (*Slice[S], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidSlice)
	}

	s := &Slice[S]{
		name:    cfg.Name,
		initial: cfg.Initial,
		reduce:  cfg.Reduce,
		cases:   make(map[ActionType]func(S, Action) (S, error)),
	}

	add := func(c Case[S], foreign bool) error {
		if c.Reduce == nil {
			return fmt.Errorf("%w: %s: case %s has no reducer", ErrInvalidSlice, cfg.Name, c.Type)
		}
		owned := c.Type.Namespace() == cfg.Name
		if foreign && owned {
			return fmt.Errorf("%w: %s: extra case %s is in the slice's own namespace", ErrInvalidSlice, cfg.Name, c.Type)
		}
		if !foreign && !owned {
			return fmt.Errorf("%w: %s: async case %s belongs to another slice", ErrInvalidSlice, cfg.Name, c.Type)
		}
		if _, dup := s.cases[c.Type]; dup {
			return fmt.Errorf("%w: %s: duplicate case %s", ErrInvalidSlice, cfg.Name, c.Type)
		}
		s.cases[c.Type] = c.Reduce
		return nil
	}

	for _, c := range cfg.Async {
		if err := add(c, false); err != nil {
			return nil, err
		}
	}
	for _, c := range cfg.Extra {
		if err := add(c, true); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Name returns the slice's namespace.
func (s *Slice[S]) Name() string {
	return s.name
}

// Initial returns the slice's initial state.
func (s *Slice[S]) Initial() S {
	return s.initial
}

// Reduce applies action to state.
func (s *Slice[S]) Reduce(state S, action Action) (S, error) {
	if fn, ok := s.cases[action.Type()]; ok {
		return fn(state, action)
	}
	if s.reduce != nil && action.Type().Namespace() == s.name {
		return s.reduce(state, action)
	}
	return state, nil
}

// Mount lifts a slice reducer onto the root state R.
func Mount[R, S any](slice *Slice[S], get func(R) S, set func(R, S) R) Reducer[R] {
	return func(root R, action Action) (R, error) {
		next, err := slice.Reduce(get(root), action)
		if err != nil {
			return root, fmt.Errorf("%s: %w", slice.name, err)
		}
		return set(root, next), nil
	}
}

// Combine runs reducers in order. The first error aborts the whole action.
func Combine[R any](reducers ...Reducer[R]) Reducer[R] {
	return func(root R, action Action) (R, error) {
		next := root
		for _, r := range reducers {
			var err error
			if next, err = r(next, action); err != nil {
				return root, err
			}
		}
		return next, nil
	}
}
