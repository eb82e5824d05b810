// Package entity implements normalized entity collections.
//
// An Adapter owns the rules for one record type: how to derive a record's
// id and how records are ordered. It exposes pure operations that take a
// *State and return the resulting *State, so slice reducers can apply them
// without ever mutating shared data.
package entity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrDuplicateID is returned when inserting a record whose id already exists.
	ErrDuplicateID = errors.New("duplicate entity id")

	// ErrEmptyID is returned when a record's id is empty.
	ErrEmptyID = errors.New("empty entity id")

	// ErrIDChanged is returned when an update rewrites the record's id.
	ErrIDChanged = errors.New("entity id changed by update")
)

// Adapter performs normalized operations for records of type T.
//
// Adapters hold no mutable state and are safe for concurrent use.
type Adapter[T any] struct {
	selectID func(T) string
	compare  func(a, b T) int
}

// NewAdapter creates an adapter.
//
// compare orders records (negative when a sorts first). Ties are broken by
// id so the order is total. A nil compare keeps insertion order.
func NewAdapter[T any](selectID func(T) string, compare func(a, b T) int) *Adapter[T] {
	return &Adapter[T]{selectID: selectID, compare: compare}
}

// ID returns the id of a record.
func (a *Adapter[T]) ID(rec T) string {
	return a.selectID(rec)
}

// Initial returns an empty state.
func (a *Adapter[T]) Initial() *State[T] {
	return &State[T]{ids: []string{}, entities: map[string]T{}}
}

// SetAll replaces the whole collection with records. When records repeats an
// id, the last occurrence wins.
func (a *Adapter[T]) SetAll(_ *State[T], records []T) (*State[T], error) {
	next := a.Initial()
	for _, rec := range records {
		id := a.selectID(rec)
		if id == "" {
			return nil, ErrEmptyID
		}
		if _, ok := next.entities[id]; !ok {
			next.ids = append(next.ids, id)
		}
		next.entities[id] = rec
	}
	a.sort(next)
	return next, nil
}

// AddOne inserts a record. It fails with ErrDuplicateID if the id is taken.
func (a *Adapter[T]) AddOne(s *State[T], rec T) (*State[T], error) {
	return a.AddMany(s, []T{rec})
}

// AddMany inserts records. Nothing is inserted if any id is empty, already
// present, or repeated within records.
func (a *Adapter[T]) AddMany(s *State[T], records []T) (*State[T], error) {
	if len(records) == 0 {
		return s, nil
	}
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := a.selectID(rec)
		if id == "" {
			return s, ErrEmptyID
		}
		if _, dup := seen[id]; dup || s.Has(id) {
			return s, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}

	next := a.clone(s)
	for _, rec := range records {
		id := a.selectID(rec)
		next.ids = append(next.ids, id)
		next.entities[id] = rec
	}
	a.sort(next)
	return next, nil
}

// UpdateOne applies change to a copy of the record with the given id.
// A missing id is a no-op and returns s unchanged.
func (a *Adapter[T]) UpdateOne(s *State[T], id string, change func(*T)) (*State[T], error) {
	rec, ok := s.Get(id)
	if !ok {
		return s, nil
	}
	change(&rec)
	if got := a.selectID(rec); got != id {
		return s, fmt.Errorf("%w: %s -> %s", ErrIDChanged, id, got)
	}

	next := a.clone(s)
	next.entities[id] = rec
	a.sort(next)
	return next, nil
}

// UpsertOne inserts the record, or replaces the existing record with the
// same id.
func (a *Adapter[T]) UpsertOne(s *State[T], rec T) (*State[T], error) {
	id := a.selectID(rec)
	if id == "" {
		return s, ErrEmptyID
	}
	next := a.clone(s)
	if _, ok := next.entities[id]; !ok {
		next.ids = append(next.ids, id)
	}
	next.entities[id] = rec
	a.sort(next)
	return next, nil
}

// RemoveOne deletes the record with the given id. A missing id is a no-op.
func (a *Adapter[T]) RemoveOne(s *State[T], id string) *State[T] {
	if !s.Has(id) {
		return s
	}
	next := a.clone(s)
	delete(next.entities, id)
	next.ids = slices.DeleteFunc(next.ids, func(x string) bool { return x == id })
	return next
}

// RemoveAll empties the collection.
func (a *Adapter[T]) RemoveAll(s *State[T]) *State[T] {
	if s.Len() == 0 && s != nil {
		return s
	}
	return a.Initial()
}

func (a *Adapter[T]) clone(s *State[T]) *State[T] {
	next := &State[T]{
		ids:      make([]string, 0, s.Len()+1),
		entities: make(map[string]T, s.Len()+1),
	}
	if s == nil {
		return next
	}
	next.ids = append(next.ids, s.ids...)
	for id, rec := range s.entities {
		next.entities[id] = rec
	}
	return next
}

func (a *Adapter[T]) sort(s *State[T]) {
	if a.compare == nil {
		return
	}
	slices.SortStableFunc(s.ids, func(x, y string) int {
		if c := a.compare(s.entities[x], s.entities[y]); c != 0 {
			return c
		}
		return strings.Compare(x, y)
	})
}
