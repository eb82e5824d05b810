package entity

import "encoding/json"

// State is a normalized collection: records keyed by id plus the ordered
// list of ids.
//
// A State is never mutated after an Adapter hands it out. Every change
// produces a new *State; an operation that changes nothing returns the
// pointer it was given. Consumers can therefore compare pointers to detect
// change.
//
// INVARIANTS:
//   - ids contains exactly the keys of entities
//   - ids contains no duplicates
//   - ids order follows the adapter's comparator (ties broken by id)
//
// A nil *State behaves like an empty one.
type State[T any] struct {
	ids      []string
	entities map[string]T
}

// Len returns the number of records.
func (s *State[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Has reports whether a record with the given id exists.
func (s *State[T]) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entities[id]
	return ok
}

// Get returns the record for id.
func (s *State[T]) Get(id string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	rec, ok := s.entities[id]
	return rec, ok
}

// IDs returns a copy of the ordered id list.
func (s *State[T]) IDs() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// All returns the records in id order.
func (s *State[T]) All() []T {
	if s == nil {
		return []T{}
	}
	out := make([]T, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entities[id])
	}
	return out
}

// Entities returns a copy of the id-to-record map.
func (s *State[T]) Entities() map[string]T {
	out := make(map[string]T, s.Len())
	if s == nil {
		return out
	}
	for id, rec := range s.entities {
		out[id] = rec
	}
	return out
}

// MarshalJSON encodes the state as {"ids": [...], "entities": {...}}.
func (s *State[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IDs      []string     `json:"ids"`
		Entities map[string]T `json:"entities"`
	}{
		IDs:      s.IDs(),
		Entities: s.Entities(),
	})
}
