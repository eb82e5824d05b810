package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionEnded struct{}

func (sessionEnded) Type() ActionType { return "session/ended" }

type rootState struct {
	Counter counterState
	Other   int
}

func TestNewSlice_Validation(t *testing.T) {
	noop := func(s counterState, _ Action) (counterState, error) { return s, nil }

	tests := []struct {
		name string
		cfg  SliceConfig[counterState]
	}{
		{
			name: "empty name",
			cfg:  SliceConfig[counterState]{},
		},
		{
			name: "async case from another namespace",
			cfg: SliceConfig[counterState]{
				Name:  "counter",
				Async: []Case[counterState]{{Type: "other/load/pending", Reduce: noop}},
			},
		},
		{
			name: "extra case in own namespace",
			cfg: SliceConfig[counterState]{
				Name:  "counter",
				Extra: []Case[counterState]{{Type: "counter/reset", Reduce: noop}},
			},
		},
		{
			name: "duplicate case",
			cfg: SliceConfig[counterState]{
				Name: "counter",
				Extra: []Case[counterState]{
					{Type: "session/ended", Reduce: noop},
					{Type: "session/ended", Reduce: noop},
				},
			},
		},
		{
			name: "case without reducer",
			cfg: SliceConfig[counterState]{
				Name:  "counter",
				Extra: []Case[counterState]{{Type: "session/ended"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSlice(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidSlice)
		})
	}
}

func TestSlice_Routing(t *testing.T) {
	initial := counterState{Status: StatusIdle}
	slice, err := NewSlice(SliceConfig[counterState]{
		Name:    "counter",
		Initial: initial,
		Reduce:  reduceCounter,
		Extra:   []Case[counterState]{Reset[counterState]("session/ended", initial)},
	})
	require.NoError(t, err)
	assert.Equal(t, "counter", slice.Name())
	assert.Equal(t, initial, slice.Initial())

	s, err := slice.Reduce(initial, incremented{By: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)

	s, err = slice.Reduce(s, sessionEnded{})
	require.NoError(t, err)
	assert.Equal(t, initial, s, "declared cross-slice reset")
}

type foreignIncrement struct{}

func (foreignIncrement) Type() ActionType { return "elsewhere/incremented" }

func TestSlice_IgnoresUndeclaredForeignActions(t *testing.T) {
	slice, err := NewSlice(SliceConfig[counterState]{
		Name: "counter",
		Reduce: func(s counterState, _ Action) (counterState, error) {
			s.Count++
			return s, nil
		},
	})
	require.NoError(t, err)

	s, err := slice.Reduce(counterState{}, foreignIncrement{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count, "own reducer never sees foreign actions")
}

func TestMountCombine(t *testing.T) {
	slice, err := NewSlice(SliceConfig[counterState]{Name: "counter", Reduce: reduceCounter})
	require.NoError(t, err)

	other := func(r rootState, a Action) (rootState, error) {
		if _, ok := a.(incremented); ok {
			r.Other++
		}
		return r, nil
	}
	root := Combine(
		Mount(slice,
			func(r rootState) counterState { return r.Counter },
			func(r rootState, s counterState) rootState { r.Counter = s; return r },
		),
		other,
	)

	next, err := root(rootState{}, incremented{By: 2})
	require.NoError(t, err)
	assert.Equal(t, rootState{Counter: counterState{Count: 2}, Other: 1}, next)

	start := rootState{Other: 7}
	next, err = root(start, broken{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBroken))
	assert.Equal(t, start, next)
}

func TestMountedSliceInStore(t *testing.T) {
	slice, err := NewSlice(SliceConfig[counterState]{Name: "counter", Reduce: reduceCounter})
	require.NoError(t, err)

	st := New(rootState{}, Mount(slice,
		func(r rootState) counterState { return r.Counter },
		func(r rootState, s counterState) rootState { r.Counter = s; return r },
	), nil)
	startStore(t, st)

	require.NoError(t, st.Dispatch(context.Background(), incremented{By: 4}))
	assert.Equal(t, 4, st.GetState().Counter.Count)
}
