package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubTransport_ReplaysInOrderThenRepeats(t *testing.T) {
	stub := NewStubTransport().On("GET", "/items",
		Response{Body: []string{"a"}},
		Response{Err: errors.New("down")},
	)
	ctx := context.Background()

	var out []string
	require.NoError(t, stub.Get(ctx, "/items", &out))
	assert.Equal(t, []string{"a"}, out)

	assert.EqualError(t, stub.Get(ctx, "/items", &out), "down")
	assert.EqualError(t, stub.Get(ctx, "/items", &out), "down", "last response repeats")
	assert.Equal(t, 3, stub.Calls("GET", "/items"))
}

func TestStubTransport_RecordsBodies(t *testing.T) {
	stub := NewStubTransport().On("POST", "/login", Response{})

	require.NoError(t, stub.Post(context.Background(), "/login", map[string]string{"username": "ann"}, nil))

	bodies := stub.Bodies("POST", "/login")
	require.Len(t, bodies, 1)
	assert.JSONEq(t, `{"username":"ann"}`, string(bodies[0]))
}

func TestStubTransport_UnknownRoute(t *testing.T) {
	stub := NewStubTransport()
	err := stub.Get(context.Background(), "/nope", nil)
	assert.ErrorContains(t, err, "no response for GET /nope")
}

func TestStubTransport_GateHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	stub := NewStubTransport().On("GET", "/slow", Response{Gate: gate, Body: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	var out int
	assert.ErrorIs(t, stub.Get(ctx, "/slow", &out), context.DeadlineExceeded)

	close(gate)
	require.NoError(t, stub.Get(context.Background(), "/slow", &out))
	assert.Equal(t, 1, out)
}
