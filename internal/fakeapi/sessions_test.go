package fakeapi

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessions(t *testing.T, sessions Sessions) {
	t.Helper()
	ctx := context.Background()

	token, err := sessions.Create(ctx, "ann")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	name, err := sessions.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ann", name)

	require.NoError(t, sessions.Revoke(ctx, token))
	_, err = sessions.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = sessions.Lookup(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSQLiteSessions(t *testing.T) {
	testSessions(t, NewSQLiteSessions(createTestStorage(t)))
}

func TestSQLiteSessions_Expire(t *testing.T) {
	sessions := NewSQLiteSessions(createTestStorage(t))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }
	ctx := context.Background()

	token, err := sessions.Create(ctx, "ann")
	require.NoError(t, err)

	now = now.Add(SessionTTL + time.Second)
	_, err = sessions.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)

	sessions, err := NewRedisSessions(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer sessions.Close()

	testSessions(t, sessions)
}

func TestRedisSessions_Expire(t *testing.T) {
	mr := miniredis.RunT(t)

	sessions, err := NewRedisSessions(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer sessions.Close()
	ctx := context.Background()

	token, err := sessions.Create(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, SessionTTL, mr.TTL("feed:session:"+token))

	mr.FastForward(SessionTTL + time.Second)
	_, err = sessions.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestNewRedisSessions_BadURL(t *testing.T) {
	_, err := NewRedisSessions(context.Background(), "not a url")
	assert.Error(t, err)
}
