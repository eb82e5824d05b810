package fakeapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionTTL is how long a login lasts.
const SessionTTL = 24 * time.Hour

// ErrNoSession is returned when a token is unknown or expired.
var ErrNoSession = errors.New("session not found or expired")

// Sessions stores login sessions keyed by an opaque token.
type Sessions interface {
	Create(ctx context.Context, username string) (token string, err error)
	Lookup(ctx context.Context, token string) (username string, err error)
	Revoke(ctx context.Context, token string) error
}

func newToken() string {
	return uuid.NewString()
}

// SQLiteSessions keeps sessions in the sessions table.
type SQLiteSessions struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteSessions uses the storage's database.
func NewSQLiteSessions(s *Storage) *SQLiteSessions {
	return &SQLiteSessions{db: s.DB(), now: time.Now}
}

func (s *SQLiteSessions) Create(ctx context.Context, username string) (string, error) {
	token := newToken()
	expires := s.now().Add(SessionTTL).UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, username, expires_at) VALUES (?, ?, ?)
	`, token, username, expires); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (s *SQLiteSessions) Lookup(ctx context.Context, token string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, `
		SELECT username FROM sessions WHERE token = ? AND expires_at > ?
	`, token, s.now().UTC().Format(timeLayout)).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return username, nil
}

func (s *SQLiteSessions) Revoke(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RedisSessions keeps sessions in Redis with a TTL per key.
type RedisSessions struct {
	client *redis.Client
	prefix string
}

// NewRedisSessions connects to redisURL and checks the connection.
func NewRedisSessions(ctx context.Context, redisURL string) (*RedisSessions, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSessionsWithClient(client), nil
}

// NewRedisSessionsWithClient wraps an existing client.
func NewRedisSessionsWithClient(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client, prefix: "feed:session:"}
}

func (s *RedisSessions) key(token string) string {
	return s.prefix + token
}

func (s *RedisSessions) Create(ctx context.Context, username string) (string, error) {
	token := newToken()
	if err := s.client.Set(ctx, s.key(token), username, SessionTTL).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (s *RedisSessions) Lookup(ctx context.Context, token string) (string, error) {
	username, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return username, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSessions) Close() error {
	return s.client.Close()
}
