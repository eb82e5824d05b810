package fakeapi

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/feedstore/internal/social"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Index on posts(created_at DESC, id) for the feed listing
const currentSchemaVersion = 1

// timeLayout is how created_at is stored. Fixed-width UTC so string order
// matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Storage holds posts and users in SQLite.
type Storage struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path, applying pragmas and
// migrations. Use ":memory:" for a throwaway database.
func Open(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle, for the SQLite session store.
func (s *Storage) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_posts_feed
		ON posts(created_at DESC, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// ListPosts returns every post, newest first.
//
// Returns an empty slice (not nil) when there are no posts.
func (s *Storage) ListPosts(ctx context.Context) ([]social.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, user_id, created_at, reactions
		FROM posts
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []social.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// GetPost returns one post or ErrNotFound.
func (s *Storage) GetPost(ctx context.Context, id string) (social.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, user_id, created_at, reactions
		FROM posts
		WHERE id = ?
	`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return social.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, err
}

// InsertPost stores a new post. The author must exist.
func (s *Storage) InsertPost(ctx context.Context, p social.Post) error {
	reactions, err := json.Marshal(p.Reactions)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, content, user_id, created_at, reactions)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.Title,
		p.Content,
		p.AuthorID,
		p.CreatedAt.UTC().Format(timeLayout),
		string(reactions),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// UpdatePost changes a post's title and content and returns the result.
func (s *Storage) UpdatePost(ctx context.Context, u social.PostUpdate) (social.Post, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET title = ?, content = ? WHERE id = ?
	`, u.Title, u.Content, u.ID)
	if err != nil {
		return social.Post{}, fmt.Errorf("update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return social.Post{}, fmt.Errorf("update post: %w", err)
	}
	if n == 0 {
		return social.Post{}, fmt.Errorf("post %s: %w", u.ID, ErrNotFound)
	}
	return s.GetPost(ctx, u.ID)
}

// ListUsers returns every user ordered by name, case-insensitively.
func (s *Storage) ListUsers(ctx context.Context) ([]social.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM users
		ORDER BY name COLLATE NOCASE ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []social.User{}
	for rows.Next() {
		var u social.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpsertUser creates a user or renames an existing one.
func (s *Storage) UpsertUser(ctx context.Context, u social.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, u.ID, u.Name)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// HasUser reports whether a user id exists.
func (s *Storage) HasUser(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (social.Post, error) {
	var (
		p         social.Post
		createdAt string
		reactions string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &createdAt, &reactions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan post: %w", err)
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return p, fmt.Errorf("post %s: parse created_at: %w", p.ID, err)
	}
	p.CreatedAt = t

	if err := json.Unmarshal([]byte(reactions), &p.Reactions); err != nil {
		return p, fmt.Errorf("post %s: decode reactions: %w", p.ID, err)
	}
	return p, nil
}
