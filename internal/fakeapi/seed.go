package fakeapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/feedstore/internal/social"
)

//go:embed seed_schema.cue
var seedSchema string

//go:embed default_seed.cue
var defaultSeed []byte

// Seed is the initial content of a fresh server.
type Seed struct {
	Users []social.User `json:"users"`
	Posts []social.Post `json:"posts"`
}

// SeedError is a seed validation failure with its source position.
type SeedError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SeedError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SeedError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// DefaultSeed returns the built-in demo content.
func DefaultSeed() (*Seed, error) {
	return ParseSeed("default_seed.cue", defaultSeed)
}

// LoadSeedFile reads and validates a CUE seed file.
func LoadSeedFile(path string) (*Seed, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(path, src)
}

// ParseSeed validates src against the seed schema and decodes it.
//
// Beyond the schema, every post author must be a listed user and ids must
// be unique.
func ParseSeed(filename string, src []byte) (*Seed, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(seedSchema, cue.Filename("seed_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	data := ctx.CompileBytes(src, cue.Filename(filename))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	if err := checkSeedRefs(v, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

func checkSeedRefs(v cue.Value, seed *Seed) error {
	users := make(map[string]bool, len(seed.Users))
	for i, u := range seed.Users {
		if users[u.ID] {
			return &SeedError{
				Field:   fmt.Sprintf("users[%d].id", i),
				Message: fmt.Sprintf("duplicate user %q", u.ID),
				Pos:     v.LookupPath(cue.ParsePath(fmt.Sprintf("users[%d].id", i))).Pos(),
			}
		}
		users[u.ID] = true
	}

	posts := make(map[string]bool, len(seed.Posts))
	for i, p := range seed.Posts {
		if posts[p.ID] {
			return &SeedError{
				Field:   fmt.Sprintf("posts[%d].id", i),
				Message: fmt.Sprintf("duplicate post %q", p.ID),
				Pos:     v.LookupPath(cue.ParsePath(fmt.Sprintf("posts[%d].id", i))).Pos(),
			}
		}
		posts[p.ID] = true

		if !users[p.AuthorID] {
			return &SeedError{
				Field:   fmt.Sprintf("posts[%d].user", i),
				Message: fmt.Sprintf("unknown user %q", p.AuthorID),
				Pos:     v.LookupPath(cue.ParsePath(fmt.Sprintf("posts[%d].user", i))).Pos(),
			}
		}
	}
	return nil
}

// ApplySeed loads seed into s. Existing posts are kept; users are upserted.
func (s *Storage) ApplySeed(ctx context.Context, seed *Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply seed: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, u := range seed.Users {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name
		`, u.ID, u.Name); err != nil {
			return fmt.Errorf("apply seed: user %s: %w", u.ID, err)
		}
	}

	for _, p := range seed.Posts {
		reactions, err := json.Marshal(p.Reactions)
		if err != nil {
			return fmt.Errorf("apply seed: post %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, title, content, user_id, created_at, reactions)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, p.ID, p.Title, p.Content, p.AuthorID, p.CreatedAt.UTC().Format(timeLayout), string(reactions)); err != nil {
			return fmt.Errorf("apply seed: post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply seed: commit: %w", err)
	}
	return nil
}
