package social

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownReaction is returned for a reaction outside the fixed set.
var ErrUnknownReaction = errors.New("unknown reaction")

// ReactionKind names one of the fixed reaction counters.
type ReactionKind string

const (
	ThumbsUp ReactionKind = "thumbsUp"
	Tada     ReactionKind = "tada"
	Heart    ReactionKind = "heart"
	Rocket   ReactionKind = "rocket"
	Eyes     ReactionKind = "eyes"
)

// ReactionKinds lists every kind in display order.
var ReactionKinds = []ReactionKind{ThumbsUp, Tada, Heart, Rocket, Eyes}

// ParseReaction validates a reaction name.
func ParseReaction(s string) (ReactionKind, error) {
	k := ReactionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownReaction, s)
	}
	return k, nil
}

// Valid reports whether k is one of ReactionKinds.
func (k ReactionKind) Valid() bool {
	switch k {
	case ThumbsUp, Tada, Heart, Rocket, Eyes:
		return true
	}
	return false
}

// Reactions holds one non-negative counter per kind.
type Reactions struct {
	ThumbsUp int `json:"thumbsUp"`
	Tada     int `json:"tada"`
	Heart    int `json:"heart"`
	Rocket   int `json:"rocket"`
	Eyes     int `json:"eyes"`
}

// Count returns the counter for kind.
func (r Reactions) Count(kind ReactionKind) int {
	switch kind {
	case ThumbsUp:
		return r.ThumbsUp
	case Tada:
		return r.Tada
	case Heart:
		return r.Heart
	case Rocket:
		return r.Rocket
	case Eyes:
		return r.Eyes
	}
	return 0
}

// Add returns r with kind's counter incremented.
func (r Reactions) Add(kind ReactionKind) (Reactions, error) {
	switch kind {
	case ThumbsUp:
		r.ThumbsUp++
	case Tada:
		r.Tada++
	case Heart:
		r.Heart++
	case Rocket:
		r.Rocket++
	case Eyes:
		r.Eyes++
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownReaction, kind)
	}
	return r, nil
}

// Post is a feed entry.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"user"`
	CreatedAt time.Time `json:"date"`
	Reactions Reactions `json:"reactions"`
}

// User is a post author.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewPost is the request body for creating a post.
type NewPost struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	AuthorID string `json:"user"`
}

// Validate checks the required fields.
func (p NewPost) Validate() error {
	if p.Title == "" {
		return errors.New("title is required")
	}
	if p.Content == "" {
		return errors.New("content is required")
	}
	if p.AuthorID == "" {
		return errors.New("author is required")
	}
	return nil
}

// PostUpdate changes a post's title and content.
type PostUpdate struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Notification is a transient message shown to the user.
type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Variant string `json:"variant"`
}
