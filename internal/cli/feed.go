package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/social"
)

// PostView is a post as the CLI prints it.
type PostView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	AuthorID  string         `json:"user"`
	Author    string         `json:"author"`
	Date      time.Time      `json:"date"`
	Reactions map[string]int `json:"reactions"`
}

func newPostView(app *social.App, state social.RootState, p social.Post) PostView {
	author := "Unknown author"
	if u, ok := app.Select.UserByID(state, p.AuthorID); ok {
		author = u.Name
	}

	reactions := make(map[string]int, len(social.ReactionKinds))
	for _, k := range social.ReactionKinds {
		reactions[string(k)] = p.Reactions.Count(k)
	}

	return PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		Author:    author,
		Date:      p.CreatedAt,
		Reactions: reactions,
	}
}

func writePost(w io.Writer, p PostView) {
	fmt.Fprintf(w, "%s  %s\n", p.ID, p.Title)
	fmt.Fprintf(w, "  by %s, %s\n", p.Author, p.Date.UTC().Format(time.DateTime))
	fmt.Fprintf(w, "  %s\n", p.Content)

	counts := make([]string, 0, len(social.ReactionKinds))
	for _, k := range social.ReactionKinds {
		counts = append(counts, fmt.Sprintf("%s %d", k, p.Reactions[string(k)]))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(counts, "  "))
}

// PostsOptions holds flags for the posts command.
type PostsOptions struct {
	ClientOptions
	User string
}

// NewPostsCommand creates the posts command.
func NewPostsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostsOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List the feed, newest first",
		Example: `  feedctl posts
  feedctl posts --user kevin --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				return listPosts(ctx, opts, app, cmd)
			})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.User, "user", "", "only show posts by this user id")

	return cmd
}

func listPosts(ctx context.Context, opts *PostsOptions, app *social.App, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	// Author names are best effort; the feed renders without them.
	if out, err := app.FetchUsers(ctx); err == nil && out.Error != "" {
		f.VerboseLog("users unavailable: %s", out.Error)
	}
	out, err := app.FetchPosts(ctx)
	if _, err := requireFulfilled(f, "fetch posts", out, err); err != nil {
		return err
	}

	state := app.State()
	posts := app.Select.AllPosts(state)
	if opts.User != "" {
		posts = app.Select.PostsByUser(state, opts.User)
	}

	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, newPostView(app, state, p))
	}

	return f.Render(views, func(w io.Writer) {
		if len(views) == 0 {
			fmt.Fprintln(w, "No posts.")
			return
		}
		for i, v := range views {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writePost(w, v)
		}
	})
}

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "users",
		Short:         "List users by name",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				f := opts.formatter(cmd)
				out, err := app.FetchUsers(ctx)
				if _, err := requireFulfilled(f, "fetch users", out, err); err != nil {
					return err
				}
				users := app.Select.AllUsers(app.State())
				return f.Render(users, func(w io.Writer) {
					for _, u := range users {
						fmt.Fprintf(w, "%-12s %s\n", u.ID, u.Name)
					}
				})
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// ReactOptions holds flags for the react command.
type ReactOptions struct {
	ClientOptions
}

// NewReactCommand creates the react command.
func NewReactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReactOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "react <post-id> <reaction>",
		Short: "Add a reaction to a post",
		Long: `Add a reaction to a cached post and print its counters.

Reactions are kept by the client only; the fake API does not store them.
Valid reactions: ` + reactionNames() + `.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := social.ParseReaction(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid reaction", err)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				return react(ctx, opts, app, cmd, args[0], kind)
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func react(ctx context.Context, opts *ReactOptions, app *social.App, cmd *cobra.Command, postID string, kind social.ReactionKind) error {
	f := opts.formatter(cmd)

	_, _ = app.FetchUsers(ctx)
	out, err := app.FetchPosts(ctx)
	if _, err := requireFulfilled(f, "fetch posts", out, err); err != nil {
		return err
	}
	if err := app.AddReaction(ctx, postID, kind); err != nil {
		return WrapExitError(ExitFailure, "add reaction", err)
	}

	state := app.State()
	post, ok := app.Select.PostByID(state, postID)
	if !ok {
		if err := f.Error(CodeRequestFailed, fmt.Sprintf("post %q not found", postID), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("post %q not found", postID))
	}

	view := newPostView(app, state, post)
	return f.Render(view, func(w io.Writer) { writePost(w, view) })
}

func reactionNames() string {
	names := make([]string, len(social.ReactionKinds))
	for i, k := range social.ReactionKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
