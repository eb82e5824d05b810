package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/social"
)

// PostOptions holds flags for the post and edit commands.
type PostOptions struct {
	ClientOptions
	User    string
	Title   string
	Content string
}

// NewPostCommand creates the post command.
func NewPostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:           "post",
		Short:         "Create a post",
		Example:       `  feedctl post --user kevin --title "Hello" --content "First!"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				f := opts.formatter(cmd)
				if err := login(ctx, f, app, opts.User); err != nil {
					return err
				}
				_, _ = app.FetchUsers(ctx)

				out, err := app.AddNewPost(ctx, social.NewPost{
					Title:    opts.Title,
					Content:  opts.Content,
					AuthorID: opts.User,
				})
				created, err := requireFulfilled(f, "add post", out, err)
				if err != nil {
					return err
				}
				view := newPostView(app, app.State(), created)
				return f.Render(view, func(w io.Writer) { writePost(w, view) })
			})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.User, "user", "", "author user id (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "post title (required)")
	cmd.Flags().StringVar(&opts.Content, "content", "", "post content (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PostOptions{ClientOptions: ClientOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:           "edit <post-id>",
		Short:         "Change a post's title and content",
		Example:       `  feedctl edit first-post --user tianna --title "Edited" --content "New text"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				f := opts.formatter(cmd)
				if err := login(ctx, f, app, opts.User); err != nil {
					return err
				}
				_, _ = app.FetchUsers(ctx)

				out, err := app.EditPost(ctx, social.PostUpdate{
					ID:      args[0],
					Title:   opts.Title,
					Content: opts.Content,
				})
				updated, err := requireFulfilled(f, "edit post", out, err)
				if err != nil {
					return err
				}
				view := newPostView(app, app.State(), updated)
				return f.Render(view, func(w io.Writer) { writePost(w, view) })
			})
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.User, "user", "", "user id to log in as (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "new title (required)")
	cmd.Flags().StringVar(&opts.Content, "content", "", "new content (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

// LoginResult is the output of the login command.
type LoginResult struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Check that a user can log in",
		Long: `Log in to the fake API and print the matching user.

Each feedctl invocation is its own session; commands that need a login
(post, edit) take --user and log in themselves.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *social.App) error {
				f := opts.formatter(cmd)
				if err := login(ctx, f, app, args[0]); err != nil {
					return err
				}
				_, _ = app.FetchUsers(ctx)

				state := app.State()
				result := LoginResult{Username: args[0]}
				if name := app.Select.CurrentUsername(state); name != nil {
					result.Username = *name
				}
				if u, ok := app.Select.CurrentUser(state); ok {
					result.Name = u.Name
				}
				return f.Render(result, func(w io.Writer) {
					if result.Name != "" {
						fmt.Fprintf(w, "Logged in as %s (%s)\n", result.Name, result.Username)
						return
					}
					fmt.Fprintf(w, "Logged in as %s\n", result.Username)
				})
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func login(ctx context.Context, f *OutputFormatter, app *social.App, username string) error {
	out, err := app.Login(ctx, username)
	_, err = requireFulfilled(f, "login", out, err)
	return err
}
