package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedstore/internal/fakeapi"
)

// startFakeAPI serves the default seed with a fixed clock and sequential ids.
func startFakeAPI(t *testing.T) string {
	t.Helper()

	storage, err := fakeapi.Open(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	seed, err := fakeapi.DefaultSeed()
	require.NoError(t, err)
	require.NoError(t, storage.ApplySeed(context.Background(), seed))

	var n atomic.Int64
	srv, err := fakeapi.NewServer(storage, fakeapi.NewSQLiteSessions(storage),
		fakeapi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		fakeapi.WithClock(func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }),
		fakeapi.WithIDs(func() string { return fmt.Sprintf("post-%d", n.Add(1)) }),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// executeClient runs a client command against baseURL.
func executeClient(t *testing.T, baseURL string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--base-url", baseURL))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func decodeEnvelope(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	resp.Data = data
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestPostsCommand_Text(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "posts")
	require.NoError(t, err)

	assert.Contains(t, out, "third-post  Notes on caching\n")
	assert.Contains(t, out, "  by Madison Price, 2024-03-02 08:30:00\n")
	assert.Contains(t, out, "  thumbsUp 0  tada 0  heart 0  rocket 2  eyes 1\n")

	third := bytes.Index([]byte(out), []byte("third-post"))
	second := bytes.Index([]byte(out), []byte("second-post"))
	first := bytes.Index([]byte(out), []byte("first-post"))
	assert.True(t, third < second && second < first, "posts should be newest first:\n%s", out)
}

func TestPostsCommand_JSON(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "posts", "--format", "json")
	require.NoError(t, err)

	var posts []PostView
	resp := decodeEnvelope(t, out, &posts)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"third-post", "second-post", "first-post"},
		[]string{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, "Tianna Jenkins", posts[2].Author)
	assert.Equal(t, 1, posts[2].Reactions["thumbsUp"])
}

func TestPostsCommand_FilterByUser(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "posts", "--user", "kevin", "--format", "json")
	require.NoError(t, err)

	var posts []PostView
	decodeEnvelope(t, out, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, "second-post", posts[0].ID)

	out, _, err = executeClient(t, url, "posts", "--user", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "No posts.\n", out)
}

func TestPostsCommand_ServerDown(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	out, _, err := executeClient(t, url, "posts")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_REQUEST_FAILED]: fetch posts:")
}

func TestUsersCommand(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "users")
	require.NoError(t, err)
	assert.Equal(t,
		"kevin        Kevin Grant\n"+
			"madison      Madison Price\n"+
			"tianna       Tianna Jenkins\n",
		out)
}

func TestPostCommand(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "post",
		"--user", "kevin", "--title", "Hello", "--content", "First!", "--format", "json")
	require.NoError(t, err)

	var created PostView
	decodeEnvelope(t, out, &created)
	assert.Equal(t, "post-1", created.ID)
	assert.Equal(t, "Hello", created.Title)
	assert.Equal(t, "kevin", created.AuthorID)
	assert.Equal(t, "Kevin Grant", created.Author)
	assert.True(t, created.Date.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))

	// The server keeps it for the next invocation.
	out, _, err = executeClient(t, url, "posts", "--user", "kevin", "--format", "json")
	require.NoError(t, err)
	var posts []PostView
	decodeEnvelope(t, out, &posts)
	require.Len(t, posts, 2)
	assert.Equal(t, "post-1", posts[0].ID)
}

func TestPostCommand_UnknownUser(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "post",
		"--user", "nobody", "--title", "Hello", "--content", "First!")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `Error [E_REQUEST_FAILED]: login: unknown user "nobody"`)
}

func TestPostCommand_RequiredFlags(t *testing.T) {
	url := startFakeAPI(t)

	_, _, err := executeClient(t, url, "post", "--user", "kevin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestEditCommand(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "edit", "first-post",
		"--user", "tianna", "--title", "Edited", "--content", "New text")
	require.NoError(t, err)
	assert.Contains(t, out, "first-post  Edited\n")
	assert.Contains(t, out, "  New text\n")
}

func TestEditCommand_MissingPost(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "edit", "missing",
		"--user", "tianna", "--title", "Edited", "--content", "New text", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeEnvelope(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRequestFailed, resp.Error.Code)
	assert.Equal(t, `edit post: post "missing" not found`, resp.Error.Message)
}

func TestReactCommand(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "react", "third-post", "rocket", "--format", "json")
	require.NoError(t, err)

	var view PostView
	decodeEnvelope(t, out, &view)
	assert.Equal(t, 3, view.Reactions["rocket"])
	assert.Equal(t, 1, view.Reactions["eyes"])
}

func TestReactCommand_InvalidReaction(t *testing.T) {
	url := startFakeAPI(t)

	_, _, err := executeClient(t, url, "react", "third-post", "clap")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid reaction")
}

func TestReactCommand_MissingPost(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "react", "missing", "heart")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `Error [E_REQUEST_FAILED]: post "missing" not found`)
}

func TestLoginCommand(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "login", "kevin")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as Kevin Grant (kevin)\n", out)

	out, _, err = executeClient(t, url, "login", "madison", "--format", "json")
	require.NoError(t, err)
	var result LoginResult
	decodeEnvelope(t, out, &result)
	assert.Equal(t, LoginResult{Username: "madison", Name: "Madison Price"}, result)
}

func TestLoginCommand_UnknownUser(t *testing.T) {
	url := startFakeAPI(t)

	out, _, err := executeClient(t, url, "login", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `login: unknown user "nobody"`)
}

func TestClientCommand_VerboseSummary(t *testing.T) {
	url := startFakeAPI(t)

	_, stderr, err := executeClient(t, url, "users", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "store: 2 actions committed, 0 failed")
}
