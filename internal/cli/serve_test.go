package cli

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServe runs the serve command in the background until the test ends.
func startServe(t *testing.T, args ...string) (addr string, out *bytes.Buffer) {
	t.Helper()

	rootOpts := &RootOptions{Format: "text"}
	ready := make(chan string, 1)
	opts := &ServeOptions{RootOptions: rootOpts, Ready: ready}

	cmd := NewServeCommand(rootOpts)
	out = &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(args))

	flags := cmd.Flags()
	opts.Addr, _ = flags.GetString("addr")
	opts.Database, _ = flags.GetString("db")
	opts.Seed, _ = flags.GetString("seed")
	opts.Latency, _ = flags.GetDuration("latency")
	opts.Sessions, _ = flags.GetString("sessions")
	opts.RedisURL, _ = flags.GetString("redis-url")

	ctx, cancel := context.WithCancel(context.Background())
	cmd.SetContext(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- runServe(opts, cmd) }()

	select {
	case addr = <-ready:
	case err := <-errCh:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("serve did not start")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return addr, out
}

func TestServeCommand_ServesSeed(t *testing.T) {
	db := filepath.Join(t.TempDir(), "feed.db")
	addr, out := startServe(t, "--addr", "127.0.0.1:0", "--db", db)

	assert.Contains(t, out.String(), "Fake API listening on http://"+addr)

	stdout, _, err := executeClient(t, "http://"+addr, "users", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Madison Price")

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeCommand_InvalidSessions(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"serve", "--sessions", "memcached", "--db", filepath.Join(t.TempDir(), "feed.db")})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid server settings")
}

func TestServeCommand_BadSeed(t *testing.T) {
	dir := t.TempDir()
	seed := writeFile(t, dir, "seed.cue", `users: [{id: "a", name: "A"}]
posts: [{id: "p", title: "T", content: "C", user: "ghost", date: "2024-01-01T00:00:00Z"}]
`)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"serve", "--seed", seed, "--db", filepath.Join(dir, "feed.db"), "--addr", "127.0.0.1:0"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load seed")
}
