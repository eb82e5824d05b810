package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "feedctl", cmd.Use)
	assert.Contains(t, cmd.Long, "fake API")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "posts", "users", "post", "edit", "react", "login", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestClientCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"posts", "users", "post", "edit", "react", "login"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("base-url"), name)
	}

	post, _, err := cmd.Find([]string{"post"})
	require.NoError(t, err)
	for _, flag := range []string{"user", "title", "content"} {
		assert.NotNil(t, post.Flags().Lookup(flag), flag)
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, flag := range []string{"addr", "db", "seed", "latency", "sessions", "redis-url"} {
		assert.NotNil(t, serve.Flags().Lookup(flag), flag)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "test", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  request_timeout: 2s\n"), 0o644))

	opts := &RootOptions{ConfigPath: path}
	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Client.RequestTimeout)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Client.BaseURL, "defaults fill the rest")

	bad := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err = bad.Config()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_LoggerLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &RootOptions{}
	logger := opts.Logger(buf)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	verbose := &RootOptions{Verbose: true}
	verbose.Logger(buf).Debug("details")
	assert.Contains(t, buf.String(), "details")
}
