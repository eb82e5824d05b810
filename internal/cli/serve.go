package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/config"
	"github.com/roach88/feedstore/internal/fakeapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
	Seed     string
	Latency  time.Duration
	Sessions string
	RedisURL string

	// Ready, if set, receives the bound address once listening (for testing).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fake API server",
		Long: `Run the fake feed API backed by SQLite.

The database is created if needed and seeded with the built-in demo data,
or with a CUE seed file. Sessions live in SQLite or, with --sessions redis,
in Redis. Prometheus metrics are served on /metrics.

Examples:
  feedctl serve
  feedctl serve --addr :9000 --db /tmp/feed.db --latency 500ms
  feedctl serve --seed ./seed.cue --sessions redis --redis-url redis://localhost:6379/0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides server.database)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "CUE seed file (overrides server.seed)")
	cmd.Flags().DurationVar(&opts.Latency, "latency", 0, "artificial response delay (overrides server.latency)")
	cmd.Flags().StringVar(&opts.Sessions, "sessions", "", "session backend: sqlite or redis (overrides server.sessions)")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL for redis sessions (overrides server.redis_url)")

	return cmd
}

// serverConfig applies flag overrides to the file settings.
func (o *ServeOptions) serverConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := o.Config()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = o.Addr
	}
	if flags.Changed("db") {
		cfg.Server.Database = o.Database
	}
	if flags.Changed("seed") {
		cfg.Server.Seed = o.Seed
	}
	if flags.Changed("latency") {
		cfg.Server.Latency = o.Latency
	}
	if flags.Changed("sessions") {
		cfg.Server.Sessions = o.Sessions
	}
	if flags.Changed("redis-url") {
		cfg.Server.RedisURL = o.RedisURL
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid server settings", err)
	}
	return cfg, nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.serverConfig(cmd)
	if err != nil {
		return err
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("opening database", "path", cfg.Server.Database)
	storage, err := fakeapi.Open(cfg.Server.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	seed, err := loadSeed(cfg.Server.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load seed", err)
	}
	if err := storage.ApplySeed(ctx, seed); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply seed", err)
	}
	logger.Info("seed applied", "users", len(seed.Users), "posts", len(seed.Posts))

	sessions, closeSessions, err := openSessions(ctx, cfg.Server, storage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sessions", err)
	}
	defer closeSessions()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	srv, err := fakeapi.NewServer(storage, sessions,
		fakeapi.WithLogger(logger),
		fakeapi.WithLatency(cfg.Server.Latency),
		fakeapi.WithRegistry(registry),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build server", err)
	}

	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, cfg.Server.Addr, ready) }()

	select {
	case addr := <-ready:
		fmt.Fprintf(cmd.OutOrStdout(), "Fake API listening on http://%s\n", addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
		if opts.Ready != nil {
			opts.Ready <- addr
		}
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "server failed to start", err)
	}

	if err := <-errCh; err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

func loadSeed(path string) (*fakeapi.Seed, error) {
	if path == "" {
		return fakeapi.DefaultSeed()
	}
	return fakeapi.LoadSeedFile(path)
}

func openSessions(ctx context.Context, cfg config.ServerConfig, storage *fakeapi.Storage) (fakeapi.Sessions, func(), error) {
	if cfg.Sessions != config.SessionsRedis {
		return fakeapi.NewSQLiteSessions(storage), func() {}, nil
	}

	sessions, err := fakeapi.NewRedisSessions(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return sessions, func() {
		if err := sessions.Close(); err != nil {
			slog.Error("error closing redis sessions", "error", err)
		}
	}, nil
}
