package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/social"
	"github.com/roach88/feedstore/internal/store"
	"github.com/roach88/feedstore/internal/transport"
)

// closeTimeout bounds the wait for listener effects when a command ends.
const closeTimeout = 5 * time.Second

// ClientOptions holds flags shared by the client commands.
type ClientOptions struct {
	*RootOptions
	BaseURL string

	// Transport replaces the HTTP client (for testing).
	Transport social.Transport
}

func (o *ClientOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.BaseURL, "base-url", "", "fake API base URL (overrides client.base_url)")
}

// withApp runs fn against a started App and shuts the App down afterwards.
func (o *ClientOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *social.App) error) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Client.BaseURL = o.BaseURL
	}
	logger := o.Logger(cmd.ErrOrStderr())

	tr := o.Transport
	if tr == nil {
		client, err := transport.New(cfg.Client.BaseURL,
			transport.WithTimeout(cfg.Client.RequestTimeout),
			transport.WithLogger(logger),
		)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid base URL", err)
		}
		tr = client
	}

	registry := prometheus.NewRegistry()
	metrics, err := store.NewMetrics(registry, "feedctl")
	if err != nil {
		return err
	}

	app, err := social.New(tr,
		social.WithLogger(logger),
		social.WithNotificationDelay(cfg.Client.NotificationDelay),
		social.WithStoreOptions(store.WithMaxSteps(cfg.Client.MaxSteps)),
		social.WithMiddleware(store.Instrument[social.RootState](metrics)),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(runCtx) }()

	fnErr := fn(ctx, app)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
	defer closeCancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Warn("listener effects did not finish", "error", err)
	}
	<-errCh

	o.formatter(cmd).VerboseLog("%s", summarizeActions(registry))
	return fnErr
}

// summarizeActions reports how many actions the store processed.
func summarizeActions(reg *prometheus.Registry) string {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Sprintf("metrics unavailable: %v", err)
	}

	var committed, failed float64
	for _, mf := range families {
		if mf.GetName() != "feedctl_store_actions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			result := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					result = l.GetValue()
				}
			}
			if result == "committed" {
				committed += m.GetCounter().GetValue()
			} else {
				failed += m.GetCounter().GetValue()
			}
		}
	}
	return fmt.Sprintf("store: %d actions committed, %d failed", int(committed), int(failed))
}

// requireFulfilled turns a rejected or skipped outcome into an exit error.
func requireFulfilled[R any](f *OutputFormatter, what string, out store.Outcome[R], err error) (R, error) {
	var zero R
	if err != nil {
		return zero, WrapExitError(ExitFailure, what+" failed", err)
	}
	payload, err := out.Unwrap()
	if err != nil {
		msg := out.Error
		if msg == "" {
			msg = err.Error()
		}
		if fmtErr := f.Error(CodeRequestFailed, fmt.Sprintf("%s: %s", what, msg), nil); fmtErr != nil {
			return zero, fmtErr
		}
		return zero, WrapExitError(ExitFailure, what+" failed", err)
	}
	return payload, nil
}
