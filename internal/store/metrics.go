package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by Instrument.
type Metrics struct {
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "actions_total",
			Help:      "Dispatched actions by type and result.",
		}, []string{"type", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in the dispatch chain, per slice namespace.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"namespace"}),
	}

	for _, c := range []prometheus.Collector{m.actions, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register store metrics: %w", err)
		}
	}
	return m, nil
}

// Instrument returns middleware that records every action passing through
// the rest of the chain.
//
// The result label is one of committed, failed, quota, cancelled.
func Instrument[S any](m *Metrics) Middleware[S] {
	return func(_ MiddlewareAPI[S], next Next) Next {
		return func(ctx context.Context, action Action) error {
			start := time.Now()
			err := next(ctx, action)
			m.duration.WithLabelValues(action.Type().Namespace()).Observe(time.Since(start).Seconds())
			m.actions.WithLabelValues(string(action.Type()), resultLabel(err)).Inc()
			return err
		}
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "committed"
	case IsQuotaError(err):
		return "quota"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "failed"
	}
}
