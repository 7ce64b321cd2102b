// Package metrics exposes Prometheus collectors for the appeal lifecycle.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SourceDecision = "decision"
	SourceExternal = "external"
)

var (
	AppealsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeals_created_total",
		Help: "Appeals forwarded to a trader group and recorded.",
	})

	AppealsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeals_resolved_total",
			Help: "Appeals removed from the cache, by resolution source.",
		},
		[]string{"source"},
	)

	ForwardFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appeal_forward_failures_total",
		Help: "Appeals that could not be forwarded to a trader group.",
	})

	RemindersSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Reminders delivered to trader groups.",
	})

	ReminderFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminder_failures_total",
		Help: "Reminders that exhausted their retries.",
	})

	StatusRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_requests_total",
			Help: "Status API lookups by outcome.",
		},
		[]string{"result"},
	)

	AppealsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "appeals_open",
		Help: "Appeals currently awaiting a decision.",
	})
)

func init() {
	prometheus.MustRegister(
		AppealsCreated,
		AppealsResolved,
		ForwardFailures,
		RemindersSent,
		ReminderFailures,
		StatusRequests,
		AppealsOpen,
	)
}

// Serve exposes /metrics on addr until ctx is cancelled. A failure to bind
// is logged and the process carries on without metrics.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("metrics server disabled", "addr", addr, "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown metrics server", "error", err)
		}
	}()

	slog.Info("metrics server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}
