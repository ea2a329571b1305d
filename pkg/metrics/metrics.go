// Package metrics provides Prometheus metrics export for gitlock.
//
// A nil *Registry is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gitlock"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
	OutcomePartial  = "partial"
)

// Registry holds all gitlock metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	locks           *prometheus.GaugeVec
	refreshes       *prometheus.CounterVec
	operations      *prometheus.CounterVec
}

// NewRegistry creates a registry with every gitlock collector plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Backing commands executed, by command and outcome.",
		}, []string{"command", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall time of backing commands.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"command"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Commands waiting for the executor.",
		}),
		locks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locks",
			Help:      "Locks in the current snapshot, by owner class.",
		}, []string{"owner"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Full lock refresh cycles, by outcome.",
		}, []string{"outcome"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_operations_total",
			Help:      "Per-path lock operations, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	r.reg.MustRegister(
		r.commands,
		r.commandDuration,
		r.queueDepth,
		r.locks,
		r.refreshes,
		r.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordCommand records one backing command run.
func (r *Registry) RecordCommand(command, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(command, outcome).Inc()
	r.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// SetQueueDepth records the number of queued commands.
func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.queueDepth.Set(float64(n))
}

// SetLocks records the lock split between the current user and everyone else.
func (r *Registry) SetLocks(mine, others int) {
	if r == nil {
		return
	}
	r.locks.WithLabelValues("you").Set(float64(mine))
	r.locks.WithLabelValues("other").Set(float64(others))
}

// RecordRefresh records a completed refresh cycle.
func (r *Registry) RecordRefresh(outcome string) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(outcome).Inc()
}

// RecordOperation records a completed per-path acquire or release.
func (r *Registry) RecordOperation(kind, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(kind, outcome).Inc()
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve runs an HTTP server exposing /metrics until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
