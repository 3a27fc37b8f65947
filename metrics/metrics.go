// Package metrics exposes the service's Prometheus counters on a dedicated
// listener, kept separate from the API listener so scrapes survive drains.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the registry's metrics over HTTP.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	SessionsInitiated prometheus.Counter
	SessionsExecuted  prometheus.Counter
	SessionsCancelled prometheus.Counter
	SharesSubmitted   prometheus.Counter
	RecoveryFailures  *prometheus.CounterVec
}

// New creates a metrics server listening on addr with all collectors
// registered under the given namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsServer{
		registry: registry,
		SessionsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_sessions_initiated_total",
			Help:      "Number of recovery sessions initiated.",
		}),
		SessionsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_sessions_executed_total",
			Help:      "Number of recovery sessions executed to completion.",
		}),
		SessionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_sessions_cancelled_total",
			Help:      "Number of recovery sessions cancelled.",
		}),
		SharesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_shares_submitted_total",
			Help:      "Number of guardian share submissions accepted.",
		}),
		RecoveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_failures_total",
			Help:      "Number of failed recovery operations by reason.",
		}, []string{"reason"}),
	}
	registry.MustRegister(
		m.SessionsInitiated,
		m.SessionsExecuted,
		m.SessionsCancelled,
		m.SharesSubmitted,
		m.RecoveryFailures,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: addr, Handler: mux}

	return m, nil
}

// ListenAndServe blocks serving metrics until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
