package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig carries the listener, timeout, and drain settings for the
// recovery HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address the API server listens on.
	ListenAddr string

	// MetricsAddr is the address of the Prometheus metrics listener. Empty
	// disables the metrics server.
	MetricsAddr string

	// EnablePprof mounts the pprof debug API under /debug.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// DrainDuration is how long the server stays up after being marked not
	// ready, so load balancers can observe the change.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight requests
	// during shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout bounds reading an entire request including the body.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration
}
