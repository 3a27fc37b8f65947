// Package httpserver serves the recovery API over HTTP.
//
// The server mounts the recovery session endpoints alongside the usual
// operational surface: liveness and readiness probes, drain and undrain
// hooks for load balancers, an optional pprof API, and a Prometheus metrics
// listener on a separate address.
//
// Endpoints:
//
//	POST /api/recovery/initiate              open a session
//	POST /api/recovery/{session_id}/share    submit a guardian share
//	GET  /api/recovery/{session_id}/readiness poll executability
//	GET  /api/recovery/{session_id}/remaining poll the time lock
//	POST /api/recovery/{session_id}/execute  reconstruct the secret
//	POST /api/recovery/{session_id}/cancel   abort the session
//	GET  /api/recovery/{session_id}          fetch a session
//	GET  /api/recovery/active/{owner}        fetch the owner's active session
//
// Refusals carry structured JSON bodies: threshold failures report the
// missing approval weight, time-lock failures the remaining seconds.
package httpserver
