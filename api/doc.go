// Package api defines the HTTP wire types shared by the recovery service
// and its clients: request and response bodies for session initiation, share
// submission, readiness polling, execution, and cancellation, plus the
// server configuration consumed by the HTTP server and the command-line
// entry points.
package api
