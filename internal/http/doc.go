// Package http provides the HTTP surface of the rotation service.
//
// The router exposes the following endpoints:
//   - POST /slack/events: interactive callbacks (confirm/skip buttons).
//     Guarded by Slack request-signature verification.
//   - POST /slack/commands: the /rotation slash command
//     (list, add, remove, history). Same signature guard.
//   - GET /healthz: liveness; always 200 while the process is up.
//   - GET /readyz: readiness; 503 while the roster is empty or the
//     reminder trigger is expected but not running.
//   - GET /metrics: Prometheus text format rotation gauges.
package http
