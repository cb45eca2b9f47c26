// Package api provides the auxiliary HTTP server for machine consumers of the
// dashboard.
//
// It is separate from the dashboard's request server and is only started when
// an address is configured. Endpoints:
//
//   - GET /metrics: Prometheus exposition of the dashboard's collectors
//   - GET /api/history: JSON of the latest readings and the full history
//   - GET /api/live: WebSocket stream, one snapshot per recorded cycle
//   - GET /api/sse: the same stream as Server-Sent Events
//
// The server shuts down gracefully when the context passed to [Server.Start]
// is cancelled, with a 5-second timeout for in-flight requests.
package api
