// Package server provides the HTTP server for the live plot dashboard and
// its API.
//
// This package handles all HTTP concerns:
//
//   - Dashboard serving: the embedded HTML/JS plot at "/"
//   - REST API: channels, snapshots and the window length under "/api"
//   - Server-Sent Events: real-time updates at "/api/sse"
//   - Websocket: real-time updates and window control at "/api/ws"
//   - Metrics: Prometheus exposition at "/metrics"
//
// Timestamps leave the server as milliseconds since the store origin. The
// server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
