// Package api implements the HTTP REST API and WebSocket server for the
// vehicle backend.
//
// This package provides:
//   - REST endpoints for reading and mutating climate, lights, seats and
//     infotainment state
//   - Free-text and audio command endpoints backed by the nlp and speech
//     packages
//   - The /ws endpoint, whose connections live in connection.Registry
//   - Health, status, journal history and system metrics endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, body limits,
//     Prometheus request metrics)
//
// # State broadcasts
//
// New registers a store callback, so every committed mutation is pushed to
// all WebSocket clients as state_update regardless of whether it came from
// HTTP, WebSocket, audio or MQTT.
//
// # Graceful Degradation
//
// Only the store, processor, registry and parser are required. Speech,
// the journal and Prometheus are optional; the corresponding endpoints
// answer 503 or are not mounted when they are absent.
package api
