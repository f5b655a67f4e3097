// Package api implements the HTTP REST API and WebSocket server for the
// control namespace daemon.
//
// This package provides:
//   - REST endpoints for element enumeration, descriptors, values, locks
//     and TLV payloads, all funnelled through the gateway's serialized ops
//   - History queries over the recorded element event trail
//   - WebSocket hub for real-time change broadcasts
//   - JWT authentication guarding the mutating surface
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between clients (dashboards, automations, curl) and
// the gateway. It never touches the provider stack directly: reads and
// writes go through the gateway so the provider's single-caller contract
// holds, and change notifications come back via the hub, fed by the
// gateway's event pump.
//
// # Security
//
// Authentication is a single configured admin credential (argon2id hash in
// the config file) exchanged for a JWT pair at /auth/login. Mutating routes
// require a Bearer access token; WebSocket connections pass the token as a
// query parameter. With no credential configured the mutating surface is
// open, which suits development and trusted-network deployments.
//
// # Graceful Degradation
//
// The server operates without MQTT, history or telemetry configured: the
// element surface keeps working, only the corresponding endpoints report
// unavailable.
package api
