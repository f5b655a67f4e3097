// Package gateway owns the control provider stack at runtime and fans its
// state out to every consumer surface.
//
// The provider contract is single-caller: at most one goroutine may be inside
// the provider at a time. The gateway enforces that with one mutex around the
// whole stack, which lets the REST API, the MQTT command path and the event
// pump share a single proxy without the provider needing locks of its own.
//
// This package provides:
//   - Serialized typed operations (list, describe, read, write, lock, TLV)
//     for the API layer
//   - An event pump that drains change notifications and fans them out to
//     WebSocket clients, retained MQTT topics, the history store and the
//     telemetry writer
//   - Best-effort source attribution for value changes (api, mqtt, sync, card)
//   - Provider hot-swap for rules reloads without dropping the child handle
//
// # Event Flow
//
// The pump waits on the provider's notify channel (with a polling fallback),
// drains the queue in one batch, deduplicates per element, then reads the
// settled state for each changed element and publishes it. Consumers never see
// intermediate states, only the value after the queue went quiet.
//
// # Graceful Degradation
//
// Every downstream is optional. Without MQTT the retained mirror is skipped,
// without a history repository nothing is recorded, without telemetry no
// points are written. The provider operations themselves never depend on any
// downstream being present.
package gateway
