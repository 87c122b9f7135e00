// Package api implements the HTTP REST API and WebSocket server for the hub.
//
// This package provides:
//   - Read-only device endpoints served from the orchestrator cache
//   - Immediate refresh and rate-limit endpoints
//   - Nanoleaf pairing management
//   - A WebSocket hub that broadcasts device changes
//
// # Polling lifecycle
//
// Each WebSocket connection holds one polling reference on the
// orchestrator. Polling starts with the first connection and stops when
// the last one closes. REST reads never start polling; they return
// whatever the cache holds.
//
// # WebSocket protocol
//
// On connect the client receives a devices.snapshot event with the full
// device list. After every poll cycle that changed something it receives
// devices.changed with both the changed devices and the full list.
// Clients may send {"type":"ping"} and
// {"type":"refresh","payload":{"device_id":"hue-3"}}.
package api
