// Package notify fans device change notifications out to the hub's
// consumers.
//
// The orchestrator invokes a single change callback. Fanout turns that into
// one call per registered Sink:
//   - the WebSocket hub (api.Hub), which pushes to connected UIs
//   - StatePublisher, which mirrors changed devices to retained MQTT topics
//   - Telemetry, which records device_state samples in InfluxDB
//
// Sinks are called on the poll goroutine with the device cache locked, so
// every sink here returns without blocking: StatePublisher queues to its own
// goroutine, the InfluxDB write API batches internally.
//
// RefreshListener handles the inbound direction: refresh requests received
// over MQTT trigger an immediate poll of the owning vendor.
//
// QuotaReporter periodically publishes SwitchBot rate limiter usage to
// InfluxDB and MQTT.
package notify
