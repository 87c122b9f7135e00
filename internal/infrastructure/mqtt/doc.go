// Package mqtt connects the hub to the site MQTT broker.
//
// The hub uses MQTT for two things:
//   - Publishing every changed device, retained, on graylogic/core/device/{id}/state
//     so that automation and command services always see the latest state.
//   - Receiving refresh requests on graylogic/command/refresh/{id}, sent by a
//     command service right after it changed a device, so the owning vendor
//     is re-polled without waiting for its next scheduled cycle.
//
// The hub's own availability is published retained on graylogic/system/status,
// with a Last Will so that a crash shows up as offline.
//
// MQTT is optional. When mqtt.enabled is false the hub notifies only its
// WebSocket clients.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllRefreshRequests(), 1,
//	    func(topic string, _ []byte) error {
//	        if id, ok := mqtt.DeviceIDFromRefreshTopic(topic); ok {
//	            orch.TriggerImmediateRefresh(id)
//	        }
//	        return nil
//	    })
package mqtt
