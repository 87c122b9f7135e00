package notify

import (
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// Subscriber registers MQTT message handlers. Implemented by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Refresher triggers an immediate poll for a device's vendor.
// Implemented by *orchestrator.Orchestrator.
type Refresher interface {
	TriggerImmediateRefresh(deviceID string)
}

// RefreshListener turns MQTT refresh requests into immediate polls.
type RefreshListener struct {
	refresher Refresher
	logger    Logger
}

// NewRefreshListener creates a listener that forwards to refresher.
func NewRefreshListener(refresher Refresher, logger Logger) *RefreshListener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &RefreshListener{refresher: refresher, logger: logger}
}

// Subscribe registers the listener on graylogic/command/refresh/+.
func (l *RefreshListener) Subscribe(sub Subscriber, qos byte) error {
	if err := sub.Subscribe(mqtt.Topics{}.AllRefreshRequests(), qos, l.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to refresh requests: %w", err)
	}
	return nil
}

// HandleMessage handles one refresh request. The payload is ignored; the
// device ID is taken from the topic.
func (l *RefreshListener) HandleMessage(topic string, _ []byte) error {
	id, ok := mqtt.DeviceIDFromRefreshTopic(topic)
	if !ok {
		return fmt.Errorf("malformed refresh topic %q", topic)
	}
	l.logger.Debug("refresh requested over mqtt", "device_id", id)
	l.refresher.TriggerImmediateRefresh(id)
	return nil
}
