package notify

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
)

// RetainedPublisher publishes retained state messages.
// Implemented by *mqtt.Client.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// StatePublisher mirrors changed devices to graylogic/core/device/{id}/state.
//
// DevicesChanged only records the latest state per device and wakes the
// publish loop, so a slow or disconnected broker never stalls polling.
// Several changes to one device before the loop runs collapse into a
// single publish of the newest state.
type StatePublisher struct {
	pub    RetainedPublisher
	logger Logger

	mu      sync.Mutex
	pending map[string]device.EnrichedDevice

	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewStatePublisher creates a publisher. Call Start to begin publishing.
func NewStatePublisher(pub RetainedPublisher) *StatePublisher {
	return &StatePublisher{
		pub:     pub,
		logger:  noopLogger{},
		pending: make(map[string]device.EnrichedDevice),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger for publish failures. Call before Start.
func (p *StatePublisher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// Start launches the publish loop.
func (p *StatePublisher) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop publishes whatever is still pending and stops the loop.
// Safe to call multiple times.
func (p *StatePublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// DevicesChanged queues the changed devices for publishing.
func (p *StatePublisher) DevicesChanged(changed, _ []device.EnrichedDevice) {
	if len(changed) == 0 {
		return
	}

	p.mu.Lock()
	for _, d := range changed {
		p.pending[d.ID] = d
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *StatePublisher) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.done:
			p.flush()
			return
		}
	}
}

// flush publishes and clears everything pending, in device ID order.
func (p *StatePublisher) flush() {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[string]device.EnrichedDevice, len(batch))
	p.mu.Unlock()

	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		payload, err := json.Marshal(batch[id])
		if err != nil {
			p.logger.Error("encoding device state failed", "device_id", id, "error", err)
			continue
		}
		if err := p.pub.PublishRetained(mqtt.Topics{}.DeviceState(id), payload); err != nil {
			p.logger.Warn("publishing device state failed", "device_id", id, "error", err)
		}
	}
}
