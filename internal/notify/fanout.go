package notify

import (
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink receives device change notifications.
//
// changed holds the devices that differ from the previous cache contents;
// it is empty (not nil) when devices were only removed. all is the full
// device list after the change. Sinks share both slices and must neither
// modify nor block on them.
type Sink interface {
	DevicesChanged(changed, all []device.EnrichedDevice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(changed, all []device.EnrichedDevice)

// DevicesChanged calls f.
func (f SinkFunc) DevicesChanged(changed, all []device.EnrichedDevice) {
	f(changed, all)
}

// Fanout delivers each notification to every sink in registration order.
// A panicking sink is logged and does not prevent delivery to the others.
type Fanout struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger Logger
}

// NewFanout creates a fanout over sinks. Nil sinks are ignored.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{logger: noopLogger{}}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// SetLogger sets the logger for sink failures.
func (f *Fanout) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	f.mu.Lock()
	f.logger = logger
	f.mu.Unlock()
}

// Add registers a sink.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Notify delivers one notification. Its signature matches
// orchestrator.ChangeFunc.
func (f *Fanout) Notify(changed, all []device.EnrichedDevice) {
	f.mu.RLock()
	sinks := f.sinks
	logger := f.logger
	f.mu.RUnlock()

	logger.Debug("delivering device change", "changed", len(changed), "total", len(all), "sinks", len(sinks))
	for _, s := range sinks {
		deliver(s, changed, all, logger)
	}
}

func deliver(s Sink, changed, all []device.EnrichedDevice, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change sink panic recovered", "panic", r)
		}
	}()
	s.DevicesChanged(changed, all)
}
