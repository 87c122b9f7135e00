package notify

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/ratelimit"
)

// DefaultQuotaInterval is how often QuotaReporter samples the limiter.
const DefaultQuotaInterval = time.Minute

// StateRecorder stores device state samples. Implemented by *influxdb.Client.
type StateRecorder interface {
	WriteDeviceState(s influxdb.DeviceState)
}

// QuotaRecorder stores rate limiter samples. Implemented by *influxdb.Client.
type QuotaRecorder interface {
	WriteQuota(q influxdb.Quota)
}

// JSONPublisher publishes JSON payloads. Implemented by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Telemetry records one device_state sample per changed device.
type Telemetry struct {
	rec StateRecorder
	now func() time.Time
}

// NewTelemetry creates a telemetry sink writing to rec.
func NewTelemetry(rec StateRecorder) *Telemetry {
	return &Telemetry{rec: rec, now: time.Now}
}

// DevicesChanged writes a sample for each changed device.
func (t *Telemetry) DevicesChanged(changed, _ []device.EnrichedDevice) {
	at := t.now()
	for _, d := range changed {
		t.rec.WriteDeviceState(stateSample(d, at))
	}
}

func stateSample(d device.EnrichedDevice, at time.Time) influxdb.DeviceState {
	s := influxdb.DeviceState{
		DeviceID:   d.ID,
		Vendor:     string(d.Vendor),
		On:         d.State.On,
		Brightness: d.State.Brightness,
		Reachable:  d.Reachable,
		At:         at,
	}
	if d.RoomName != nil {
		s.Room = *d.RoomName
	}
	return s
}

// QuotaReporter samples a rate limiter on a fixed interval.
//
// Each sample goes to the recorder, and to a retained MQTT topic when a
// publisher is set. Either destination may be nil.
type QuotaReporter struct {
	vendor   device.Vendor
	stats    func() ratelimit.Stats
	rec      QuotaRecorder
	pub      JSONPublisher
	interval time.Duration
	logger   Logger
}

// QuotaReporterConfig holds QuotaReporter settings.
type QuotaReporterConfig struct {
	Vendor device.Vendor

	// Stats returns current usage, e.g. Orchestrator.RateLimitStats.
	Stats func() ratelimit.Stats

	Recorder  QuotaRecorder
	Publisher JSONPublisher

	// Interval between samples. Default: DefaultQuotaInterval.
	Interval time.Duration

	Logger Logger
}

// NewQuotaReporter creates a reporter. Call Run to start sampling.
func NewQuotaReporter(cfg QuotaReporterConfig) *QuotaReporter {
	r := &QuotaReporter{
		vendor:   cfg.Vendor,
		stats:    cfg.Stats,
		rec:      cfg.Recorder,
		pub:      cfg.Publisher,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
	if r.interval <= 0 {
		r.interval = DefaultQuotaInterval
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Run samples once immediately and then every interval until ctx is done.
func (r *QuotaReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report takes one sample.
func (r *QuotaReporter) Report() {
	s := r.stats()
	if r.rec != nil {
		r.rec.WriteQuota(influxdb.Quota{
			Vendor:    string(r.vendor),
			Count:     s.Count,
			Limit:     s.Limit,
			Remaining: s.Remaining,
		})
	}
	if r.pub != nil {
		if err := r.pub.PublishJSON(mqtt.Topics{}.RateLimit(string(r.vendor)), s, true); err != nil {
			r.logger.Warn("publishing rate limit failed", "vendor", r.vendor, "error", err)
		}
	}
}
