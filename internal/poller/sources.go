package poller

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/ratelimit"
)

// Default poll intervals per vendor.
const (
	HueInterval       = 2500 * time.Millisecond
	NanoleafInterval  = 4000 * time.Millisecond
	SwitchBotInterval = 120 * time.Second
)

// SwitchBot cloud quota defaults.
const (
	SwitchBotDailyLimit   = 10000
	SwitchBotSafetyFactor = 0.8

	// defaultDeviceEstimate is the assumed device count before the first
	// successful fetch.
	defaultDeviceEstimate = 5
)

// QuotaSource guards a cloud Source with a daily request budget.
//
// Before each fetch it charges the limiter for 1 list call plus one status
// call per device seen on the last successful fetch. When the budget is
// spent the cycle is skipped and returns no devices; the skip is logged
// once per exhaustion episode.
type QuotaSource struct {
	inner   Source
	limiter *ratelimit.Limiter

	mu             sync.Mutex
	lastKnownCount int
	exhaustedWarn  bool
	logger         Logger
}

// NewQuotaSource wraps inner with limiter.
func NewQuotaSource(inner Source, limiter *ratelimit.Limiter) *QuotaSource {
	return &QuotaSource{
		inner:          inner,
		limiter:        limiter,
		lastKnownCount: defaultDeviceEstimate,
		logger:         noopLogger{},
	}
}

// SetLogger sets the logger for quota diagnostics.
func (q *QuotaSource) SetLogger(logger Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	q.logger = logger
}

// Limiter returns the wrapped limiter.
func (q *QuotaSource) Limiter() *ratelimit.Limiter {
	return q.limiter
}

// IsConfigured delegates to the wrapped source.
func (q *QuotaSource) IsConfigured(ctx context.Context) (bool, error) {
	return q.inner.IsConfigured(ctx)
}

// FetchDevices pre-charges the estimated call count and fetches.
func (q *QuotaSource) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	q.mu.Lock()
	if !q.limiter.CanMakeRequest() {
		if !q.exhaustedWarn {
			q.exhaustedWarn = true
			stats := q.limiter.Stats()
			q.logger.Warn("daily request budget exhausted, skipping poll",
				"count", stats.Count,
				"limit", stats.Limit,
				"window_reset_at", stats.WindowResetAt,
			)
		}
		q.mu.Unlock()
		return []device.Snapshot{}, nil
	}
	q.exhaustedWarn = false

	estimate := 1 + q.lastKnownCount
	for range estimate {
		q.limiter.RecordRequest()
	}
	q.mu.Unlock()

	snapshots, err := q.inner.FetchDevices(ctx)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.lastKnownCount = len(snapshots)
	q.mu.Unlock()
	return snapshots, nil
}
