package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/poller"
	"github.com/nerrad567/gray-logic-hub/internal/ratelimit"
)

const (
	// enrichTimeout bounds one enrichment lookup.
	enrichTimeout = 5 * time.Second

	// persistTimeout bounds one background upsert.
	persistTimeout = 10 * time.Second
)

// ChangeFunc receives the changed devices of one poll result together with
// the full device list. Both slices are freshly allocated per call.
type ChangeFunc func(changed, all []device.EnrichedDevice)

// Logger is the logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds the sources and schedules the orchestrator drives.
type Config struct {
	// Sources. All three are required.
	Hue       poller.Source
	Nanoleaf  poller.Source
	SwitchBot poller.Source

	// Poll intervals. Zero uses the poller package defaults.
	HueInterval       time.Duration
	NanoleafInterval  time.Duration
	SwitchBotInterval time.Duration

	// SwitchBot quota. Zero uses the poller package defaults.
	SwitchBotDailyLimit   int
	SwitchBotSafetyFactor float64

	// Repository persists poll results and supplies enrichment. Required.
	Repository device.Repository

	// Clock schedules poll cycles. Default: wall clock.
	Clock poller.Clock

	// Logger receives diagnostics. Default: discard.
	Logger Logger
}

// Orchestrator owns the device cache and the three vendor pollers.
//
// Polling runs only while at least one consumer is connected. Poll results
// are merged into the cache; when anything changed the registered
// ChangeFunc receives enriched copies. Every non-empty result is also
// persisted in the background.
//
// Lock order: clientMu, then a poller's lock, then cacheMu.
type Orchestrator struct {
	pollers  []*poller.Poller
	byVendor map[device.Vendor]*poller.Poller
	quota    *poller.QuotaSource
	repo     device.Repository
	logger   Logger

	clientMu sync.Mutex
	clients  int
	stopped  bool

	cacheMu  sync.Mutex
	cache    *device.Cache
	onChange ChangeFunc

	persistWG sync.WaitGroup
}

// New creates an idle orchestrator.
//
// Parameters:
//   - cfg: Sources, schedules and persistence
//
// Returns:
//   - *Orchestrator: Idle until the first ClientConnected
//   - error: If a required dependency is missing
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Hue == nil || cfg.Nanoleaf == nil || cfg.SwitchBot == nil {
		return nil, fmt.Errorf("orchestrator: hue, nanoleaf and switchbot sources are required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("orchestrator: repository is required")
	}

	o := &Orchestrator{
		byVendor: make(map[device.Vendor]*poller.Poller, 3),
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cache:    device.NewCache(),
	}
	if o.logger == nil {
		o.logger = noopLogger{}
	}

	limit := cfg.SwitchBotDailyLimit
	if limit <= 0 {
		limit = poller.SwitchBotDailyLimit
	}
	factor := cfg.SwitchBotSafetyFactor
	if factor <= 0 {
		factor = poller.SwitchBotSafetyFactor
	}
	o.quota = poller.NewQuotaSource(cfg.SwitchBot, ratelimit.New(limit, factor))
	o.quota.SetLogger(o.logger)

	specs := []struct {
		vendor   device.Vendor
		interval time.Duration
		fallback time.Duration
		source   poller.Source
	}{
		{device.VendorHue, cfg.HueInterval, poller.HueInterval, cfg.Hue},
		{device.VendorNanoleaf, cfg.NanoleafInterval, poller.NanoleafInterval, cfg.Nanoleaf},
		{device.VendorSwitchBot, cfg.SwitchBotInterval, poller.SwitchBotInterval, o.quota},
	}
	for _, s := range specs {
		interval := s.interval
		if interval <= 0 {
			interval = s.fallback
		}
		p, err := poller.New(poller.Config{
			Vendor:         s.vendor,
			Interval:       interval,
			Source:         s.source,
			OnResult:       o.handleResult,
			OnUnconfigured: o.handleUnconfigured,
			Clock:          cfg.Clock,
			Logger:         o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s poller: %w", s.vendor, err)
		}
		o.pollers = append(o.pollers, p)
		o.byVendor[s.vendor] = p
	}

	return o, nil
}

// SetOnDeviceChange registers the change callback, replacing any previous one.
// The callback runs on a poll goroutine with the cache locked; it must not
// call back into the orchestrator.
func (o *Orchestrator) SetOnDeviceChange(fn ChangeFunc) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()
	o.onChange = fn
}

// ClientConnected registers one consumer. The first consumer starts all
// three pollers.
func (o *Orchestrator) ClientConnected() {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()

	if o.stopped {
		return
	}

	o.clients++
	if o.clients == 1 {
		o.logger.Info("first client connected, starting pollers")
		for _, p := range o.pollers {
			p.Start()
		}
	}
}

// ClientDisconnected releases one consumer. When the count returns to zero
// all pollers stop; the cache is kept. Extra calls are no-ops.
func (o *Orchestrator) ClientDisconnected() {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()

	if o.clients == 0 {
		return
	}

	o.clients--
	if o.clients == 0 {
		o.logger.Info("last client disconnected, stopping pollers")
		for _, p := range o.pollers {
			p.Stop()
		}
	}
}

// ClientCount returns the number of connected consumers.
func (o *Orchestrator) ClientCount() int {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()
	return o.clients
}

// IsPolling reports whether the pollers are running.
func (o *Orchestrator) IsPolling() bool {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()
	return o.clients > 0 && !o.stopped
}

// GetAllDevices returns every cached device, enriched.
//
// It never triggers a poll; before the first cycle completes the result
// is empty. If enrichment fails the devices carry default placement.
func (o *Orchestrator) GetAllDevices(ctx context.Context) []device.EnrichedDevice {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	all := o.cache.GetAllDevices()
	return device.Enrich(all, o.lookupEnrichment(ctx))
}

// GetDevice returns one cached device, enriched.
// Returns device.ErrDeviceNotFound if it is not cached.
func (o *Orchestrator) GetDevice(ctx context.Context, id string) (device.EnrichedDevice, error) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	snap, err := o.cache.GetDevice(id)
	if err != nil {
		return device.EnrichedDevice{}, err
	}
	return device.Enrich([]device.Snapshot{snap}, o.lookupEnrichment(ctx))[0], nil
}

// TriggerImmediateRefresh asks the poller owning id to poll now.
//
// IDs starting "hue-" go to Hue, "switchbot-" to SwitchBot and anything
// else to Nanoleaf. A no-op while polling is idle.
func (o *Orchestrator) TriggerImmediateRefresh(id string) {
	vendor := device.VendorForID(id)
	p, ok := o.byVendor[vendor]
	if !ok {
		return
	}
	o.logger.Debug("immediate refresh requested", "device_id", id, "vendor", vendor)
	p.TriggerImmediate()
}

// RemoveDevice drops id from the cache, for devices whose integration no
// longer knows them (an unpaired Nanoleaf controller). Subscribers are
// notified with an empty changed list and the remaining devices.
//
// Returns:
//   - bool: false if id was not cached
func (o *Orchestrator) RemoveDevice(id string) bool {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	if !o.cache.RemoveDevice(id) {
		return false
	}
	o.logger.Info("device removed from cache", "device_id", id)
	if o.onChange != nil {
		o.notifyLocked(nil)
	}
	return true
}

// RateLimitStats returns the SwitchBot quota usage.
func (o *Orchestrator) RateLimitStats() ratelimit.Stats {
	return o.quota.Limiter().Stats()
}

// Stop halts all pollers and waits for in-flight cycles and background
// persistence to finish. The orchestrator cannot be restarted.
func (o *Orchestrator) Stop() {
	o.clientMu.Lock()
	o.stopped = true
	for _, p := range o.pollers {
		p.Stop()
	}
	o.clientMu.Unlock()

	for _, p := range o.pollers {
		p.Wait()
	}
	o.persistWG.Wait()
	o.logger.Info("orchestrator stopped")
}

// handleResult merges one poll result. Runs with the poller's lock held.
func (o *Orchestrator) handleResult(vendor device.Vendor, snapshots []device.Snapshot) {
	o.cacheMu.Lock()
	changed := o.cache.UpdateDevices(snapshots)
	if len(changed) > 0 && o.onChange != nil {
		o.notifyLocked(changed)
	}
	o.cacheMu.Unlock()

	if len(changed) > 0 {
		o.logger.Debug("devices changed", "vendor", vendor, "changed", len(changed), "polled", len(snapshots))
	}

	if len(snapshots) > 0 {
		o.persist(vendor, snapshots)
	}
}

// handleUnconfigured evicts a vendor that lost its configuration.
func (o *Orchestrator) handleUnconfigured(vendor device.Vendor) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	removed := o.cache.RemoveDevicesByType(vendor)
	if removed == 0 {
		return
	}
	o.logger.Info("evicted devices of unconfigured integration", "vendor", vendor, "removed", removed)
	if o.onChange != nil {
		o.notifyLocked(nil)
	}
}

// notifyLocked enriches changed and the full cache and invokes the
// callback. Caller must hold cacheMu.
func (o *Orchestrator) notifyLocked(changed []device.Snapshot) {
	records := o.lookupEnrichment(context.Background())
	all := o.cache.GetAllDevices()
	o.onChange(device.Enrich(changed, records), device.Enrich(all, records))
}

// lookupEnrichment returns enrichment records, or nil (defaults) on failure.
func (o *Orchestrator) lookupEnrichment(ctx context.Context) []device.Enrichment {
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	records, err := o.repo.LookupEnrichment(ctx)
	if err != nil {
		o.logger.Warn("enrichment lookup failed, using defaults", "error", err)
		return nil
	}
	return records
}

// persist upserts snapshots on a detached goroutine.
func (o *Orchestrator) persist(vendor device.Vendor, snapshots []device.Snapshot) {
	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := o.repo.UpsertDevices(ctx, snapshots); err != nil {
			o.logger.Error("persisting poll result failed", "vendor", vendor, "devices", len(snapshots), "error", err)
		}
	}()
}
