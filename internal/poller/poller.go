package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Source is the vendor capability a Poller drives.
type Source interface {
	// IsConfigured reports whether the integration can be polled at all.
	// A false result skips the cycle silently.
	IsConfigured(ctx context.Context) (bool, error)

	// FetchDevices returns the current snapshot of every device.
	FetchDevices(ctx context.Context) ([]device.Snapshot, error)
}

// ResultFunc receives the snapshots of one completed cycle.
type ResultFunc func(vendor device.Vendor, snapshots []device.Snapshot)

// Logger is the logging interface used by the poller.
// This allows injecting a structured logger without creating a dependency.
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

// Config holds configuration for a Poller.
type Config struct {
	// Vendor tags every result and log line.
	Vendor device.Vendor

	// Interval is the delay between the end of one cycle and the start of
	// the next.
	Interval time.Duration

	// Source is polled once per cycle.
	Source Source

	// OnResult receives every non-stale cycle result. Called with the
	// poller's lock held; it must not call back into the poller.
	OnResult ResultFunc

	// OnUnconfigured is called when a cycle finds the source no longer
	// configured after an earlier cycle found it configured. Optional.
	OnUnconfigured func(vendor device.Vendor)

	// Clock schedules cycles. Default: wall clock.
	Clock Clock

	// Logger receives cycle diagnostics. Default: discard.
	Logger Logger
}

// Poller runs a Source on a fixed interval.
//
// Cycles within one poller never overlap: the next cycle is armed only
// once the current one has completed. Each Start opens a new generation;
// a cycle whose generation has ended (Stop was called while it was in
// flight) has its result discarded.
type Poller struct {
	vendor         device.Vendor
	interval       time.Duration
	source         Source
	onResult       ResultFunc
	onUnconfigured func(device.Vendor)
	clock          Clock
	logger         Logger

	mu          sync.Mutex
	running     bool
	gen         uint64
	cancel      context.CancelFunc // cancels the current generation's context
	ctx         context.Context
	timer       Timer
	timerSeq    uint64 // identifies the armed timer; bumped on arm and cancel
	inFlight    bool
	inFlightGen uint64
	rerun       bool // a trigger arrived while a cycle was in flight
	configured  bool // result of the last completed IsConfigured check

	wg sync.WaitGroup
}

// New creates a poller. Call Start to begin polling.
//
// Parameters:
//   - cfg: Poller configuration; Vendor, Interval, Source and OnResult are required
//
// Returns:
//   - *Poller: Idle poller
//   - error: ErrInvalidConfig if a required field is missing
func New(cfg Config) (*Poller, error) {
	if cfg.Vendor == "" || cfg.Interval <= 0 || cfg.Source == nil || cfg.OnResult == nil {
		return nil, fmt.Errorf("%w: vendor, positive interval, source and result handler are required", ErrInvalidConfig)
	}

	p := &Poller{
		vendor:         cfg.Vendor,
		interval:       cfg.Interval,
		source:         cfg.Source,
		onResult:       cfg.OnResult,
		onUnconfigured: cfg.OnUnconfigured,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}
	if p.clock == nil {
		p.clock = realClock{}
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	return p, nil
}

// Vendor returns the vendor this poller serves.
func (p *Poller) Vendor() device.Vendor {
	return p.vendor
}

// Interval returns the configured poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// IsRunning reports whether the poller is started.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start runs one cycle immediately and keeps polling every interval.
// It is a no-op if the poller is already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.gen++
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.logger.Debug("poller started", "vendor", p.vendor, "interval", p.interval)

	if p.inFlight {
		// A cycle from the previous generation is still out; it will be
		// discarded and this generation's first cycle follows it.
		p.rerun = true
		return
	}
	p.launchLocked()
}

// Stop cancels the pending schedule and marks the poller idle.
//
// No cycle starts after Stop returns. A cycle already in flight has its
// context cancelled and its result discarded. Stop is a no-op if the
// poller is idle.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.running = false
	p.gen++
	p.rerun = false
	p.cancelTimerLocked()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.logger.Debug("poller stopped", "vendor", p.vendor)
}

// TriggerImmediate runs a cycle now and restarts the interval from that
// cycle's completion.
//
// If a cycle is already in flight it is not overlapped; another cycle runs
// as soon as it completes. A no-op if the poller is idle.
func (p *Poller) TriggerImmediate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	if p.inFlight {
		p.rerun = true
		return
	}

	p.cancelTimerLocked()
	p.launchLocked()
}

// Wait blocks until every launched cycle goroutine has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// launchLocked starts a cycle for the current generation.
// Caller must hold p.mu.
func (p *Poller) launchLocked() {
	p.inFlight = true
	p.inFlightGen = p.gen

	gen, ctx := p.gen, p.ctx
	p.wg.Add(1)
	go p.runCycle(ctx, gen)
}

// runCycle performs one fetch and hands the result over.
func (p *Poller) runCycle(ctx context.Context, gen uint64) {
	defer p.wg.Done()

	configured, snapshots, err := p.poll(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlightGen == gen {
		p.inFlight = false
	}

	if !p.running || gen != p.gen {
		p.logger.Debug("discarding stale poll result", "vendor", p.vendor, "generation", gen)
		if p.running && p.rerun {
			// Start arrived while this stale cycle was out.
			p.rerun = false
			p.launchLocked()
		}
		return
	}

	p.deliverLocked(configured, snapshots, err)

	if p.rerun {
		p.rerun = false
		p.launchLocked()
		return
	}
	p.armLocked()
}

// poll runs the source, converting panics into errors.
func (p *Poller) poll(ctx context.Context) (configured bool, snapshots []device.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSourcePanic, r)
		}
	}()

	configured, err = p.source.IsConfigured(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("checking configuration: %w", err)
	}
	if !configured {
		return false, nil, nil
	}

	snapshots, err = p.source.FetchDevices(ctx)
	if err != nil {
		return true, nil, fmt.Errorf("fetching devices: %w", err)
	}
	return true, snapshots, nil
}

// deliverLocked routes a cycle outcome. Caller must hold p.mu.
func (p *Poller) deliverLocked(configured bool, snapshots []device.Snapshot, err error) {
	if err != nil {
		p.logger.Warn("poll cycle failed", "vendor", p.vendor, "error", err)
		return
	}

	if !configured {
		wasConfigured := p.configured
		p.configured = false
		if wasConfigured && p.onUnconfigured != nil {
			p.logger.Info("integration no longer configured", "vendor", p.vendor)
			p.onUnconfigured(p.vendor)
		}
		return
	}
	p.configured = true

	p.logger.Debug("poll cycle complete", "vendor", p.vendor, "devices", len(snapshots))
	p.onResult(p.vendor, snapshots)
}

// armLocked schedules the next cycle one interval from now.
// Caller must hold p.mu.
func (p *Poller) armLocked() {
	p.timerSeq++
	seq := p.timerSeq
	p.timer = p.clock.AfterFunc(p.interval, func() { p.onTimer(seq) })
}

// cancelTimerLocked drops the pending schedule. Caller must hold p.mu.
func (p *Poller) cancelTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.timerSeq++
}

// onTimer fires a scheduled cycle unless the timer was superseded.
func (p *Poller) onTimer(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || seq != p.timerSeq || p.inFlight {
		return
	}
	p.timer = nil
	p.launchLocked()
}
