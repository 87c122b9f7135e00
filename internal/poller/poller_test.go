package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

const testInterval = 10 * time.Second

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) waitPending(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.pending() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pending timers = %d, want %d", c.pending(), n)
}

// fakeSource is a scriptable Source.
type fakeSource struct {
	mu          sync.Mutex
	configured  bool
	snapshots   []device.Snapshot
	err         error
	panicMsg    string
	block       chan struct{} // when non-nil, FetchDevices waits on it
	entered     chan struct{} // signalled when FetchDevices begins
	fetchCalls  int
	configCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		configured: true,
		snapshots:  []device.Snapshot{{ID: "hue-1", Vendor: device.VendorHue}},
		entered:    make(chan struct{}, 16),
	}
}

func (s *fakeSource) IsConfigured(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configCalls++
	return s.configured, nil
}

func (s *fakeSource) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	s.mu.Lock()
	s.fetchCalls++
	block, snaps, err, panicMsg := s.block, s.snapshots, s.err, s.panicMsg
	s.mu.Unlock()

	s.entered <- struct{}{}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snaps, err
}

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

type harness struct {
	p       *Poller
	clock   *fakeClock
	source  *fakeSource
	results chan []device.Snapshot
	unconf  chan device.Vendor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{},
		source:  newFakeSource(),
		results: make(chan []device.Snapshot, 16),
		unconf:  make(chan device.Vendor, 16),
	}
	p, err := New(Config{
		Vendor:   device.VendorHue,
		Interval: testInterval,
		Source:   h.source,
		OnResult: func(_ device.Vendor, s []device.Snapshot) {
			h.results <- s
		},
		OnUnconfigured: func(v device.Vendor) { h.unconf <- v },
		Clock:          h.clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.p = p
	t.Cleanup(func() {
		p.Stop()
		p.Wait()
	})
	return h
}

func (h *harness) waitResult(t *testing.T) []device.Snapshot {
	t.Helper()
	select {
	case r := <-h.results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll result")
		return nil
	}
}

func (h *harness) expectNoResult(t *testing.T) {
	t.Helper()
	select {
	case r := <-h.results:
		t.Fatalf("unexpected poll result: %v", device.IDs(r))
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Vendor: device.VendorHue})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestPoller_StartRunsImmediateCycle(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	got := h.waitResult(t)

	if len(got) != 1 || got[0].ID != "hue-1" {
		t.Errorf("result = %v, want [hue-1]", device.IDs(got))
	}
	if !h.p.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	h.clock.waitPending(t, 1)
}

func TestPoller_StartTwiceSingleSchedule(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	h.p.Start()
	h.waitResult(t)
	h.clock.waitPending(t, 1)
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 1 {
		t.Fatalf("fetches after double Start = %d, want 1", got)
	}

	h.clock.Advance(testInterval)
	h.waitResult(t)
	h.clock.waitPending(t, 1)
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 2 {
		t.Errorf("fetches after one interval = %d, want 2", got)
	}
}

func TestPoller_TriggerImmediateResetsPhase(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	h.waitResult(t)
	h.clock.waitPending(t, 1) // due at t=10s

	h.clock.Advance(4 * time.Second) // t=4s
	h.p.TriggerImmediate()
	h.waitResult(t)
	h.clock.waitPending(t, 1) // due at t=14s

	h.clock.Advance(6 * time.Second) // t=10s: original schedule, must not fire
	h.expectNoResult(t)
	if got := h.source.fetches(); got != 2 {
		t.Fatalf("fetches at original due time = %d, want 2", got)
	}

	h.clock.Advance(4 * time.Second) // t=14s
	h.waitResult(t)
	if got := h.source.fetches(); got != 3 {
		t.Errorf("fetches one interval after trigger = %d, want 3", got)
	}
}

func TestPoller_TriggerImmediateWhileIdle(t *testing.T) {
	h := newHarness(t)

	h.p.TriggerImmediate()
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
}

func TestPoller_TriggerDuringInFlightReruns(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.source.set(func(s *fakeSource) { s.block = release })

	h.p.Start()
	<-h.source.entered
	h.p.TriggerImmediate()
	h.p.TriggerImmediate()

	h.source.set(func(s *fakeSource) { s.block = nil })
	close(release)

	h.waitResult(t)
	h.waitResult(t)
	h.clock.waitPending(t, 1)
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 2 {
		t.Errorf("fetches = %d, want 2 (no overlap, one rerun)", got)
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.source.set(func(s *fakeSource) { s.block = release })

	h.p.Start()
	<-h.source.entered
	h.p.Stop()
	close(release)
	h.p.Wait()

	h.expectNoResult(t)
	if h.clock.pending() != 0 {
		t.Errorf("pending timers after Stop = %d, want 0", h.clock.pending())
	}
	if h.p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestPoller_StopCancelsSchedule(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	h.waitResult(t)
	h.clock.waitPending(t, 1)

	h.p.Stop()
	h.clock.Advance(testInterval)
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 1 {
		t.Errorf("fetches after Stop = %d, want 1", got)
	}
}

func TestPoller_RestartAfterStop(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	h.waitResult(t)
	h.p.Stop()
	h.p.Stop()

	h.p.Start()
	h.waitResult(t)
	h.clock.waitPending(t, 1)

	if got := h.source.fetches(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestPoller_RestartWhileStaleCycleInFlight(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.source.set(func(s *fakeSource) {
		s.block = release
		s.snapshots = []device.Snapshot{{ID: "hue-old", Vendor: device.VendorHue}}
	})

	h.p.Start()
	<-h.source.entered
	h.source.set(func(s *fakeSource) {
		s.block = nil
		s.snapshots = []device.Snapshot{{ID: "hue-new", Vendor: device.VendorHue}}
	})

	h.p.Stop()
	h.p.Start()
	close(release)

	got := h.waitResult(t)
	if len(got) != 1 || got[0].ID != "hue-new" {
		t.Errorf("result = %v, want only the new generation's cycle", device.IDs(got))
	}
	h.clock.waitPending(t, 1)
}

func TestPoller_NotConfiguredSkips(t *testing.T) {
	h := newHarness(t)
	h.source.set(func(s *fakeSource) { s.configured = false })

	h.p.Start()
	h.clock.waitPending(t, 1)
	h.expectNoResult(t)

	if got := h.source.fetches(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
	select {
	case v := <-h.unconf:
		t.Errorf("OnUnconfigured(%s) called without a prior configured cycle", v)
	default:
	}
}

func TestPoller_ConfiguredToUnconfigured(t *testing.T) {
	h := newHarness(t)

	h.p.Start()
	h.waitResult(t)
	h.clock.waitPending(t, 1)

	h.source.set(func(s *fakeSource) { s.configured = false })
	h.clock.Advance(testInterval)

	select {
	case v := <-h.unconf:
		if v != device.VendorHue {
			t.Errorf("OnUnconfigured vendor = %s, want hue", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnUnconfigured not called")
	}

	h.clock.waitPending(t, 1)
	h.clock.Advance(testInterval)
	h.clock.waitPending(t, 1)
	select {
	case <-h.unconf:
		t.Error("OnUnconfigured called twice for one transition")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPoller_ErrorKeepsSchedule(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *fakeSource)
	}{
		{"fetch error", func(s *fakeSource) { s.err = errors.New("bridge unreachable") }},
		{"source panic", func(s *fakeSource) { s.panicMsg = "boom" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.source.set(tt.setup)

			h.p.Start()
			<-h.source.entered
			h.clock.waitPending(t, 1)
			h.expectNoResult(t)

			h.clock.Advance(testInterval)
			<-h.source.entered
			h.clock.waitPending(t, 1)

			if got := h.source.fetches(); got != 2 {
				t.Errorf("fetches = %d, want 2", got)
			}
		})
	}
}
