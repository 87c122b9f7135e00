package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/ratelimit"
)

func enriched(id string, on bool) device.EnrichedDevice {
	return device.EnrichedDevice{
		Snapshot: device.Snapshot{
			ID:        id,
			Name:      id,
			Vendor:    device.VendorForID(id),
			Reachable: true,
			State:     device.State{On: on, Brightness: 40},
		},
		Groups: []device.GroupRef{},
	}
}

type countingLogger struct {
	mu    sync.Mutex
	warns int
	errs  int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}
func (l *countingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errs++
	l.mu.Unlock()
}

func TestFanout_DeliversInOrderAndSurvivesPanics(t *testing.T) {
	var order []string
	logger := &countingLogger{}

	f := NewFanout(
		SinkFunc(func(changed, all []device.EnrichedDevice) { order = append(order, "first") }),
		nil,
		SinkFunc(func(changed, all []device.EnrichedDevice) { panic("broken sink") }),
		SinkFunc(func(changed, all []device.EnrichedDevice) {
			order = append(order, "last")
			if len(changed) != 1 || len(all) != 2 {
				t.Errorf("last sink got %d changed, %d all", len(changed), len(all))
			}
		}),
	)
	f.SetLogger(logger)

	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (nil ignored)", f.Len())
	}

	f.Notify([]device.EnrichedDevice{enriched("hue-1", true)}, []device.EnrichedDevice{enriched("hue-1", true), enriched("hue-2", false)})

	if len(order) != 2 || order[0] != "first" || order[1] != "last" {
		t.Errorf("delivery order = %v, want [first last]", order)
	}
	if logger.errs != 1 {
		t.Errorf("logged %d errors, want 1", logger.errs)
	}
}

type fakeRetained struct {
	mu      sync.Mutex
	topics  []string
	bodies  map[string][]byte
	err     error
	blocked chan struct{}
}

func newFakeRetained() *fakeRetained {
	return &fakeRetained{bodies: make(map[string][]byte)}
}

func (f *fakeRetained) PublishRetained(topic string, payload []byte) error {
	if f.blocked != nil {
		<-f.blocked
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.bodies[topic] = payload
	return f.err
}

func (f *fakeRetained) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

func TestStatePublisher_PublishesChangedDevices(t *testing.T) {
	pub := newFakeRetained()
	sp := NewStatePublisher(pub)
	sp.Start()

	sp.DevicesChanged([]device.EnrichedDevice{enriched("switchbot-B", true), enriched("hue-A", false)}, nil)
	sp.Stop()

	got := pub.published()
	want := []string{"graylogic/core/device/hue-A/state", "graylogic/core/device/switchbot-B/state"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("published %v, want %v", got, want)
	}

	var body device.EnrichedDevice
	if err := json.Unmarshal(pub.bodies[want[1]], &body); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if body.ID != "switchbot-B" || !body.State.On {
		t.Errorf("payload = %+v", body)
	}
}

func TestStatePublisher_CoalescesToLatestState(t *testing.T) {
	pub := newFakeRetained()
	pub.blocked = make(chan struct{})
	sp := NewStatePublisher(pub)
	sp.Start()

	// The first publish blocks, so later changes pile up behind it.
	sp.DevicesChanged([]device.EnrichedDevice{enriched("hue-1", false)}, nil)
	time.Sleep(20 * time.Millisecond)
	sp.DevicesChanged([]device.EnrichedDevice{enriched("hue-2", false)}, nil)
	sp.DevicesChanged([]device.EnrichedDevice{enriched("hue-2", true)}, nil)
	close(pub.blocked)
	sp.Stop()

	got := pub.published()
	if len(got) != 2 {
		t.Fatalf("published %v, want hue-1 then one hue-2", got)
	}
	var body device.EnrichedDevice
	_ = json.Unmarshal(pub.bodies["graylogic/core/device/hue-2/state"], &body)
	if !body.State.On {
		t.Error("hue-2 published stale state, want latest (on)")
	}
}

func TestStatePublisher_IgnoresRemovalOnlyAndLogsFailures(t *testing.T) {
	pub := newFakeRetained()
	pub.err = mqtt.ErrNotConnected
	logger := &countingLogger{}
	sp := NewStatePublisher(pub)
	sp.SetLogger(logger)
	sp.Start()

	sp.DevicesChanged([]device.EnrichedDevice{}, []device.EnrichedDevice{enriched("hue-1", true)})
	sp.DevicesChanged([]device.EnrichedDevice{enriched("hue-1", true)}, nil)
	sp.Stop()
	sp.Stop()

	if got := pub.published(); len(got) != 1 {
		t.Errorf("published %v, want only hue-1", got)
	}
	if logger.warns != 1 {
		t.Errorf("logged %d warnings, want 1", logger.warns)
	}
}

type fakeRecorder struct {
	states []influxdb.DeviceState
	quotas []influxdb.Quota
}

func (f *fakeRecorder) WriteDeviceState(s influxdb.DeviceState) { f.states = append(f.states, s) }
func (f *fakeRecorder) WriteQuota(q influxdb.Quota)             { f.quotas = append(f.quotas, q) }

func TestTelemetry_WritesChangedDevices(t *testing.T) {
	rec := &fakeRecorder{}
	tel := NewTelemetry(rec)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tel.now = func() time.Time { return at }

	kitchen := enriched("hue-1", true)
	kitchen.RoomName = device.Ptr("Kitchen")
	tel.DevicesChanged([]device.EnrichedDevice{kitchen, enriched("nanoleafX", false)}, nil)

	want := []influxdb.DeviceState{
		{DeviceID: "hue-1", Vendor: "hue", Room: "Kitchen", On: true, Brightness: 40, Reachable: true, At: at},
		{DeviceID: "nanoleafX", Vendor: "nanoleaf", On: false, Brightness: 40, Reachable: true, At: at},
	}
	if len(rec.states) != len(want) {
		t.Fatalf("wrote %d samples, want %d", len(rec.states), len(want))
	}
	for i := range want {
		if rec.states[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, rec.states[i], want[i])
		}
	}
}

type fakeJSON struct {
	topic    string
	v        any
	retained bool
	err      error
}

func (f *fakeJSON) PublishJSON(topic string, v any, retained bool) error {
	f.topic, f.v, f.retained = topic, v, retained
	return f.err
}

func TestQuotaReporter_Report(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakeJSON{}
	stats := ratelimit.Stats{Count: 6, Limit: 8000, Remaining: 7994}

	r := NewQuotaReporter(QuotaReporterConfig{
		Vendor:    device.VendorSwitchBot,
		Stats:     func() ratelimit.Stats { return stats },
		Recorder:  rec,
		Publisher: pub,
	})
	r.Report()

	if len(rec.quotas) != 1 || rec.quotas[0] != (influxdb.Quota{Vendor: "switchbot", Count: 6, Limit: 8000, Remaining: 7994}) {
		t.Errorf("quotas = %+v", rec.quotas)
	}
	if pub.topic != "graylogic/system/ratelimit/switchbot" || !pub.retained {
		t.Errorf("published to %q retained=%v", pub.topic, pub.retained)
	}
	if got, ok := pub.v.(ratelimit.Stats); !ok || got != stats {
		t.Errorf("published %#v, want stats", pub.v)
	}
}

func TestQuotaReporter_RunUntilCancelled(t *testing.T) {
	rec := &fakeRecorder{}
	var mu sync.Mutex
	calls := 0
	r := NewQuotaReporter(QuotaReporterConfig{
		Vendor: device.VendorSwitchBot,
		Stats: func() ratelimit.Stats {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return ratelimit.Stats{}
		},
		Recorder:  rec,
		Publisher: &fakeJSON{err: errors.New("offline")},
		Interval:  5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls < 2 {
		t.Errorf("sampled %d times, want at least 2", calls)
	}
}

type fakeRefresher struct{ ids []string }

func (f *fakeRefresher) TriggerImmediateRefresh(id string) { f.ids = append(f.ids, id) }

type fakeSubscriber struct {
	topic   string
	handler mqtt.MessageHandler
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	f.topic, f.handler = topic, h
	return f.err
}

func TestRefreshListener(t *testing.T) {
	ref := &fakeRefresher{}
	sub := &fakeSubscriber{}
	l := NewRefreshListener(ref, nil)

	if err := l.Subscribe(sub, 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.topic != "graylogic/command/refresh/+" {
		t.Errorf("subscribed to %q", sub.topic)
	}

	if err := sub.handler("graylogic/command/refresh/hue-3", nil); err != nil {
		t.Errorf("handler error = %v", err)
	}
	if err := sub.handler("graylogic/command/refresh/", nil); err == nil {
		t.Error("handler accepted empty device id")
	}
	if len(ref.ids) != 1 || ref.ids[0] != "hue-3" {
		t.Errorf("triggered %v, want [hue-3]", ref.ids)
	}

	sub.err = mqtt.ErrNotConnected
	if err := l.Subscribe(sub, 1); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want wrapped ErrNotConnected", err)
	}
}
