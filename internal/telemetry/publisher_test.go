package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// fakeMQTT records state snapshots and command results by kind.
type fakeMQTT struct {
	mu       sync.Mutex
	kinds    []string
	payloads []any
	err      error
}

func (f *fakeMQTT) PublishState(v any) error  { return f.record("state", v) }
func (f *fakeMQTT) PublishResult(v any) error { return f.record("result", v) }

func (f *fakeMQTT) record(kind string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, v)
	return f.err
}

func (f *fakeMQTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.kinds)
}

type point struct {
	subsystem string
	fields    map[string]any
}

type fakeInflux struct {
	mu     sync.Mutex
	points []point
}

func (f *fakeInflux) WriteSubsystem(subsystem string, fields map[string]any, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, point{subsystem, fields})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublisher_MirrorsUpdates(t *testing.T) {
	m := &fakeMQTT{}
	w := &fakeInflux{}
	p := NewPublisher(m, w)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	store := vehicle.NewStore()
	store.OnUpdate(p.HandleUpdate)

	store.Execute(context.Background(), "lights_set_brightness", map[string]any{"brightness": 40})
	waitFor(t, func() bool { return p.Published() == 1 })

	if m.count() != 1 || m.kinds[0] != "state" {
		t.Errorf("mqtt publishes = %v", m.kinds)
	}
	if st, ok := m.payloads[0].(vehicle.State); !ok || st.Lights.Brightness != 40 {
		t.Errorf("payload = %#v", m.payloads[0])
	}

	w.mu.Lock()
	if len(w.points) != 1 || w.points[0].subsystem != "lights" || w.points[0].fields["brightness"] != 40 {
		t.Errorf("influx points = %+v", w.points)
	}
	w.mu.Unlock()

	store.Reset(context.Background())
	waitFor(t, func() bool { return p.Published() == 2 })

	w.mu.Lock()
	if len(w.points) != 1+len(vehicle.Subsystems) {
		t.Errorf("reset wrote %d points, want one per subsystem", len(w.points)-1)
	}
	w.mu.Unlock()

	cancel()
	<-p.Done()
}

func TestPublisher_SkipsStaleVersions(t *testing.T) {
	m := &fakeMQTT{}
	p := NewPublisher(m, nil)

	p.publish(vehicle.Update{Action: "lights_dim", Version: 3})
	p.publish(vehicle.Update{Action: "lights_dim", Version: 2})
	p.publish(vehicle.Update{Action: "lights_dim", Version: 4})

	if m.count() != 2 || p.Published() != 2 {
		t.Errorf("published %d (mqtt %d), want 2", p.Published(), m.count())
	}
}

func TestPublisher_HandleUpdateNeverBlocks(t *testing.T) {
	p := NewPublisher(nil, nil)

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 100; i++ {
			p.HandleUpdate(context.Background(), vehicle.Update{Version: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleUpdate blocked without a running worker")
	}

	u := <-p.pending
	if u.Version != 100 {
		t.Errorf("pending version = %d, want the latest (100)", u.Version)
	}
}

func TestPublisher_SinkErrorsAreLogged(t *testing.T) {
	m := &fakeMQTT{err: errors.New("not connected")}
	p := NewPublisher(m, nil)

	p.publish(vehicle.Update{Action: "lights_dim", Version: 1})

	if p.Published() != 1 {
		t.Error("publish failure stopped the worker bookkeeping")
	}
}

func TestSubsystemFields(t *testing.T) {
	st := vehicle.NewState(vehicle.FactoryDefaults())

	tests := []struct {
		sub   vehicle.Subsystem
		key   string
		want  any
		count int
	}{
		{vehicle.Climate, "ac_enabled", 1, 6},
		{vehicle.Lights, "brightness", 80, 4},
		{vehicle.Seats, "driver_lumbar", 50, 10},
		{vehicle.Infotainment, "muted", 0, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.sub), func(t *testing.T) {
			fields := SubsystemFields(st, tt.sub)
			if len(fields) != tt.count {
				t.Errorf("%d fields, want %d", len(fields), tt.count)
			}
			if fields[tt.key] != tt.want {
				t.Errorf("%s = %v, want %v", tt.key, fields[tt.key], tt.want)
			}
		})
	}

	if SubsystemFields(st, "engine") != nil {
		t.Error("unknown subsystem returned fields")
	}
}
