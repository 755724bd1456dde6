package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nimdanitro/hub-sensors-go/pkg/awair"
	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
	"github.com/nimdanitro/hub-sensors-go/pkg/metrics"
	"github.com/nimdanitro/hub-sensors-go/pkg/nest"
)

type fakeAwair struct {
	mu         sync.Mutex
	devices    []awair.Device
	readings   map[string]awair.ReadingSet
	devicesErr error
	airErr     map[string]error
}

func (f *fakeAwair) Devices(context.Context) ([]awair.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.devicesErr
}

func (f *fakeAwair) AirData(_ context.Context, d awair.Device) (awair.ReadingSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.airErr[d.UUID()]; err != nil {
		return nil, err
	}
	return f.readings[d.UUID()], nil
}

type fakeNest struct {
	refreshes int
	snap      nest.Snapshot
}

func (f *fakeNest) RefreshSnapshot(context.Context) { f.refreshes++ }

func (f *fakeNest) Snapshot() nest.Snapshot { return f.snap }

var livingRoom = awair.Device{ID: 24947, Type: awair.TypeGen1, Name: "Living Room"}

func gen1() awair.ReadingSet {
	one := 1.0
	return awair.ReadingSet{
		awair.KindScore:       {Value: "88"},
		awair.KindTemperature: {Value: "21.8", Index: &one},
		awair.KindHumidity:    {Value: "41.59"},
		awair.KindCO2:         {Value: "654.0"},
		awair.KindVOC:         {Value: "366"},
		awair.KindDust:        {Value: "14.3", Index: &one},
	}
}

func newHub(opts ...Option) (*Hub, *entity.Registry) {
	reg := entity.NewRegistry()
	opts = append(opts, WithLogger(zap.NewNop()), WithMetrics(metrics.New(prometheus.NewRegistry())))
	return New(reg, opts...), reg
}

func TestPollAwairLifecycle(t *testing.T) {
	f := &fakeAwair{
		devices:  []awair.Device{livingRoom},
		readings: map[string]awair.ReadingSet{"awair_24947": gen1()},
	}
	h, reg := newHub(WithAwair(f))

	h.Poll(context.Background())
	if n := len(reg.All()); n != 7 {
		t.Fatalf("expected 7 records after the first poll, got %d", n)
	}
	pm10, ok := reg.Get("awair_24947-pm10")
	if !ok || pm10.State != "14.3" {
		t.Fatalf("pm10 = %+v", pm10)
	}

	// device goes offline
	f.readings["awair_24947"] = awair.ReadingSet{}
	h.Poll(context.Background())

	all := reg.All()
	if len(all) != 7 {
		t.Fatalf("offline device must keep its records, got %d", len(all))
	}
	for _, rec := range all {
		if rec.State != entity.StateUnavailable {
			t.Errorf("%s state = %q, want unavailable", rec.UniqueID, rec.State)
		}
	}
	temp, _ := reg.Get("awair_24947-temperature")
	if temp.Icon != awair.IconThermometer || temp.Unit != awair.UnitCelsius || temp.DeviceClass != awair.ClassTemperature {
		t.Errorf("identity changed while unavailable: %+v", temp)
	}

	// and comes back
	f.readings["awair_24947"] = gen1()
	h.Poll(context.Background())
	temp, _ = reg.Get("awair_24947-temperature")
	if temp.State != "21.8" {
		t.Errorf("temperature = %q after reconnect", temp.State)
	}
}

func TestPollAwairOfflineAtStartup(t *testing.T) {
	f := &fakeAwair{
		devices:  []awair.Device{livingRoom},
		readings: map[string]awair.ReadingSet{"awair_24947": {}},
	}
	h, reg := newHub(WithAwair(f))

	h.Poll(context.Background())
	if n := len(reg.All()); n != 0 {
		t.Fatalf("offline device must not create records, got %d", n)
	}
}

func TestPollAwairFailuresKeepState(t *testing.T) {
	f := &fakeAwair{
		devices:  []awair.Device{livingRoom},
		readings: map[string]awair.ReadingSet{"awair_24947": gen1()},
	}
	h, reg := newHub(WithAwair(f))
	h.Poll(context.Background())

	f.devicesErr = errors.New("boom")
	h.Poll(context.Background())
	if n := len(reg.All()); n != 7 {
		t.Fatalf("listing failure must not prune records, got %d", n)
	}

	f.devicesErr = nil
	f.airErr = map[string]error{"awair_24947": errors.New("timeout")}
	h.Poll(context.Background())
	if rec, _ := reg.Get("awair_24947-air_quality_index"); rec.State != "88" {
		t.Fatalf("fetch failure must keep the last state, got %q", rec.State)
	}
}

func TestPollPrunesRemovedDevices(t *testing.T) {
	f := &fakeAwair{
		devices:  []awair.Device{livingRoom},
		readings: map[string]awair.ReadingSet{"awair_24947": gen1()},
	}
	h, reg := newHub(WithAwair(f))
	h.Poll(context.Background())

	f.devices = nil
	h.Poll(context.Background())
	if n := len(reg.All()); n != 0 {
		t.Fatalf("removed device should be pruned, got %d records", n)
	}
}

func TestPollNest(t *testing.T) {
	n := &fakeNest{}
	h, reg := newHub(WithNest(n))

	h.Poll(context.Background())
	if n.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", n.refreshes)
	}
	if len(reg.All()) != 0 {
		t.Fatal("no snapshot yet, no records expected")
	}

	n.snap = nest.Snapshot{
		"kryptonite": {
			"AA": json.RawMessage(`{"structure_id":"s","where_id":"w","current_temperature":20.5}`),
		},
	}
	h.Poll(context.Background())

	rec, ok := reg.Get("kryptonite_AA")
	if !ok || rec.State != "20.5" {
		t.Fatalf("kryptonite record = %+v", rec)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	n := &fakeNest{}
	h, _ := newHub(WithNest(n))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx, 1<<40)
	if n.refreshes != 1 {
		t.Fatalf("Run should poll once before waiting, got %d", n.refreshes)
	}
}
