package entity

import "testing"

func rec(id, class, state string) Record {
	return Record{UniqueID: id, DeviceClass: class, Icon: "mdi:blur", Unit: "µg/m³", State: state}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	changes := r.Sync("dev", []Record{rec("dev-pm2_5", "pm2_5", "14.3")})
	if len(changes) != 1 || changes[0].Transition != Created {
		t.Fatalf("expected one created change, got %+v", changes)
	}

	changes = r.Sync("dev", []Record{rec("dev-pm2_5", "pm2_5", "15.0")})
	if len(changes) != 1 || changes[0].Transition != Updated {
		t.Fatalf("expected one updated change, got %+v", changes)
	}

	changes = r.Sync("dev", nil)
	if len(changes) != 1 || changes[0].Transition != Unavailable {
		t.Fatalf("expected one unavailable change, got %+v", changes)
	}
	got, ok := r.Get("dev-pm2_5")
	if !ok {
		t.Fatal("record must survive an offline cycle")
	}
	if got.State != StateUnavailable || got.Available() {
		t.Errorf("state = %q, want %q", got.State, StateUnavailable)
	}
	if got.DeviceClass != "pm2_5" || got.Icon != "mdi:blur" || got.Unit != "µg/m³" {
		t.Errorf("identity fields changed: %+v", got)
	}

	if changes := r.Sync("dev", nil); len(changes) != 0 {
		t.Errorf("already unavailable record should not change again, got %+v", changes)
	}

	changes = r.Sync("dev", []Record{rec("dev-pm2_5", "pm2_5", "3.0")})
	if len(changes) != 1 || changes[0].Transition != Updated {
		t.Fatalf("expected update on return, got %+v", changes)
	}
	if got, _ := r.Get("dev-pm2_5"); got.State != "3.0" {
		t.Errorf("state = %q, want 3.0", got.State)
	}
}

func TestRegistryOfflineBeforeCreate(t *testing.T) {
	r := NewRegistry()
	if changes := r.Sync("dev", nil); len(changes) != 0 {
		t.Fatalf("offline device must not create records, got %+v", changes)
	}
	if len(r.All()) != 0 {
		t.Fatal("registry should be empty")
	}
}

func TestRegistryPrune(t *testing.T) {
	r := NewRegistry()
	r.Sync("a", []Record{rec("a-temperature", "temperature", "21.8")})
	r.Sync("b", []Record{rec("b-temperature", "temperature", "19.0")})

	changes := r.Prune([]string{"a"})
	if len(changes) != 1 || changes[0].Record.UniqueID != "b-temperature" {
		t.Fatalf("expected b to be removed, got %+v", changes)
	}

	all := r.All()
	if len(all) != 1 || all[0].UniqueID != "a-temperature" {
		t.Fatalf("unexpected records: %+v", all)
	}
}

func TestRecordFloat(t *testing.T) {
	tests := []struct {
		state string
		want  float64
		ok    bool
	}{
		{"21.8", 21.8, true},
		{"366", 366, true},
		{StateUnavailable, 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := Record{State: tt.state}.Float()
		if ok != tt.ok || got != tt.want {
			t.Errorf("Float(%q) = %v, %v; want %v, %v", tt.state, got, ok, tt.want, tt.ok)
		}
	}
}
