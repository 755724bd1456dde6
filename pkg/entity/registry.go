package entity

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Transition is what happened to a record during one Sync.
type Transition string

const (
	Created     Transition = "created"
	Updated     Transition = "updated"
	Unavailable Transition = "unavailable"
	Removed     Transition = "removed"
)

// Change reports a record after a transition.
type Change struct {
	Transition Transition
	Record     Record
}

// Registry keeps the long-lived records. Once created, a record only toggles
// between a value and unavailable until its device is pruned.
type Registry struct {
	mu      sync.RWMutex
	records map[string]Record
	devices map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		records: map[string]Record{},
		devices: map[string][]string{},
	}
}

// Sync applies one poll cycle's records for a device. Known records absent
// from the cycle are marked unavailable; their identity, class, icon and unit
// stay as they were.
func (r *Registry) Sync(device string, records []Record) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []Change
	seen := map[string]bool{}
	for _, rec := range records {
		rec.Device = device
		rec.Attributes = maps.Clone(rec.Attributes)
		seen[rec.UniqueID] = true

		t := Updated
		if _, ok := r.records[rec.UniqueID]; !ok {
			t = Created
			r.devices[device] = append(r.devices[device], rec.UniqueID)
		}
		r.records[rec.UniqueID] = rec
		changes = append(changes, Change{Transition: t, Record: rec})
	}

	for _, id := range r.devices[device] {
		if seen[id] {
			continue
		}
		rec := r.records[id]
		if rec.State == StateUnavailable {
			continue
		}
		rec.State = StateUnavailable
		r.records[id] = rec
		changes = append(changes, Change{Transition: Unavailable, Record: rec})
	}

	return changes
}

// Prune removes the records of every device not in keep.
func (r *Registry) Prune(keep []string) []Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []Change
	for device, ids := range r.devices {
		if slices.Contains(keep, device) {
			continue
		}
		for _, id := range ids {
			changes = append(changes, Change{Transition: Removed, Record: r.records[id]})
			delete(r.records, id)
		}
		delete(r.devices, device)
	}
	return changes
}

func (r *Registry) Get(uniqueID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[uniqueID]
	return rec, ok
}

// All returns every record sorted by unique id.
func (r *Registry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(a.UniqueID, b.UniqueID)
	})
	return out
}
