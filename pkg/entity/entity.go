// Package entity holds the host-side view of sensor entities: the records the
// adapters produce and a registry that tracks them across poll cycles.
package entity

import "strconv"

// StateUnavailable is the state of an entity whose device stopped reporting.
const StateUnavailable = "unavailable"

// Record is one sensor entity as exposed to the host.
type Record struct {
	UniqueID    string         `json:"unique_id"`
	Name        string         `json:"name"`
	DeviceClass string         `json:"device_class"`
	Icon        string         `json:"icon"`
	Unit        string         `json:"unit,omitempty"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`

	// Device groups records that come from the same physical device.
	Device string `json:"device"`
}

// Available reports whether the record carries a current reading.
func (r Record) Available() bool {
	return r.State != StateUnavailable
}

// Float parses the state as a number.
func (r Record) Float() (float64, bool) {
	if !r.Available() {
		return 0, false
	}
	v, err := strconv.ParseFloat(r.State, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
