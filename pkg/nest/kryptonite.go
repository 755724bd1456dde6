package nest

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
)

// Snapshot namespaces read by TemperatureSensors.
const (
	nsKryptonite  = "kryptonite"
	nsWhere       = "where"
	nsRCSSettings = "rcs_settings"
)

type kryptonite struct {
	StructureID        string      `json:"structure_id"`
	WhereID            string      `json:"where_id"`
	CurrentTemperature json.Number `json:"current_temperature"`
	BatteryLevel       json.Number `json:"battery_level"`
}

type structureWheres struct {
	Wheres []struct {
		WhereID string `json:"where_id"`
		Name    string `json:"name"`
	} `json:"wheres"`
}

type rcsSettings struct {
	AssociatedSensors []string `json:"associated_rcs_sensors"`
	ActiveSensors     []string `json:"active_rcs_sensors"`
}

// SensorUniqueID is the entity id of a remote temperature sensor.
func SensorUniqueID(uuid string) string {
	return "kryptonite_" + uuid
}

// TemperatureSensors derives one record per remote temperature sensor in the
// snapshot, sorted by sensor id. Sensors that fail to decode are skipped.
func TemperatureSensors(snap Snapshot) []entity.Record {
	sensors := snap[nsKryptonite]
	ids := make([]string, 0, len(sensors))
	for id := range sensors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []entity.Record
	for _, uuid := range ids {
		var k kryptonite
		if err := json.Unmarshal(sensors[uuid], &k); err != nil {
			continue
		}

		thermostat, active := owningThermostat(snap, uuid)
		attrs := map[string]any{
			"battery_level": numberOrNil(k.BatteryLevel),
			"active":        active,
			"thermostat":    nil,
		}
		if thermostat != "" {
			attrs["thermostat"] = thermostat
		}

		state := k.CurrentTemperature.String()
		if state == "" {
			state = entity.StateUnavailable
		}

		records = append(records, entity.Record{
			UniqueID:    SensorUniqueID(uuid),
			Name:        fmt.Sprintf("Nest %s Temperature Sensor", location(snap, k)),
			DeviceClass: "temperature",
			Icon:        "mdi:thermometer",
			Unit:        "°C",
			State:       state,
			Attributes:  attrs,
			Device:      SensorUniqueID(uuid),
		})
	}
	return records
}

// location resolves the sensor's where id to a room name, falling back to
// the where id itself.
func location(snap Snapshot, k kryptonite) string {
	var sw structureWheres
	if raw, ok := snap[nsWhere][k.StructureID]; ok {
		_ = json.Unmarshal(raw, &sw)
	}
	for _, w := range sw.Wheres {
		if w.WhereID == k.WhereID {
			return w.Name
		}
	}
	return k.WhereID
}

// owningThermostat finds the thermostat the sensor is associated with and
// whether the sensor is one of its active sensors.
func owningThermostat(snap Snapshot, uuid string) (string, bool) {
	fqdn := "kryptonite." + uuid

	ids := make([]string, 0, len(snap[nsRCSSettings]))
	for id := range snap[nsRCSSettings] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var rcs rcsSettings
		if err := json.Unmarshal(snap[nsRCSSettings][id], &rcs); err != nil {
			continue
		}
		if slices.Contains(rcs.AssociatedSensors, fqdn) {
			return id, slices.Contains(rcs.ActiveSensors, fqdn)
		}
	}
	return "", false
}

func numberOrNil(n json.Number) any {
	if n == "" {
		return nil
	}
	if v, err := n.Float64(); err == nil {
		return v
	}
	return nil
}
