package awair

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceType is the vendor's hardware generation.
type DeviceType string

const (
	TypeGen1    DeviceType = "awair"
	TypeGen2    DeviceType = "awair-r2"
	TypeMint    DeviceType = "awair-mint"
	TypeGlow    DeviceType = "awair-glow"
	TypeOmni    DeviceType = "awair-omni"
	TypeElement DeviceType = "awair-element"
)

// Device describes one Awair unit.
type Device struct {
	ID         int        `json:"deviceId"`
	Type       DeviceType `json:"deviceType"`
	Name       string     `json:"name"`
	MacAddress string     `json:"macAddress"`
	Location   string     `json:"locationName"`

	// Online is set by the poller once it knows whether the device reported.
	Online bool `json:"-"`
}

// UUID is the vendor's stable device identifier.
func (d Device) UUID() string {
	return fmt.Sprintf("%s_%d", d.Type, d.ID)
}

// Kind is a vendor sensor component.
type Kind string

const (
	KindScore       Kind = "score"
	KindTemperature Kind = "temp"
	KindHumidity    Kind = "humid"
	KindCO2         Kind = "co2"
	KindVOC         Kind = "voc"
	KindDust        Kind = "dust"
	KindPM25        Kind = "pm25"
	KindPM10        Kind = "pm10"
	KindIlluminance Kind = "lux"
	KindSoundLevel  Kind = "spl_a"
)

var knownKinds = map[Kind]bool{
	KindScore:       true,
	KindTemperature: true,
	KindHumidity:    true,
	KindCO2:         true,
	KindVOC:         true,
	KindDust:        true,
	KindPM25:        true,
	KindPM10:        true,
	KindIlluminance: true,
	KindSoundLevel:  true,
}

// Reading is a raw value as the vendor sent it, plus its 0-4 index when the
// vendor scores that component.
type Reading struct {
	Value json.Number
	Index *float64
}

// ReadingSet holds what one device reported. A missing kind means the
// hardware has no such sensor.
type ReadingSet map[Kind]Reading

func (rs ReadingSet) Has(k Kind) bool {
	_, ok := rs[k]
	return ok
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

type airDataResponse struct {
	Data []airData `json:"data"`
}

type airData struct {
	Timestamp time.Time   `json:"timestamp"`
	Score     json.Number `json:"score"`
	Sensors   []component `json:"sensors"`
	Indices   []index     `json:"indices"`
}

type component struct {
	Comp  Kind        `json:"comp"`
	Value json.Number `json:"value"`
}

type index struct {
	Comp  Kind    `json:"comp"`
	Value float64 `json:"value"`
}

// ParseAirData turns a latest air-data document into a ReadingSet. An empty
// data array means the device is offline and yields an empty set.
func ParseAirData(raw []byte) (ReadingSet, error) {
	var resp airDataResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode air data: %w", err)
	}
	return resp.readings(), nil
}

func (r airDataResponse) readings() ReadingSet {
	rs := ReadingSet{}
	if len(r.Data) == 0 {
		return rs
	}

	latest := r.Data[0]
	if latest.Score != "" {
		rs[KindScore] = Reading{Value: latest.Score}
	}
	for _, s := range latest.Sensors {
		if !knownKinds[s.Comp] || s.Comp == KindScore || s.Value == "" {
			continue
		}
		rs[s.Comp] = Reading{Value: s.Value}
	}
	for _, i := range latest.Indices {
		reading, ok := rs[i.Comp]
		if !ok || i.Comp == KindScore {
			continue
		}
		v := i.Value
		reading.Index = &v
		rs[i.Comp] = reading
	}
	return rs
}
