package awair

import (
	"fmt"

	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
)

// Device classes exposed to the host.
const (
	ClassAirQualityIndex = "air_quality_index"
	ClassTemperature     = "temperature"
	ClassHumidity        = "humidity"
	ClassCO2             = "carbon_dioxide"
	ClassVOC             = "volatile_organic_compounds"
	ClassPM25            = "pm2_5"
	ClassPM10            = "pm10"
	ClassIlluminance     = "illuminance"
	ClassSoundLevel      = "sound_level"
)

// Units and icons. The table below does not vary with hardware generation.
const (
	UnitCelsius      = "°C"
	UnitPercent      = "%"
	UnitPPM          = "ppm"
	UnitPPB          = "ppb"
	UnitMicrograms   = "µg/m³"
	UnitLux          = "lux"
	UnitDecibelA     = "dBa"
	IconBlur         = "mdi:blur"
	IconThermometer  = "mdi:thermometer"
	IconWaterPercent = "mdi:water-percent"
	IconCloud        = "mdi:cloud"
	IconLightbulb    = "mdi:lightbulb"
	IconEar          = "mdi:ear-hearing"
)

type sensorType struct {
	kind  Kind
	class string
	label string
	icon  string
	unit  string
}

// sensorTypes is ordered; MapDevice emits records in this order.
var sensorTypes = []sensorType{
	{KindScore, ClassAirQualityIndex, "Air Quality Index", IconBlur, ""},
	{KindTemperature, ClassTemperature, "Temperature", IconThermometer, UnitCelsius},
	{KindHumidity, ClassHumidity, "Humidity", IconWaterPercent, UnitPercent},
	{KindCO2, ClassCO2, "Carbon Dioxide", IconCloud, UnitPPM},
	{KindVOC, ClassVOC, "Volatile Organic Compounds", IconCloud, UnitPPB},
	{KindPM25, ClassPM25, "PM2.5", IconBlur, UnitMicrograms},
	{KindPM10, ClassPM10, "PM10", IconBlur, UnitMicrograms},
	{KindIlluminance, ClassIlluminance, "Illuminance", IconLightbulb, UnitLux},
	{KindSoundLevel, ClassSoundLevel, "Sound Level", IconEar, UnitDecibelA},
}

// UniqueID is the stable entity id for a device's sensor class.
func UniqueID(d Device, class string) string {
	return fmt.Sprintf("%s-%s", d.UUID(), class)
}

// MapDevice projects a device's readings onto sensor records. An offline
// device, or one without an overall score, produces none.
func MapDevice(d Device, readings ReadingSet) []entity.Record {
	if !d.Online || !readings.Has(KindScore) {
		return nil
	}
	readings = aliasDust(readings)

	var records []entity.Record
	for _, st := range sensorTypes {
		reading, ok := readings[st.kind]
		if !ok {
			continue
		}

		var attrs map[string]any
		if reading.Index != nil && st.kind != KindScore {
			attrs = map[string]any{st.class + "_awair_index": *reading.Index}
		}

		records = append(records, entity.Record{
			UniqueID:    UniqueID(d, st.class),
			Name:        d.Name + " " + st.label,
			DeviceClass: st.class,
			Icon:        st.icon,
			Unit:        st.unit,
			State:       reading.Value.String(),
			Attributes:  attrs,
			Device:      d.UUID(),
		})
	}
	return records
}

// aliasDust exposes a first-generation dust reading as both pm2.5 and pm10,
// unless the device already reports a specific pm2.5 value.
func aliasDust(readings ReadingSet) ReadingSet {
	dust, ok := readings[KindDust]
	if !ok || readings.Has(KindPM25) {
		return readings
	}

	out := make(ReadingSet, len(readings)+1)
	for k, v := range readings {
		out[k] = v
	}
	out[KindPM25] = dust
	if !readings.Has(KindPM10) {
		out[KindPM10] = dust
	}
	return out
}
