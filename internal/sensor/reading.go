// Package sensor bridges the physical rig into the document store.
//
// The rig publishes raw JSON readings over MQTT without knowing which recipe
// is brewing. The Bridge attributes every reading to the current holder of
// the sensor lock and appends it to that recipe's reading collections.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sweeney/brew-monitor/internal/logic"
)

// ErrMalformed is returned for payloads that cannot be stored.
var ErrMalformed = errors.New("malformed rig reading")

// Reading is one message from the rig.
type Reading struct {
	SensorID     string     `json:"sensor_id"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
	TemperatureF *float64   `json:"temperature_f,omitempty"`
	PHValue      *float64   `json:"ph_value,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// HasTemperature reports whether the reading carries a temperature.
func (r Reading) HasTemperature() bool {
	return r.TemperatureC != nil || r.TemperatureF != nil
}

// HasPH reports whether the reading carries a pH value.
func (r Reading) HasPH() bool {
	return r.PHValue != nil
}

// Temperatures returns the reading in both units, deriving the missing one.
func (r Reading) Temperatures() (c, f float64) {
	switch {
	case r.TemperatureC != nil && r.TemperatureF != nil:
		return *r.TemperatureC, *r.TemperatureF
	case r.TemperatureF != nil:
		return logic.FahrenheitToCelsius(*r.TemperatureF), *r.TemperatureF
	case r.TemperatureC != nil:
		return *r.TemperatureC, logic.CelsiusToFahrenheit(*r.TemperatureC)
	}
	return math.NaN(), math.NaN()
}

// ParseReading decodes a rig payload. A reading must carry at least one value.
func ParseReading(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !r.HasTemperature() && !r.HasPH() {
		return Reading{}, fmt.Errorf("%w: no temperature or pH value", ErrMalformed)
	}
	return r, nil
}
