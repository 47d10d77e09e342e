package ingest

import (
	"errors"

	"github.com/sweeney/brew-monitor/internal/logic"
	"github.com/sweeney/brew-monitor/internal/store"
)

// Reading document fields written by the rig bridge.
const (
	FieldRecipeID     = "recipe_id"
	FieldUserID       = "user_id"
	FieldSensorID     = "sensor_id"
	FieldTemperatureC = "temperature_c"
	FieldTemperatureF = "temperature_f"
	FieldPHValue      = "ph_value"
)

// Stream names used in logs and metrics.
const (
	StreamTemperature = "temperature"
	StreamPH          = "ph"
)

var (
	errNoTimestamp = errors.New("reading has no timestamp")
	errNoValue     = errors.New("reading has no value")
)

// temperatureInput reads a temperature document. Fahrenheit wins when both
// units are present; a Celsius-only reading is converted.
func temperatureInput(doc store.Document) (logic.Input, error) {
	at, ok := doc.Time(store.FieldTimestamp)
	if !ok {
		return logic.Input{}, errNoTimestamp
	}
	f, ok := doc.Float(FieldTemperatureF)
	if !ok {
		c, hasC := doc.Float(FieldTemperatureC)
		if !hasC {
			return logic.Input{}, errNoValue
		}
		f = logic.CelsiusToFahrenheit(c)
	}
	return logic.Input{TempF: &f, Time: at}, nil
}

func phInput(doc store.Document) (logic.Input, error) {
	at, ok := doc.Time(store.FieldTimestamp)
	if !ok {
		return logic.Input{}, errNoTimestamp
	}
	ph, ok := doc.Float(FieldPHValue)
	if !ok {
		return logic.Input{}, errNoValue
	}
	return logic.Input{PH: &ph, Time: at}, nil
}
