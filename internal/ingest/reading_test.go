package ingest

import (
	"testing"
	"time"

	"github.com/sweeney/brew-monitor/internal/store"
)

func TestTemperatureInput(t *testing.T) {
	ts := "2026-06-01T12:00:00Z"
	tests := []struct {
		name    string
		fields  store.Fields
		wantF   float64
		wantErr error
	}{
		{"fahrenheit", store.Fields{FieldTemperatureF: 77.0, store.FieldTimestamp: ts}, 77, nil},
		{"celsius only", store.Fields{FieldTemperatureC: 25.0, store.FieldTimestamp: ts}, 77, nil},
		{"fahrenheit wins", store.Fields{FieldTemperatureC: 0.0, FieldTemperatureF: 80.0, store.FieldTimestamp: ts}, 80, nil},
		{"no value", store.Fields{store.FieldTimestamp: ts}, 0, errNoValue},
		{"no timestamp", store.Fields{FieldTemperatureF: 77.0}, 0, errNoTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := temperatureInput(store.Document{ID: "d", Fields: tt.fields})
			if err != tt.wantErr {
				t.Fatalf("err: got %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if in.TempF == nil || *in.TempF != tt.wantF {
				t.Errorf("TempF: got %v, want %v", in.TempF, tt.wantF)
			}
			if in.PH != nil {
				t.Error("PH should be nil")
			}
			if !in.Time.Equal(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)) {
				t.Errorf("Time: got %v", in.Time)
			}
		})
	}
}

func TestPHInput(t *testing.T) {
	in, err := phInput(store.Document{Fields: store.Fields{FieldPHValue: 3.4, store.FieldTimestamp: float64(1780315200000)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.PH == nil || *in.PH != 3.4 {
		t.Errorf("PH: got %v, want 3.4", in.PH)
	}
	if in.TempF != nil {
		t.Error("TempF should be nil")
	}

	if _, err := phInput(store.Document{Fields: store.Fields{FieldPHValue: "3.4", store.FieldTimestamp: float64(0)}}); err != errNoValue {
		t.Errorf("string pH: got %v, want errNoValue", err)
	}
}
