package logic

import (
	"math"
	"testing"
)

func TestClassifyTemperatureFBoundaries(t *testing.T) {
	tests := []struct {
		tempF float64
		want  TempLevel
	}{
		{49.9, TempDormant},
		{50.0, TempCritical},
		{64.9, TempCritical},
		{65.0, TempWarning},
		{74.9, TempWarning},
		{75.0, TempOptimal},
		{79.9, TempOptimal},
		{80.0, TempWarning},
		{85.0, TempWarning},
		{85.1, TempCritical},
		{90.0, TempCritical},
		{90.1, TempLethal},
		{-40, TempDormant},
		{math.NaN(), TempUnknown},
		{math.Inf(1), TempUnknown},
		{math.Inf(-1), TempUnknown},
	}

	for _, tt := range tests {
		got := ClassifyTemperatureF(tt.tempF)
		if got.Level != tt.want {
			t.Errorf("ClassifyTemperatureF(%v) = %s, want %s", tt.tempF, got.Level, tt.want)
		}
		if got.Title == "" || got.Message == "" || got.Color == "" {
			t.Errorf("ClassifyTemperatureF(%v) returned incomplete result %+v", tt.tempF, got)
		}
	}
}

func TestClassifyTemperatureFColors(t *testing.T) {
	if c := ClassifyTemperatureF(95).Color; c != "#B71C1C" {
		t.Errorf("lethal color = %s, want #B71C1C", c)
	}
	if c := ClassifyTemperatureF(77).Color; c != "#388E3C" {
		t.Errorf("optimal color = %s, want #388E3C", c)
	}
}

func TestClassifyHarvestBoundaries(t *testing.T) {
	tests := []struct {
		ph         float64
		want       HarvestLevel
		outOfRange bool
	}{
		{2.0, HarvestVinegary, false},
		{3.49, HarvestVinegary, false},
		{3.5, HarvestTangy, false},
		{3.99, HarvestTangy, false},
		{4.0, HarvestSweet, false},
		{4.5, HarvestSweet, false},
		{4.51, HarvestUnknown, true},
		{math.NaN(), HarvestUnknown, false},
		{math.Inf(1), HarvestUnknown, false},
	}

	for _, tt := range tests {
		got := ClassifyHarvest(tt.ph)
		if got.Level != tt.want {
			t.Errorf("ClassifyHarvest(%v) = %s, want %s", tt.ph, got.Level, tt.want)
		}
		if got.OutOfRange != tt.outOfRange {
			t.Errorf("ClassifyHarvest(%v).OutOfRange = %v, want %v", tt.ph, got.OutOfRange, tt.outOfRange)
		}
	}
}

func TestClassifyStageBoundaries(t *testing.T) {
	tests := []struct {
		ph   float64
		want Stage
	}{
		{7.0, StageInitial},
		{4.5, StageInitial},
		{4.49, StageActive},
		{3.5, StageActive},
		{3.49, StageOptimal},
		{2.5, StageOptimal},
		{2.49, StageTasteTest},
		{0.01, StageTasteTest},
		{0, StageUnknown},
		{-1, StageUnknown},
		{math.NaN(), StageUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyStage(tt.ph); got.Stage != tt.want {
			t.Errorf("ClassifyStage(%v) = %s, want %s", tt.ph, got.Stage, tt.want)
		}
	}
}

func TestTemperatureConversion(t *testing.T) {
	if f := CelsiusToFahrenheit(25); f != 77 {
		t.Errorf("CelsiusToFahrenheit(25) = %v, want 77", f)
	}
	if c := FahrenheitToCelsius(212); c != 100 {
		t.Errorf("FahrenheitToCelsius(212) = %v, want 100", c)
	}
}

func TestSeverityOrdering(t *testing.T) {
	order := []TempLevel{TempOptimal, TempWarning, TempDormant, TempCritical, TempLethal}
	for i := 1; i < len(order); i++ {
		if order[i].Severity() <= order[i-1].Severity() {
			t.Errorf("%s should be more severe than %s", order[i], order[i-1])
		}
	}
	if TempUnknown.Severity() != 0 {
		t.Errorf("unknown severity = %d, want 0", TempUnknown.Severity())
	}
}
