package logic

import "math"

// Temperature band edges in °F.
const (
	dormantBelowF = 50
	lethalAboveF  = 90
	safeLowF      = 65
	safeHighF     = 85
	optimalLowF   = 75
	optimalHighF  = 80
)

// ClassifyTemperatureF maps a Fahrenheit reading to its alert level.
// Checks run from most to least dangerous, so the first match wins.
func ClassifyTemperatureF(tempF float64) TempResult {
	switch {
	case math.IsNaN(tempF) || math.IsInf(tempF, 0):
		return TempResult{TempUnknown, "No reading", "Waiting for a valid sensor reading…", "#9E9E9E"}
	case tempF < dormantBelowF:
		return TempResult{TempDormant, "Dormant (<50°F)", "Fermentation may stall. Warm to 75–80°F.", "#546E7A"}
	case tempF > lethalAboveF:
		return TempResult{TempLethal, "Lethal (>90°F)", "Risk of SCOBY death. Cool down immediately!", "#B71C1C"}
	case tempF < safeLowF || tempF > safeHighF:
		return TempResult{TempCritical, "Critical (<65°F or >85°F)", "Outside safe range. Adjust the range to be between 65°F and 85°F.", "#D32F2F"}
	case (tempF >= safeLowF && tempF < optimalLowF) || (tempF >= optimalHighF && tempF <= safeHighF):
		return TempResult{TempWarning, "Warning (65–75°F or 80–85°F)", "Not ideal. Aim for 75–80°F.", "#F57C00"}
	case tempF >= optimalLowF && tempF < optimalHighF:
		return TempResult{TempOptimal, "Optimal (75–80°F)", "Perfect brewing temperature.", "#388E3C"}
	}
	return TempResult{TempUnknown, "Unknown", "Could not classify temperature.", "#9E9E9E"}
}

// ClassifyHarvest maps a pH reading to taste guidance for bottling.
func ClassifyHarvest(ph float64) HarvestResult {
	switch {
	case math.IsNaN(ph) || math.IsInf(ph, 0):
		return HarvestResult{Level: HarvestUnknown, Title: "No pH reading", Message: "Waiting for a valid pH reading…"}
	case ph < 3.5:
		return HarvestResult{Level: HarvestVinegary, Title: "Vinegary (pH < 3.5)", Message: "Very tart and sour. Consider harvesting or diluting."}
	case ph < 4.0:
		return HarvestResult{Level: HarvestTangy, Title: "Tangy (pH 3.5–4.0)", Message: "Nicely tart. This is a common harvest range."}
	case ph <= 4.5:
		return HarvestResult{Level: HarvestSweet, Title: "Sweet (pH 4.0–4.5)", Message: "Still quite sweet. Let it ferment longer if you want more tang."}
	}
	return HarvestResult{Level: HarvestUnknown, Title: "Outside range", Message: "pH is outside the expected kombucha range.", OutOfRange: true}
}

// ClassifyStage maps a pH reading to the fermentation stage.
// The ranges overlap ClassifyHarvest on purpose; the two answer different questions.
func ClassifyStage(ph float64) StageResult {
	switch {
	case math.IsNaN(ph) || math.IsInf(ph, 0):
		return StageResult{StageUnknown, "No Reading", "Waiting for pH sensor data", "#9E9E9E"}
	case ph >= 4.5:
		return StageResult{StageInitial, "Initial", "Fermentation just started. Sweet tea taste.", "#2196F3"}
	case ph >= 3.5:
		return StageResult{StageActive, "Active", "Fermentation in progress. Becoming tangy.", "#FF9800"}
	case ph >= 2.5:
		return StageResult{StageOptimal, "Optimal", "Perfect for harvesting! Balanced flavor.", "#4CAF50"}
	case ph > 0:
		return StageResult{StageTasteTest, "Taste Test", "Very tart and acidic. Taste before bottling.", "#F44336"}
	}
	return StageResult{StageUnknown, "Unknown", "pH reading out of range", "#9E9E9E"}
}

// CelsiusToFahrenheit converts a Celsius reading for classification.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts a Fahrenheit reading for display.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
