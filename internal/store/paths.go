package store

import (
	"fmt"
	"strings"
)

// Collection and field names shared with the mobile app.
const (
	UsersCollection         = "users"
	RecipesCollection       = "recipes"
	TemperatureReadings     = "temperature_readings"
	PHReadings              = "ph_readings"
	SensorControlCollection = "sensor_control"
	ActiveConfigID          = "active_config"
	FieldTimestamp          = "timestamp"
	FieldCreatedDate        = "createdDate"
)

// ActiveConfigPath is the singleton sensor lock document.
var ActiveConfigPath = Join(SensorControlCollection, ActiveConfigID)

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the collection and id of a document path.
func Split(path string) (collection, id string, err error) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return path[:i], path[i+1:], nil
}

// RecipesPath is the recipe collection of a user.
func RecipesPath(userID string) string {
	return Join(UsersCollection, userID, RecipesCollection)
}

// RecipePath is one recipe document.
func RecipePath(userID, recipeID string) string {
	return Join(RecipesPath(userID), recipeID)
}

// TemperatureReadingsPath is the temperature collection of a recipe.
func TemperatureReadingsPath(userID, recipeID string) string {
	return Join(RecipePath(userID, recipeID), TemperatureReadings)
}

// PHReadingsPath is the pH collection of a recipe.
func PHReadingsPath(userID, recipeID string) string {
	return Join(RecipePath(userID, recipeID), PHReadings)
}
