// Package recipe holds the recipe model and its persistence.
package recipe

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a recipe.
type Status int

const (
	StatusDraft Status = iota
	StatusBrewing
	StatusPaused
	StatusCompleted
)

var statusNames = [...]string{
	StatusDraft:     "draft",
	StatusBrewing:   "brewing",
	StatusPaused:    "paused",
	StatusCompleted: "completed",
}

// String returns the persisted name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus reads a persisted status. Missing or unknown values are Draft.
func ParseStatus(name string) Status {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == name {
			return Status(i)
		}
	}
	return StatusDraft
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	*s = ParseStatus(string(text))
	return nil
}

// Details are the user-editable parts of a recipe.
type Details struct {
	RecipeName      string `json:"recipeName"`
	TeaLeaf         string `json:"teaLeaf"`
	Water           string `json:"water"`
	Sugar           string `json:"sugar"`
	Scoby           string `json:"scoby"`
	KombuchaStarter string `json:"kombuchaStarter"`
	Flavor          string `json:"flavor"`
	Notes           string `json:"notes"`
}

// Recipe is one user's brew recipe and its current session state.
type Recipe struct {
	ID     string `json:"recipeId"`
	UserID string `json:"userId"`
	Details

	Status           Status     `json:"status"`
	CreatedDate      time.Time  `json:"createdDate"`
	BrewingStartDate *time.Time `json:"brewingStartDate"`
	CompletionDate   *time.Time `json:"completionDate"`
}
