// Package lifecycle drives recipes through their brew session states and
// keeps the sensor lock, the ingest pipeline and the reading history in step
// with them.
package lifecycle

import (
	"fmt"

	"github.com/sweeney/brew-monitor/internal/recipe"
)

// Action is a user-initiated status change.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionAbort    Action = "abort"
	ActionRebrew   Action = "rebrew"
)

type transition struct {
	from []recipe.Status
	to   recipe.Status
}

var transitions = map[Action]transition{
	ActionStart:    {from: []recipe.Status{recipe.StatusDraft}, to: recipe.StatusBrewing},
	ActionResume:   {from: []recipe.Status{recipe.StatusPaused}, to: recipe.StatusBrewing},
	ActionRebrew:   {from: []recipe.Status{recipe.StatusCompleted}, to: recipe.StatusBrewing},
	ActionPause:    {from: []recipe.Status{recipe.StatusBrewing}, to: recipe.StatusPaused},
	ActionComplete: {from: []recipe.Status{recipe.StatusBrewing}, to: recipe.StatusCompleted},
	ActionAbort:    {from: []recipe.Status{recipe.StatusBrewing, recipe.StatusPaused}, to: recipe.StatusDraft},
}

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("unknown action %q", name)
	}
	return a, nil
}

// Next returns the status reached by applying a to from.
func Next(from recipe.Status, a Action) (recipe.Status, error) {
	t, ok := transitions[a]
	if !ok {
		return from, fmt.Errorf("unknown action %q", a)
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return from, fmt.Errorf("%s from %s: %w", a, from, ErrInvalidTransition)
}
