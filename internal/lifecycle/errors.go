package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an action does not apply to the
	// recipe's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrLockUnavailable is returned when the sensor lock could not be read
	// while entering brewing. The transition is denied.
	ErrLockUnavailable = errors.New("sensor lock unavailable")
)

// AlreadyBrewingError is returned when another recipe holds the sensor lock.
type AlreadyBrewingError struct {
	RecipeID string
}

func (e *AlreadyBrewingError) Error() string {
	return fmt.Sprintf("another recipe is already brewing: %s", e.RecipeID)
}
