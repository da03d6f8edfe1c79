package leveling

import (
	"math"
	"time"
)

// ScaledSessionHours converts a session's wall-clock duration into streamed
// hours under the configured time acceleration.
func ScaledSessionHours(elapsed time.Duration, acceleration float64) float64 {
	if acceleration <= 0 {
		acceleration = 1
	}
	return elapsed.Hours() * acceleration
}

// StreamerLevel returns the level after a session ends: the base level plus
// however many whole hoursPerLevel boundaries the session crossed. Crediting
// only crossed boundaries keeps the level monotonic across restarts no
// matter how sessions split the hours.
func StreamerLevel(baseLevel int, priorHours, sessionHours, hoursPerLevel float64) int {
	if hoursPerLevel <= 0 {
		return baseLevel
	}
	before := math.Floor(priorHours / hoursPerLevel)
	after := math.Floor((priorHours + sessionHours) / hoursPerLevel)
	return baseLevel + int(after-before)
}
