package recommend

import (
	"math"
	"time"
)

// Decay returns the exponential time-decay factor for an event daysAgo days
// in the past. The weight halves every halfLife days. Future timestamps decay
// to nothing extra; they count as now.
func Decay(daysAgo, halfLife float64) float64 {
	if daysAgo < 0 {
		return 1.0
	}
	if halfLife <= 0 {
		return 1.0
	}
	return math.Pow(0.5, daysAgo/halfLife)
}

// DaysSince returns the age of ts in fractional days relative to now. Zero or
// future timestamps report zero age.
func DaysSince(now, ts time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	days := now.Sub(ts).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}
