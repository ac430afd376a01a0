package player

import "errors"

// Speeds is the ordered set of supported playback speeds.
var Speeds = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 2.0}

// DefaultSpeed is normal playback speed.
const DefaultSpeed = 1.0

var (
	// ErrSpeedUnavailable is returned when speed is changed in audio-only mode.
	ErrSpeedUnavailable = errors.New("speed control not available in audio-only mode")
	// ErrInvalidSpeed is returned for a speed outside Speeds.
	ErrInvalidSpeed = errors.New("unsupported playback speed")
)

// NextSpeed returns the speed after current, wrapping after the last one.
// Unknown values restart from the first speed.
func NextSpeed(current float64) float64 {
	i := speedIndex(current)
	return Speeds[(i+1)%len(Speeds)]
}

// ValidSpeed reports whether speed is one of Speeds.
func ValidSpeed(speed float64) bool {
	return speedIndex(speed) >= 0
}

func speedIndex(speed float64) int {
	for i, s := range Speeds {
		if s == speed {
			return i
		}
	}
	return -1
}
