// README: Location records, one-shot capture payloads, and accuracy grading.
package locationverify

import (
	"time"

	"serene/internal/types"
)

// SourceUser marks records produced by an explicit customer share.
const SourceUser = "user"

// Record is a persisted location share. It is written once when the
// customer shares their position and is never mutated afterwards.
type Record struct {
	ID         types.ID
	BookingID  types.ID
	ChatID     types.ID
	Latitude   float64
	Longitude  float64
	Accuracy   float64 // meters
	Address    string  // reverse-geocoded hint, may be empty
	Source     string
	CapturedAt time.Time
}

// Capture is a one-shot, high-accuracy position fix reported by the
// client. Cached fixes are not permitted; CapturedAt must be fresh.
type Capture struct {
	Lat        float64
	Lng        float64
	Accuracy   float64
	CapturedAt time.Time
}

// AcceptableAccuracy is the ceiling (meters) under which a share is
// considered acceptable. Informational only, never an automatic reject.
const AcceptableAccuracy = 500.0

// ClassifyAccuracy grades a GPS accuracy radius for display.
func ClassifyAccuracy(meters float64) string {
	switch {
	case meters < 50:
		return "Excellent"
	case meters < 100:
		return "Good"
	case meters < 500:
		return "Fair"
	default:
		return "Poor"
	}
}

// IsAcceptable reports whether the accuracy is within the acceptable
// ceiling.
func IsAcceptable(meters float64) bool {
	return meters <= AcceptableAccuracy
}
