// README: Booking aggregate and status definitions.
package booking

import (
	"time"

	"serene/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"

	StatusCancelledNoLocation     Status = "cancelled_no_location"
	StatusCancelledLocationDenied Status = "cancelled_location_denied"
	StatusRejectedLocation        Status = "rejected_location"
	StatusCancelledOther          Status = "cancelled_other"
)

const (
	ProviderTypeTherapist = "therapist"
	ProviderTypePlace     = "place"
)

type Booking struct {
	ID               types.ID
	CustomerID       *types.ID // nil for guest bookings
	ProviderID       types.ID
	ProviderType     string
	ChatID           types.ID
	Status           Status
	TotalPrice       types.Money
	ServiceType      string
	DurationMin      int
	LocationShared   bool
	LocationAccuracy *float64
	CreatedAt        time.Time
	AcceptedAt       *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
	CancelledBy      *string
}

// cancelStatuses are the side-branch terminals reachable from pending or
// accepted.
var cancelStatuses = []Status{
	StatusCancelledNoLocation,
	StatusCancelledLocationDenied,
	StatusRejectedLocation,
	StatusCancelledOther,
}

// AllowedTransitions represents the booking state flow as code. Pending is
// the sole initial state; completed, rejected, and every cancelled variant
// are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   append([]Status{StatusAccepted, StatusRejected}, cancelStatuses...),
	StatusAccepted:  append([]Status{StatusConfirmed}, cancelStatuses...),
	StatusConfirmed: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

// IsCancel reports whether a status is one of the cancellation terminals.
func IsCancel(s Status) bool {
	for _, c := range cancelStatuses {
		if s == c {
			return true
		}
	}
	return false
}
