// README: Guard decision values and the account/menu status read model.
package guard

import (
	"time"

	"serene/internal/types"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Decision is the result of an authorization check. It is always returned
// as a value, never as an error: callers must branch on Allowed. Severity
// is informational only; a denial blocks the action regardless of it.
type Decision struct {
	Allowed  bool
	Reason   string
	Severity Severity
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func blocked(reason string, severity Severity) Decision {
	return Decision{Allowed: false, Reason: reason, Severity: severity}
}

// AccountStatus is the per-provider account/menu record consumed by the
// guard. It is owned and mutated by external account-management flows;
// the engine only ever reads it.
type AccountStatus struct {
	ProviderID         types.ID
	Status             string // "active", "suspended", ...
	DeactivationReason string
	BookingEnabled     bool
	ScheduleEnabled    bool
	PlanType           string // "basic", "pro", "premium"
	PlanExpiresAt      *time.Time
	GraceUntil         *time.Time
}

const accountActive = "active"

// BookingRef is the minimal booking view the guard needs for its
// pre-acceptance checks.
type BookingRef struct {
	ID         types.ID
	ProviderID types.ID
	Status     string
}

const bookingStatusPending = "pending"

// activeBookingStatuses are the statuses that count against the
// one-active-booking-per-customer limit.
var activeBookingStatuses = []string{"pending", "accepted", "confirmed"}
