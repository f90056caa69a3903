// README: Authorization guard; fail-closed decision functions over store reads.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"serene/internal/audit"
	"serene/internal/types"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// Store is the read surface the guard needs. Every method that fails is
// treated as a denial with critical severity; no code path may default to
// "allowed" on error.
type Store interface {
	GetAccountStatus(ctx context.Context, providerID types.ID) (*AccountStatus, error)
	HasUnpaidCommissions(ctx context.Context, providerID types.ID) (bool, error)
	HasActiveBooking(ctx context.Context, customerID types.ID) (bool, error)
	GetBookingRef(ctx context.Context, bookingID types.ID) (*BookingRef, error)
}

type Service struct {
	store Store
	audit audit.Sink
	now   func() time.Time
}

func NewService(store Store, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{store: store, audit: sink, now: time.Now}
}

// ProviderTypeTherapist is the only marketplace segment the guard applies
// to; bookings for places are admitted without checks.
const ProviderTypeTherapist = "therapist"

const reasonCheckFailed = "authorization check failed"

// CanCreateBooking decides whether a booking-creation request may proceed.
// customerID is nil for guest bookings, which skip the booking limit.
func (s *Service) CanCreateBooking(ctx context.Context, customerID *types.ID, providerID types.ID, providerType string) Decision {
	if providerType != ProviderTypeTherapist {
		return allowed()
	}
	if d := s.CanProviderAcceptWork(ctx, providerID); !d.Allowed {
		return d
	}
	if customerID != nil {
		if d := s.UnderBookingLimit(ctx, *customerID); !d.Allowed {
			return d
		}
	}
	return allowed()
}

// CanProviderAcceptWork runs the provider-side checks in order, short
// circuiting on the first failure.
func (s *Service) CanProviderAcceptWork(ctx context.Context, providerID types.ID) Decision {
	acct, err := s.store.GetAccountStatus(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return s.deny(ctx, "provider_check", providerID, blocked("account not found", SeverityError))
		}
		return s.denyOnError(ctx, "provider_check", providerID, err)
	}

	if acct.Status != accountActive {
		reason := "account is not active"
		if acct.DeactivationReason != "" {
			reason = fmt.Sprintf("account is not active: %s", acct.DeactivationReason)
		}
		return s.deny(ctx, "provider_check", providerID, blocked(reason, SeverityError))
	}
	if !acct.BookingEnabled {
		return s.deny(ctx, "provider_check", providerID, blocked("booking is currently disabled", SeverityWarning))
	}
	if !acct.ScheduleEnabled {
		return s.deny(ctx, "provider_check", providerID, blocked("schedule is currently disabled", SeverityWarning))
	}

	if acct.PlanType == "pro" {
		unpaid, err := s.store.HasUnpaidCommissions(ctx, providerID)
		if err != nil {
			return s.denyOnError(ctx, "provider_check", providerID, err)
		}
		if unpaid {
			return s.deny(ctx, "provider_check", providerID, blocked("unpaid commissions must be settled first", SeverityCritical))
		}
	}

	if acct.PlanType == "premium" && acct.PlanExpiresAt != nil {
		now := s.now()
		if now.After(*acct.PlanExpiresAt) {
			inGrace := acct.GraceUntil != nil && !now.After(*acct.GraceUntil)
			if !inGrace {
				return s.deny(ctx, "provider_check", providerID, blocked("plan expired", SeverityCritical))
			}
		}
	}

	return allowed()
}

// UnderBookingLimit enforces one active booking per customer.
func (s *Service) UnderBookingLimit(ctx context.Context, customerID types.ID) Decision {
	active, err := s.store.HasActiveBooking(ctx, customerID)
	if err != nil {
		return s.denyOnError(ctx, "booking_limit", customerID, err)
	}
	if active {
		return s.deny(ctx, "booking_limit", customerID, blocked("customers can have one active booking at a time", SeverityWarning))
	}
	return allowed()
}

// CanAcceptBooking decides whether a provider may accept a booking. The
// provider account is re-checked so that a suspension between creation and
// acceptance still blocks the transition.
func (s *Service) CanAcceptBooking(ctx context.Context, bookingID, providerID types.ID) Decision {
	if d := s.CanProviderAcceptWork(ctx, providerID); !d.Allowed {
		return d
	}

	ref, err := s.store.GetBookingRef(ctx, bookingID)
	if err != nil {
		return s.denyOnError(ctx, "accept_check", providerID, err)
	}
	if ref.Status != bookingStatusPending {
		return s.deny(ctx, "accept_check", providerID,
			blocked(fmt.Sprintf("booking is not pending (current status: %s)", ref.Status), SeverityWarning))
	}
	if ref.ProviderID != providerID {
		return s.deny(ctx, "accept_check", providerID, blocked("booking is not assigned to you", SeverityError))
	}
	return allowed()
}

// LogViolation appends a blocked-attempt record. All failures are caught
// and discarded; auditing must never affect the primary operation.
func (s *Service) LogViolation(ctx context.Context, violationType string, actorID types.ID, reason string, metadata map[string]any, severity Severity) {
	_ = s.audit.Append(ctx, audit.Entry{
		Type:      violationType,
		ActorID:   actorID,
		Reason:    reason,
		Severity:  string(severity),
		Context:   metadata,
		CreatedAt: s.now(),
	})
}

func (s *Service) deny(ctx context.Context, violationType string, actorID types.ID, d Decision) Decision {
	s.LogViolation(ctx, violationType, actorID, d.Reason, nil, d.Severity)
	return d
}

func (s *Service) denyOnError(ctx context.Context, violationType string, actorID types.ID, err error) Decision {
	s.LogViolation(ctx, violationType, actorID, reasonCheckFailed, map[string]any{"error": err.Error()}, SeverityCritical)
	return blocked(reasonCheckFailed, SeverityCritical)
}
