// README: Booking state machine; guard-checked, status-gated transitions.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"serene/internal/audit"
	"serene/internal/modules/commission"
	"serene/internal/modules/guard"
	"serene/internal/types"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("booking not found")
	ErrConflict     = errors.New("booking state conflict")
	ErrBadRequest   = errors.New("bad request")
)

// AuthzError is a typed authorization failure carrying the guard decision.
// The reason string is pre-written to be safe for display.
type AuthzError struct {
	Decision guard.Decision
}

func (e *AuthzError) Error() string {
	return e.Decision.Reason
}

// Guard is the authorization surface the state machine consults before
// any mutation.
type Guard interface {
	CanCreateBooking(ctx context.Context, customerID *types.ID, providerID types.ID, providerType string) guard.Decision
	CanAcceptBooking(ctx context.Context, bookingID, providerID types.ID) guard.Decision
}

// Ledger records the commission split on acceptance.
type Ledger interface {
	RecordOnAcceptance(ctx context.Context, b commission.AcceptedBooking) (*commission.Record, error)
}

// StatusChange carries the transition metadata the store persists next to
// the new status.
type StatusChange struct {
	At       time.Time
	Reason   string
	CausedBy string
}

// Store persists bookings. UpdateStatus performs a status-gated update:
// it returns false without mutating when the current status is not `from`.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, change StatusChange) (bool, error)
	MarkLocationShared(ctx context.Context, id types.ID, accuracy float64) (bool, error)
	ListAcceptedSince(ctx context.Context, since time.Time) ([]Booking, error)
}

type Service struct {
	store  Store
	guard  Guard
	ledger Ledger
	audit  audit.Sink
	now    func() time.Time
}

func NewService(store Store, g Guard, ledger Ledger, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{store: store, guard: g, ledger: ledger, audit: sink, now: time.Now}
}

type CreateCommand struct {
	CustomerID   *types.ID
	ProviderID   types.ID
	ProviderType string
	ChatID       types.ID
	TotalPrice   types.Money
	ServiceType  string
	DurationMin  int
}

type AcceptCommand struct {
	BookingID  types.ID
	ProviderID types.ID
}

type CancelCommand struct {
	BookingID types.ID
	To        Status // one of the cancellation statuses
	Reason    string
	CausedBy  string // "customer", "provider", "system"
}

// Create runs the authorization guard and, on success, writes a pending
// booking. On denial no document is written and a typed AuthzError is
// returned.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.ProviderID == "" || cmd.ProviderType == "" || cmd.TotalPrice.Amount <= 0 {
		return "", ErrBadRequest
	}

	if d := s.guard.CanCreateBooking(ctx, cmd.CustomerID, cmd.ProviderID, cmd.ProviderType); !d.Allowed {
		return "", &AuthzError{Decision: d}
	}

	b := &Booking{
		ID:           types.ID(uuid.NewString()),
		CustomerID:   cmd.CustomerID,
		ProviderID:   cmd.ProviderID,
		ProviderType: cmd.ProviderType,
		ChatID:       cmd.ChatID,
		Status:       StatusPending,
		TotalPrice:   cmd.TotalPrice,
		ServiceType:  cmd.ServiceType,
		DurationMin:  cmd.DurationMin,
		CreatedAt:    s.now(),
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", fmt.Errorf("create booking: %w", err)
	}
	s.logTransition(ctx, b.ID, "", StatusPending, "customer", "")
	return b.ID, nil
}

// Accept moves a pending booking to accepted and synchronously records the
// commission split. If the ledger write fails after the status write, the
// booking stays accepted and the error is surfaced so the caller can retry
// or alert; it is never swallowed. A second accept of the same booking is
// rejected at the guard layer (status is no longer pending), which is what
// makes the commission side effect exactly-once under caller retries.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*commission.Record, error) {
	if d := s.guard.CanAcceptBooking(ctx, cmd.BookingID, cmd.ProviderID); !d.Allowed {
		return nil, &AuthzError{Decision: d}
	}

	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.UpdateStatus(ctx, b.ID, StatusPending, StatusAccepted, StatusChange{At: s.now()})
	if err != nil {
		return nil, fmt.Errorf("accept booking: %w", err)
	}
	if !ok {
		return nil, ErrConflict
	}
	s.logTransition(ctx, b.ID, StatusPending, StatusAccepted, "provider", "")

	rec, err := s.ledger.RecordOnAcceptance(ctx, commission.AcceptedBooking{
		ID:         b.ID,
		ProviderID: b.ProviderID,
		TotalPrice: b.TotalPrice.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("booking %s accepted but commission not recorded: %w", b.ID, err)
	}
	return rec, nil
}

// Confirm advances an accepted booking after the customer confirms the
// session details.
func (s *Service) Confirm(ctx context.Context, id types.ID) error {
	return s.advance(ctx, id, StatusAccepted, StatusConfirmed, StatusChange{At: s.now()}, "customer")
}

// Complete marks a confirmed booking as finished.
func (s *Service) Complete(ctx context.Context, id types.ID) error {
	return s.advance(ctx, id, StatusConfirmed, StatusCompleted, StatusChange{At: s.now()}, "provider")
}

// Reject declines a pending booking.
func (s *Service) Reject(ctx context.Context, id types.ID, reason string) error {
	return s.advance(ctx, id, StatusPending, StatusRejected,
		StatusChange{At: s.now(), Reason: reason, CausedBy: "provider"}, "provider")
}

// Cancel moves a pending or accepted booking to one of the cancellation
// terminals. Cancels from terminal states fail with ErrInvalidState.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	to := cmd.To
	if to == "" {
		to = StatusCancelledOther
	}
	if !IsCancel(to) {
		return ErrBadRequest
	}

	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}

	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, to, StatusChange{
		At:       s.now(),
		Reason:   cmd.Reason,
		CausedBy: cmd.CausedBy,
	})
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	s.logTransition(ctx, b.ID, b.Status, to, cmd.CausedBy, cmd.Reason)
	return nil
}

// MarkLocationShared records that the customer shared a live position
// while the booking is accepted. Late calls against an already advanced
// or cancelled booking are a no-op signalled by ErrConflict.
func (s *Service) MarkLocationShared(ctx context.Context, id types.ID, accuracy float64) error {
	ok, err := s.store.MarkLocationShared(ctx, id, accuracy)
	if err != nil {
		return fmt.Errorf("mark location shared: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) advance(ctx context.Context, id types.ID, from, to Status, change StatusChange, actor string) error {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(b.Status, to) {
		return ErrInvalidState
	}
	if b.Status != from {
		return ErrConflict
	}

	ok, err := s.store.UpdateStatus(ctx, id, from, to, change)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	s.logTransition(ctx, id, from, to, actor, change.Reason)
	return nil
}

func (s *Service) logTransition(ctx context.Context, id types.ID, from, to Status, actor, reason string) {
	_ = s.audit.Append(ctx, audit.Entry{
		Type:     "booking.transition",
		ActorID:  id,
		Reason:   reason,
		Severity: "info",
		Context: map[string]any{
			"from":  string(from),
			"to":    string(to),
			"actor": actor,
		},
		CreatedAt: s.now(),
	})
}

// AcceptedLister adapts the booking store to the commission ledger's
// reconciliation check.
type AcceptedLister struct {
	Store Store
}

func (l AcceptedLister) ListAcceptedSince(ctx context.Context, since time.Time) ([]commission.AcceptedBooking, error) {
	bookings, err := l.Store.ListAcceptedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	out := make([]commission.AcceptedBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, commission.AcceptedBooking{
			ID:         b.ID,
			ProviderID: b.ProviderID,
			TotalPrice: b.TotalPrice.Amount,
		})
	}
	return out, nil
}
