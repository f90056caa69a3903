// README: Commission ledger; records the revenue split exactly once per accepted booking.
package commission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"serene/internal/types"
)

var ErrNotFound = errors.New("commission record not found")

// Store persists commission records. FindByBooking returns ErrNotFound
// when no record exists for the booking.
type Store interface {
	FindByBooking(ctx context.Context, bookingID types.ID) (*Record, error)
	Create(ctx context.Context, r *Record) error
	ListByProvider(ctx context.Context, providerID types.ID) ([]Record, error)
}

type Service struct {
	store Store
	rate  float64
	now   func() time.Time
}

func NewService(store Store, rate float64) *Service {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Service{store: store, rate: rate, now: time.Now}
}

// AcceptedBooking is the snapshot the ledger needs of a booking that has
// just reached acceptance.
type AcceptedBooking struct {
	ID         types.ID
	ProviderID types.ID
	TotalPrice int64
}

// RecordOnAcceptance computes the split and durably records it. The call
// is idempotent: a record already present for the booking is returned
// as-is. The duplicate check is read-then-write, not transactional; the
// state machine's status gate on accept is what narrows the concurrent
// window (only one of two racing accepts observes a pending booking).
func (s *Service) RecordOnAcceptance(ctx context.Context, b AcceptedBooking) (*Record, error) {
	existing, err := s.store.FindByBooking(ctx, b.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing commission: %w", err)
	}

	admin, payout := Split(b.TotalPrice, s.rate)
	rec := &Record{
		ID:               types.ID(uuid.NewString()),
		BookingID:        b.ID,
		ProviderID:       b.ProviderID,
		ServiceAmount:    b.TotalPrice,
		CommissionRate:   s.rate,
		CommissionAmount: admin,
		ProviderPayout:   payout,
		Status:           StatusAccepted,
		CreatedAt:        s.now(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create commission record: %w", err)
	}
	return rec, nil
}

// ListByProvider returns a provider's commission records, newest first.
func (s *Service) ListByProvider(ctx context.Context, providerID types.ID) ([]Record, error) {
	records, err := s.store.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list commissions for provider %s: %w", providerID, err)
	}
	return records, nil
}

// BookingLister is the booking-side view the reconciliation check needs.
type BookingLister interface {
	ListAcceptedSince(ctx context.Context, since time.Time) ([]AcceptedBooking, error)
}

// Reconcile finds bookings that reached acceptance without a commission
// record (the ledger write failed after the status write succeeded).
// Anomalies are returned for alerting; they are never auto-healed here.
func (s *Service) Reconcile(ctx context.Context, bookings BookingLister, since time.Time) ([]types.ID, error) {
	accepted, err := bookings.ListAcceptedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list accepted bookings: %w", err)
	}

	var missing []types.ID
	for _, b := range accepted {
		_, err := s.store.FindByBooking(ctx, b.ID)
		if errors.Is(err, ErrNotFound) {
			missing = append(missing, b.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check commission for booking %s: %w", b.ID, err)
		}
	}
	if len(missing) > 0 {
		log.Printf("ALERT: %d accepted booking(s) without a commission record: %v", len(missing), missing)
	}
	return missing, nil
}
