// README: Guard store backed by Firestore reads over marketplace collections.
package guard

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"serene/internal/types"
)

const (
	colAccountStatus = "account_status"
	colBookings      = "bookings"
	colCommissions   = "commission_records"
)

// unpaidCommissionStatuses block a pro-plan provider from taking new work.
var unpaidCommissionStatuses = []string{"pending", "expired"}

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type accountStatusDoc struct {
	Status             string     `firestore:"status"`
	DeactivationReason string     `firestore:"deactivationReason"`
	BookingEnabled     bool       `firestore:"bookingEnabled"`
	ScheduleEnabled    bool       `firestore:"scheduleEnabled"`
	PlanType           string     `firestore:"planType"`
	PlanExpiresAt      *time.Time `firestore:"planExpiresAt"`
	GraceUntil         *time.Time `firestore:"graceUntil"`
}

func (s *FirestoreStore) GetAccountStatus(ctx context.Context, providerID types.ID) (*AccountStatus, error) {
	snap, err := s.client.Collection(colAccountStatus).Doc(string(providerID)).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account status: %w", err)
	}

	var doc accountStatusDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode account status: %w", err)
	}
	return &AccountStatus{
		ProviderID:         providerID,
		Status:             doc.Status,
		DeactivationReason: doc.DeactivationReason,
		BookingEnabled:     doc.BookingEnabled,
		ScheduleEnabled:    doc.ScheduleEnabled,
		PlanType:           doc.PlanType,
		PlanExpiresAt:      doc.PlanExpiresAt,
		GraceUntil:         doc.GraceUntil,
	}, nil
}

func (s *FirestoreStore) HasUnpaidCommissions(ctx context.Context, providerID types.ID) (bool, error) {
	q := s.client.Collection(colCommissions).
		Where("providerId", "==", string(providerID)).
		Where("status", "in", unpaidCommissionStatuses).
		Limit(1)
	return hasAny(ctx, q)
}

func (s *FirestoreStore) HasActiveBooking(ctx context.Context, customerID types.ID) (bool, error) {
	q := s.client.Collection(colBookings).
		Where("customerId", "==", string(customerID)).
		Where("status", "in", activeBookingStatuses).
		Limit(1)
	return hasAny(ctx, q)
}

func (s *FirestoreStore) GetBookingRef(ctx context.Context, bookingID types.ID) (*BookingRef, error) {
	snap, err := s.client.Collection(colBookings).Doc(string(bookingID)).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	var doc struct {
		ProviderID string `firestore:"providerId"`
		Status     string `firestore:"status"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	return &BookingRef{
		ID:         bookingID,
		ProviderID: types.ID(doc.ProviderID),
		Status:     doc.Status,
	}, nil
}

func hasAny(ctx context.Context, q firestore.Query) (bool, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
