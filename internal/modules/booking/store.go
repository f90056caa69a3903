// README: Booking store backed by Firestore; single-document conditional updates.
package booking

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"serene/internal/types"
)

const colBookings = "bookings"

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type bookingDoc struct {
	CustomerID       string     `firestore:"customerId"`
	ProviderID       string     `firestore:"providerId"`
	ProviderType     string     `firestore:"providerType"`
	ChatID           string     `firestore:"chatId"`
	Status           string     `firestore:"status"`
	TotalPrice       int64      `firestore:"totalPrice"`
	Currency         string     `firestore:"currency"`
	ServiceType      string     `firestore:"serviceType"`
	DurationMin      int        `firestore:"durationMin"`
	LocationShared   bool       `firestore:"locationShared"`
	LocationAccuracy *float64   `firestore:"locationAccuracy"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	AcceptedAt       *time.Time `firestore:"acceptedAt"`
	CancelledAt      *time.Time `firestore:"cancelledAt"`
	CancelReason     *string    `firestore:"cancelReason"`
	CancelledBy      *string    `firestore:"cancelledBy"`
}

func (s *FirestoreStore) Create(ctx context.Context, b *Booking) error {
	doc := bookingDoc{
		ProviderID:   string(b.ProviderID),
		ProviderType: b.ProviderType,
		ChatID:       string(b.ChatID),
		Status:       string(b.Status),
		TotalPrice:   b.TotalPrice.Amount,
		Currency:     b.TotalPrice.Currency,
		ServiceType:  b.ServiceType,
		DurationMin:  b.DurationMin,
		CreatedAt:    b.CreatedAt,
	}
	if b.CustomerID != nil {
		doc.CustomerID = string(*b.CustomerID)
	}
	_, err := s.client.Collection(colBookings).Doc(string(b.ID)).Create(ctx, doc)
	if err != nil {
		return fmt.Errorf("create booking doc: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	snap, err := s.client.Collection(colBookings).Doc(string(id)).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking doc: %w", err)
	}
	return decodeBooking(snap)
}

// UpdateStatus applies the transition only when the current status equals
// `from`, inside a single-document transaction. This is the conditional
// write that closes the race window between duplicate or competing
// callers; a precondition miss returns (false, nil) without mutating.
func (s *FirestoreStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, change StatusChange) (bool, error) {
	ref := s.client.Collection(colBookings).Doc(string(id))

	applied := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if snap != nil && !snap.Exists() {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if cur != string(from) {
			applied = false
			return nil
		}

		updates := []firestore.Update{{Path: "status", Value: string(to)}}
		switch {
		case to == StatusAccepted:
			updates = append(updates, firestore.Update{Path: "acceptedAt", Value: change.At})
		case IsCancel(to) || to == StatusRejected:
			updates = append(updates,
				firestore.Update{Path: "cancelledAt", Value: change.At},
				firestore.Update{Path: "cancelReason", Value: change.Reason},
				firestore.Update{Path: "cancelledBy", Value: change.CausedBy},
			)
		}
		applied = true
		return tx.Update(ref, updates)
	})
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return applied, nil
}

// MarkLocationShared flips the location flags only while the booking is
// still accepted; late calls against an advanced booking are signalled by
// (false, nil).
func (s *FirestoreStore) MarkLocationShared(ctx context.Context, id types.ID, accuracy float64) (bool, error) {
	ref := s.client.Collection(colBookings).Doc(string(id))

	applied := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if snap != nil && !snap.Exists() {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if cur != string(StatusAccepted) {
			applied = false
			return nil
		}
		applied = true
		return tx.Update(ref, []firestore.Update{
			{Path: "locationShared", Value: true},
			{Path: "locationAccuracy", Value: accuracy},
		})
	})
	if err != nil {
		return false, fmt.Errorf("mark location shared: %w", err)
	}
	return applied, nil
}

func (s *FirestoreStore) ListAcceptedSince(ctx context.Context, since time.Time) ([]Booking, error) {
	iter := s.client.Collection(colBookings).
		Where("status", "==", string(StatusAccepted)).
		Where("acceptedAt", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	var out []Booking
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list accepted bookings: %w", err)
		}
		b, err := decodeBooking(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func decodeBooking(snap *firestore.DocumentSnapshot) (*Booking, error) {
	var doc bookingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode booking doc: %w", err)
	}
	b := &Booking{
		ID:               types.ID(snap.Ref.ID),
		ProviderID:       types.ID(doc.ProviderID),
		ProviderType:     doc.ProviderType,
		ChatID:           types.ID(doc.ChatID),
		Status:           Status(doc.Status),
		TotalPrice:       types.Money{Amount: doc.TotalPrice, Currency: doc.Currency},
		ServiceType:      doc.ServiceType,
		DurationMin:      doc.DurationMin,
		LocationShared:   doc.LocationShared,
		LocationAccuracy: doc.LocationAccuracy,
		CreatedAt:        doc.CreatedAt,
		AcceptedAt:       doc.AcceptedAt,
		CancelledAt:      doc.CancelledAt,
		CancelReason:     doc.CancelReason,
		CancelledBy:      doc.CancelledBy,
	}
	if doc.CustomerID != "" {
		cid := types.ID(doc.CustomerID)
		b.CustomerID = &cid
	}
	return b, nil
}
