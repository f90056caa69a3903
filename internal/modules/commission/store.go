// README: Commission store backed by Firestore.
package commission

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"serene/internal/types"
)

const colCommissions = "commission_records"

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type recordDoc struct {
	BookingID        string    `firestore:"bookingId"`
	ProviderID       string    `firestore:"providerId"`
	ServiceAmount    int64     `firestore:"serviceAmount"`
	CommissionRate   float64   `firestore:"commissionRate"`
	CommissionAmount int64     `firestore:"commissionAmount"`
	ProviderPayout   int64     `firestore:"providerPayout"`
	Status           string    `firestore:"status"`
	CreatedAt        time.Time `firestore:"createdAt"`
}

func toDoc(r *Record) recordDoc {
	return recordDoc{
		BookingID:        string(r.BookingID),
		ProviderID:       string(r.ProviderID),
		ServiceAmount:    r.ServiceAmount,
		CommissionRate:   r.CommissionRate,
		CommissionAmount: r.CommissionAmount,
		ProviderPayout:   r.ProviderPayout,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
}

func fromDoc(id string, d recordDoc) Record {
	return Record{
		ID:               types.ID(id),
		BookingID:        types.ID(d.BookingID),
		ProviderID:       types.ID(d.ProviderID),
		ServiceAmount:    d.ServiceAmount,
		CommissionRate:   d.CommissionRate,
		CommissionAmount: d.CommissionAmount,
		ProviderPayout:   d.ProviderPayout,
		Status:           d.Status,
		CreatedAt:        d.CreatedAt,
	}
}

func (s *FirestoreStore) FindByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	iter := s.client.Collection(colCommissions).
		Where("bookingId", "==", string(bookingID)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query commission by booking: %w", err)
	}

	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode commission record: %w", err)
	}
	rec := fromDoc(snap.Ref.ID, doc)
	return &rec, nil
}

func (s *FirestoreStore) Create(ctx context.Context, r *Record) error {
	_, err := s.client.Collection(colCommissions).Doc(string(r.ID)).Create(ctx, toDoc(r))
	if err != nil {
		return fmt.Errorf("create commission record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListByProvider(ctx context.Context, providerID types.ID) ([]Record, error) {
	iter := s.client.Collection(colCommissions).
		Where("providerId", "==", string(providerID)).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list commissions by provider: %w", err)
		}
		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode commission record: %w", err)
		}
		out = append(out, fromDoc(snap.Ref.ID, doc))
	}
	return out, nil
}
