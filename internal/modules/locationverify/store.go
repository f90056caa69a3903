// README: Location record store backed by Firestore, plus the chat-session cancel hook.
package locationverify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"serene/internal/types"
)

const (
	colLocations = "location_records"
	colChats     = "chat_sessions"
)

var ErrRecordNotFound = errors.New("location record not found")

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type recordDoc struct {
	BookingID  string    `firestore:"bookingId"`
	ChatID     string    `firestore:"chatId"`
	Latitude   float64   `firestore:"latitude"`
	Longitude  float64   `firestore:"longitude"`
	Accuracy   float64   `firestore:"accuracy"`
	Address    string    `firestore:"address"`
	Source     string    `firestore:"source"`
	CapturedAt time.Time `firestore:"capturedAt"`
}

func (s *FirestoreStore) Create(ctx context.Context, r *Record) error {
	_, err := s.client.Collection(colLocations).Doc(string(r.ID)).Create(ctx, recordDoc{
		BookingID:  string(r.BookingID),
		ChatID:     string(r.ChatID),
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Accuracy:   r.Accuracy,
		Address:    r.Address,
		Source:     r.Source,
		CapturedAt: r.CapturedAt,
	})
	if err != nil {
		return fmt.Errorf("create location record: %w", err)
	}
	return nil
}

func (s *FirestoreStore) FindByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	iter := s.client.Collection(colLocations).
		Where("bookingId", "==", string(bookingID)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query location by booking: %w", err)
	}

	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode location record: %w", err)
	}
	return &Record{
		ID:         types.ID(snap.Ref.ID),
		BookingID:  types.ID(doc.BookingID),
		ChatID:     types.ID(doc.ChatID),
		Latitude:   doc.Latitude,
		Longitude:  doc.Longitude,
		Accuracy:   doc.Accuracy,
		Address:    doc.Address,
		Source:     doc.Source,
		CapturedAt: doc.CapturedAt,
	}, nil
}

// FirestoreChats flips a chat-session document to cancelled. The chat UI
// itself is outside the engine; this is its only touch point.
type FirestoreChats struct {
	client *firestore.Client
}

func NewFirestoreChats(client *firestore.Client) *FirestoreChats {
	return &FirestoreChats{client: client}
}

func (c *FirestoreChats) MarkCancelled(ctx context.Context, chatID types.ID, reason string) error {
	_, err := c.client.Collection(colChats).Doc(string(chatID)).Update(ctx, []firestore.Update{
		{Path: "status", Value: "cancelled"},
		{Path: "cancelReason", Value: reason},
		{Path: "cancelledAt", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("cancel chat session: %w", err)
	}
	return nil
}
