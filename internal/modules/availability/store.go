// README: Score store backed by Firestore; ranking set backed by Redis.
package availability

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/iterator"

	"serene/internal/types"
)

const (
	colScores     = "availability_scores"
	colDispatches = "dispatches"
)

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type scoreDoc struct {
	TherapistID    string    `firestore:"therapistId"`
	Score          int       `firestore:"score"`
	TotalRequests  int       `firestore:"totalRequests"`
	Accepted       int       `firestore:"accepted"`
	Declined       int       `firestore:"declined"`
	Missed         int       `firestore:"missed"`
	AvgResponseSec float64   `firestore:"avgResponseSec"`
	Penalties      int       `firestore:"penalties"`
	Badges         []string  `firestore:"badges"`
	Multiplier     float64   `firestore:"visibilityMultiplier"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func (s *FirestoreStore) Get(ctx context.Context, therapistID types.ID) (*Score, error) {
	snap, err := s.client.Collection(colScores).Doc(string(therapistID)).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get score doc: %w", err)
	}

	var doc scoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode score doc: %w", err)
	}
	return &Score{
		TherapistID:    types.ID(doc.TherapistID),
		Score:          doc.Score,
		TotalRequests:  doc.TotalRequests,
		Accepted:       doc.Accepted,
		Declined:       doc.Declined,
		Missed:         doc.Missed,
		AvgResponseSec: doc.AvgResponseSec,
		Penalties:      doc.Penalties,
		Badges:         doc.Badges,
		Multiplier:     doc.Multiplier,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

func (s *FirestoreStore) Save(ctx context.Context, sc *Score) error {
	_, err := s.client.Collection(colScores).Doc(string(sc.TherapistID)).Set(ctx, scoreDoc{
		TherapistID:    string(sc.TherapistID),
		Score:          sc.Score,
		TotalRequests:  sc.TotalRequests,
		Accepted:       sc.Accepted,
		Declined:       sc.Declined,
		Missed:         sc.Missed,
		AvgResponseSec: sc.AvgResponseSec,
		Penalties:      sc.Penalties,
		Badges:         sc.Badges,
		Multiplier:     sc.Multiplier,
		UpdatedAt:      sc.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("save score doc: %w", err)
	}
	return nil
}

type dispatchDoc struct {
	BookingID   string    `firestore:"bookingId"`
	TherapistID string    `firestore:"therapistId"`
	NotifiedAt  time.Time `firestore:"notifiedAt"`
	Answered    bool      `firestore:"answered"`
}

func (s *FirestoreStore) Create(ctx context.Context, d *Dispatch) error {
	_, err := s.client.Collection(colDispatches).Doc(string(d.ID)).Create(ctx, dispatchDoc{
		BookingID:   string(d.BookingID),
		TherapistID: string(d.TherapistID),
		NotifiedAt:  d.NotifiedAt,
		Answered:    d.Answered,
	})
	if err != nil {
		return fmt.Errorf("create dispatch doc: %w", err)
	}
	return nil
}

func (s *FirestoreStore) MarkAnswered(ctx context.Context, bookingID, therapistID types.ID) error {
	iter := s.client.Collection(colDispatches).
		Where("bookingId", "==", string(bookingID)).
		Where("therapistId", "==", string(therapistID)).
		Where("answered", "==", false).
		Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query dispatches: %w", err)
		}
		if _, err := snap.Ref.Update(ctx, []firestore.Update{{Path: "answered", Value: true}}); err != nil {
			return fmt.Errorf("mark dispatch answered: %w", err)
		}
	}
}

func (s *FirestoreStore) ListUnanswered(ctx context.Context, olderThan time.Time) ([]Dispatch, error) {
	iter := s.client.Collection(colDispatches).
		Where("answered", "==", false).
		Where("notifiedAt", "<=", olderThan).
		Documents(ctx)
	defer iter.Stop()

	var out []Dispatch
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list unanswered dispatches: %w", err)
		}
		var doc dispatchDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode dispatch doc: %w", err)
		}
		out = append(out, Dispatch{
			ID:          types.ID(snap.Ref.ID),
			BookingID:   types.ID(doc.BookingID),
			TherapistID: types.ID(doc.TherapistID),
			NotifiedAt:  doc.NotifiedAt,
			Answered:    doc.Answered,
		})
	}
	return out, nil
}

// RedisRanker maintains the provider search-ranking sorted set. The
// member weight is score times visibility multiplier.
type RedisRanker struct {
	redis *redis.Client
}

const rankingKey = "ranking:providers"

func NewRedisRanker(rdb *redis.Client) *RedisRanker {
	return &RedisRanker{redis: rdb}
}

func (r *RedisRanker) Publish(ctx context.Context, therapistID types.ID, weight float64) error {
	return r.redis.ZAdd(ctx, rankingKey, redis.Z{
		Score:  weight,
		Member: string(therapistID),
	}).Err()
}

func (r *RedisRanker) Remove(ctx context.Context, therapistID types.ID) error {
	return r.redis.ZRem(ctx, rankingKey, string(therapistID)).Err()
}

// TopProviders returns the highest-weighted provider ids, best first.
func (r *RedisRanker) TopProviders(ctx context.Context, n int64) ([]types.ID, error) {
	members, err := r.redis.ZRevRange(ctx, rankingKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}
